package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ZYJ3898/robot-control-app/internal/protocol"
	"github.com/ZYJ3898/robot-control-app/internal/robot"
)

// Server exposes the robot controller to browser clients: embedded web
// assets over HTTP, commands in and traffic events out over WebSocket. It
// is a consumer of the controller only; it never touches the socket or the
// frame codec directly.
type Server struct {
	cfg   *Config
	ctrl  *robot.Controller
	webFS fs.FS

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// command is a JSON message from a WebSocket client.
type command struct {
	Action    string  `json:"action"` // connect, disconnect, move, speed, angle
	Host      string  `json:"host,omitempty"`
	Port      int     `json:"port,omitempty"`
	Direction int     `json:"direction,omitempty"`
	ID        int     `json:"id,omitempty"`
	Speed     int     `json:"speed,omitempty"`
	Accel     int     `json:"accel,omitempty"`
	Angle     float64 `json:"angle,omitempty"`
}

// message is a JSON message to WebSocket clients.
type message struct {
	Type      string       `json:"type"` // "event", "result", "status"
	Event     *robot.Event `json:"event,omitempty"`
	Action    string       `json:"action,omitempty"`
	OK        bool         `json:"ok,omitempty"`
	Error     string       `json:"error,omitempty"`
	Connected bool         `json:"connected"`
	Addr      string       `json:"addr,omitempty"`
	Stamp     int64        `json:"stamp"`
}

// New creates a new Server.
func New(cfg *Config, ctrl *robot.Controller, webFS fs.FS) *Server {
	return &Server{
		cfg:     cfg,
		ctrl:    ctrl,
		webFS:   webFS,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler tree. Split out of Run so tests can
// mount it on a test server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Serve embedded web files
	mux.Handle("/", http.FileServer(http.FS(s.webFS)))

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWS)

	// APIs
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/status", s.handleStatus)

	return mux
}

// Run starts the HTTP server and the event pump, shutting both down when
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	events, cancel := s.ctrl.Subscribe()
	defer cancel()
	go s.pumpEvents(ctx, events)

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	return srv.ListenAndServe()
}

// pumpEvents forwards controller traffic events to every connected client.
func (s *Server) pumpEvents(ctx context.Context, events <-chan robot.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			evCopy := ev // stable address for the pointer below
			s.broadcast(message{
				Type:      "event",
				Event:     &evCopy,
				Connected: s.ctrl.Connected(),
				Stamp:     ev.Stamp,
			})
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()

	log.Printf("[ws] client connected (%d total)", total)

	// Initial status snapshot
	client.enqueue(message{
		Type:      "status",
		Connected: s.ctrl.Connected(),
		Addr:      s.ctrl.Addr(),
		Stamp:     time.Now().UnixMilli(),
	})

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader loop, parses commands until the client goes away
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", total)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var cmd command
			if err := json.Unmarshal(data, &cmd); err != nil {
				client.enqueue(s.result(cmd.Action, fmt.Errorf("bad command: %w", err)))
				continue
			}
			client.enqueue(s.result(cmd.Action, s.execute(cmd)))
		}
	}()
}

// execute dispatches one client command to the controller.
func (s *Server) execute(cmd command) error {
	switch cmd.Action {
	case "connect":
		return s.ctrl.Connect(s.cfg.Robot.Dialer(cmd.Host, cmd.Port))
	case "disconnect":
		s.ctrl.Disconnect()
		return nil
	case "move":
		return s.ctrl.Move(protocol.Direction(cmd.Direction), byte(cmd.ID))
	case "speed":
		return s.ctrl.SetSpeed(cmd.Speed, cmd.Accel, byte(cmd.ID))
	case "angle":
		return s.ctrl.SetAngle(cmd.Angle)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}

func (s *Server) result(action string, err error) message {
	msg := message{
		Type:      "result",
		Action:    action,
		OK:        err == nil,
		Connected: s.ctrl.Connected(),
		Addr:      s.ctrl.Addr(),
		Stamp:     time.Now().UnixMilli(),
	}
	if err != nil {
		msg.Error = err.Error()
	}
	return msg
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	data, err := s.cfg.ToJSON()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"connected": s.ctrl.Connected(),
		"addr":      s.ctrl.Addr(),
	})
}

func (c *wsClient) enqueue(msg message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		// Client too slow, skip
	}
}

func (s *Server) broadcast(msg message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
