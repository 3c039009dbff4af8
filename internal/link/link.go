// Package link owns the single live connection to the robot chassis. It
// runs one background receive loop per connection and hands every received
// chunk, unmodified, to a registered observer. Chunks are raw reads off the
// wire: they may hold a partial frame or several merged frames, and the
// consumer's decoder is expected to tolerate that.
package link

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	// dialTimeout bounds connection establishment.
	dialTimeout = 5 * time.Second
	// readTimeout bounds each blocking read so the receive loop notices a
	// stop request within half a second. Disconnect never interrupts an
	// in-flight read; it relies on this bound.
	readTimeout = 500 * time.Millisecond
	// readChunk is the per-read buffer size.
	readChunk = 1024
)

var (
	// ErrNotConnected is returned by Send when no connection is live.
	ErrNotConnected = errors.New("not connected")
	// ErrConnectTimeout is returned by Connect when dialing exceeds dialTimeout.
	ErrConnectTimeout = errors.New("connect timeout")
	// ErrConnectionRefused is returned by Connect when the target refuses.
	ErrConnectionRefused = errors.New("connection refused")
)

// Observer receives one callback per non-empty read, on the receive
// goroutine. The slice is freshly allocated per read and may be retained.
// Consumers that need single-threaded delivery marshal it themselves.
type Observer func(data []byte)

// Manager holds zero or one live connection, a background receive loop and
// the registered observer. The connected flag is the only state shared with
// the receive goroutine; only Send, Disconnect and (optionally) the receive
// loop write it.
type Manager struct {
	// DisconnectOnReadError marks the link disconnected when the receive
	// loop exits on a non-timeout read error. Off by default: historically
	// only Send failures and Disconnect flip the state, and a dead receive
	// loop leaves the link nominally connected until the next send fails.
	DisconnectOnReadError bool

	connected atomic.Bool

	mu       sync.Mutex
	conn     io.ReadWriteCloser
	addr     string
	observer Observer
}

// NewManager returns a disconnected Manager.
func NewManager() *Manager {
	return &Manager{}
}

// SetObserver registers the callback for received chunks. Pass nil to drop
// inbound data on the floor.
func (m *Manager) SetObserver(obs Observer) {
	m.mu.Lock()
	m.observer = obs
	m.mu.Unlock()
}

// Connected reports whether the link currently considers itself connected.
func (m *Manager) Connected() bool { return m.connected.Load() }

// Addr returns the target of the current (or last) connection, for display.
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Connect opens the connection described by d and starts the receive loop.
// An existing connection is closed first: the link owns at most one
// connection and one receive loop at a time. On any dial failure the state
// stays disconnected and a classified error is returned.
func (m *Manager) Connect(d Dialer) error {
	m.Disconnect()

	conn, err := d.Dial()
	if err != nil {
		return classifyDialError(d.Addr(), err)
	}

	m.mu.Lock()
	m.conn = conn
	m.addr = d.Addr()
	m.mu.Unlock()
	m.connected.Store(true)

	go m.receiveLoop(conn)

	log.Printf("[link] connected to %s", d.Addr())
	return nil
}

// Disconnect flips the state to disconnected and closes the connection,
// swallowing any close-time error. The receive loop notices within the read
// timeout and exits. Safe to call at any time, connected or not.
func (m *Manager) Disconnect() {
	m.connected.Store(false)
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()
}

// Send writes the frame to the live connection. It fails with
// ErrNotConnected when no connection is live, and on any write error flips
// the state to disconnected and reports the reason. The connection itself
// is left for Disconnect or the next Connect to close.
func (m *Manager) Send(data []byte) error {
	if !m.connected.Load() {
		return ErrNotConnected
	}
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	if _, err := conn.Write(data); err != nil {
		m.connected.Store(false)
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

// receiveLoop reads chunks until the link is disconnected, a newer
// connection replaces this one, or a non-timeout read error occurs. Each
// non-empty read is delivered to the observer exactly once, with no
// buffering across reads and no frame alignment.
func (m *Manager) receiveLoop(conn io.ReadWriteCloser) {
	buf := make([]byte, readChunk)
	for m.connected.Load() && m.isCurrent(conn) {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			m.deliver(chunk)
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if m.DisconnectOnReadError && m.isCurrent(conn) {
				m.connected.Store(false)
				log.Printf("[link] receive loop ended, marking disconnected: %v", err)
			}
			return
		}
		// n == 0 with a nil error is the serial transport's read timeout.
	}
}

func (m *Manager) deliver(chunk []byte) {
	m.mu.Lock()
	obs := m.observer
	m.mu.Unlock()
	if obs != nil {
		obs(chunk)
	}
}

// isCurrent reports whether conn is still the manager's live connection. A
// loop left over from a replaced connection must never touch shared state.
func (m *Manager) isCurrent(conn io.ReadWriteCloser) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn == conn
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func classifyDialError(addr string, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %s", ErrConnectTimeout, addr)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %s", ErrConnectionRefused, addr)
	}
	return fmt.Errorf("connect failed: %s: %w", addr, err)
}
