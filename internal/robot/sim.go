package robot

import (
	"log"
	"net"
	"sync"

	"github.com/ZYJ3898/robot-control-app/internal/protocol"
)

// Sim is a loopback robot chassis for development and testing: a TCP server
// speaking the same frame format as the real hardware. Every valid command
// frame is acknowledged by echoing it back in response form (header through
// payload, no trailing checksum). Bytes that never line up into a valid
// frame are discarded one at a time.
type Sim struct {
	ln net.Listener
	wg sync.WaitGroup
}

// StartSim listens on addr (e.g. "127.0.0.1:0") and serves connections
// until Close.
func StartSim(addr string) (*Sim, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Sim{ln: ln}
	s.wg.Add(1)
	go s.acceptLoop()
	log.Printf("[sim] robot simulator listening on %s", ln.Addr())
	return s, nil
}

// Addr returns the listener's address.
func (s *Sim) Addr() string { return s.ln.Addr().String() }

// Host and Port split the listener address for config wiring.
func (s *Sim) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

func (s *Sim) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Close stops the listener and waits for connection handlers to finish.
func (s *Sim) Close() {
	s.ln.Close()
	s.wg.Wait()
}

func (s *Sim) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Sim) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	var pending []byte
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			var acks []byte
			pending, acks = consumeFrames(pending)
			if len(acks) > 0 {
				if _, err := conn.Write(acks); err != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// consumeFrames pulls complete, checksum-valid command frames off the front
// of pending and returns the remaining bytes plus the concatenated
// acknowledgements. Anything that does not parse is skipped byte by byte, so
// a corrupt prefix cannot wedge the stream.
func consumeFrames(pending []byte) (rest, acks []byte) {
	for len(pending) >= 2 {
		if pending[0] != protocol.Header0 || pending[1] != protocol.Header1 {
			pending = pending[1:]
			continue
		}
		if len(pending) < 3 {
			break
		}

		// Total frame size for the two known length bytes; the trailing
		// checksum is not counted by LEN.
		var total int
		switch pending[2] {
		case 0x04:
			total = 7
		case 0x07:
			total = 9
		default:
			pending = pending[1:]
			continue
		}

		if len(pending) < total {
			break // wait for the rest of the frame
		}

		frame := pending[:total]
		if protocol.Checksum(frame[:total-1]) != frame[total-1] {
			log.Printf("[sim] checksum mismatch, dropping byte: % X", frame)
			pending = pending[1:]
			continue
		}

		// Acknowledge with the response form: same bytes minus checksum.
		acks = append(acks, frame[:total-1]...)
		pending = pending[total:]
	}
	return pending, acks
}
