package link

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.bug.st/serial"
)

// Dialer opens the connection the Manager will own. Implementations must
// arrange for reads on the returned connection to unblock within
// readTimeout, either via deadlines or the transport's own read timeout.
type Dialer interface {
	Dial() (io.ReadWriteCloser, error)
	// Addr describes the target for status and log text.
	Addr() string
}

// TCPDialer dials the robot's TCP bridge. This is the default transport.
type TCPDialer struct {
	Host string
	Port int
}

func (d TCPDialer) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

func (d TCPDialer) Dial() (io.ReadWriteCloser, error) {
	conn, err := net.DialTimeout("tcp", d.Addr(), dialTimeout)
	if err != nil {
		return nil, err
	}
	return deadlineConn{conn}, nil
}

// deadlineConn arms a fresh read deadline before every read so the receive
// loop's blocking reads are bounded.
type deadlineConn struct {
	net.Conn
}

func (c deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

// SerialDialer opens a robot attached directly over UART. The port's own
// read timeout gives the receive loop the same bounded-read behavior as the
// TCP deadline: a timed-out read returns (0, nil).
type SerialDialer struct {
	Path string
	Baud int // defaults to 115200
}

func (d SerialDialer) Addr() string { return d.Path }

func (d SerialDialer) Dial() (io.ReadWriteCloser, error) {
	baud := d.Baud
	if baud == 0 {
		baud = 115200
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(d.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", d.Path, err)
	}
	return port, nil
}
