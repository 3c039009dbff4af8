// Package robot sits between the wire link and whatever front end drives
// it. The Controller encodes user commands into frames, pushes them through
// the link, decodes acknowledgements coming back and fans all traffic out to
// subscribers as immutable events.
package robot

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ZYJ3898/robot-control-app/internal/link"
	"github.com/ZYJ3898/robot-control-app/internal/protocol"
)

// EventKind labels a traffic event.
type EventKind string

const (
	EventSent     EventKind = "sent"
	EventReceived EventKind = "received"
	EventStatus   EventKind = "status"
)

// Event is one entry of robot traffic: a sent frame, a received chunk, or a
// connection status change. Events are immutable once published.
type Event struct {
	Kind  EventKind `json:"kind"`
	Text  string    `json:"text"`
	Hex   string    `json:"hex,omitempty"`
	Stamp int64     `json:"stamp"` // Unix ms
}

const eventBuffer = 64

// Controller owns one link.Manager and the command surface above it.
// Received chunks are decoded on the link's receive goroutine; subscribers
// get events over buffered channels and are skipped, not blocked, when they
// fall behind.
type Controller struct {
	link *link.Manager

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewController wires a Controller to the given link and registers itself
// as the link's receive observer.
func NewController(l *link.Manager) *Controller {
	c := &Controller{
		link: l,
		subs: make(map[chan Event]struct{}),
	}
	l.SetObserver(c.onReceive)
	return c
}

// Subscribe returns a channel of traffic events and a cancel function that
// removes the subscription and closes the channel.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Connect dials the target described by d. On failure the link stays
// disconnected and the error carries the reason.
func (c *Controller) Connect(d link.Dialer) error {
	if err := c.link.Connect(d); err != nil {
		return err
	}
	c.publish(Event{Kind: EventStatus, Text: fmt.Sprintf("connected to %s", d.Addr())})
	return nil
}

// Disconnect closes the connection. Idempotent.
func (c *Controller) Disconnect() {
	c.link.Disconnect()
	c.publish(Event{Kind: EventStatus, Text: "disconnected"})
}

// Connected reports the link state.
func (c *Controller) Connected() bool { return c.link.Connected() }

// Addr returns the current (or last) connection target.
func (c *Controller) Addr() string { return c.link.Addr() }

// Move sends a movement command to the selected actuator.
func (c *Controller) Move(dir protocol.Direction, id byte) error {
	frame, err := protocol.EncodeMovement(dir, id)
	if err != nil {
		return err
	}
	return c.send(frame, fmt.Sprintf("%s %s", protocol.ActuatorName(id), dir))
}

// SetSpeed sends a speed setting; rpm and accel are clamped by the encoder.
func (c *Controller) SetSpeed(rpm, accel int, id byte) error {
	frame := protocol.EncodeSpeed(rpm, accel, id)
	return c.send(frame, fmt.Sprintf("%s speed=%d RPM accel=%d (x0.1 ms)",
		protocol.ActuatorName(id), int(frame[6]), int(frame[7])))
}

// SetAngle sends a steering angle setting. The chassis only steers as a
// whole, so the ID byte is fixed to the vehicle.
func (c *Controller) SetAngle(deg float64) error {
	frame := protocol.EncodeAngle(deg, 0x00)
	return c.send(frame, fmt.Sprintf("angle=%.1f deg (byte 0x%02X)",
		protocol.DecodeAngle(frame[6]), frame[6]))
}

func (c *Controller) send(frame []byte, desc string) error {
	if err := c.link.Send(frame); err != nil {
		return err
	}
	hex := protocol.FormatHex(frame)
	log.Printf("[robot] sent %s: %s", desc, hex)
	c.publish(Event{Kind: EventSent, Text: desc, Hex: hex})
	return nil
}

// onReceive runs on the link's receive goroutine, once per chunk. A chunk
// that decodes as a known acknowledgement is described; anything else falls
// back to the raw hex dump.
func (c *Controller) onReceive(data []byte) {
	hex := protocol.FormatHex(data)
	text := "received " + hex
	if resp := protocol.Decode(data); resp != nil {
		text = resp.String()
	}
	log.Printf("[robot] %s", text)
	c.publish(Event{Kind: EventReceived, Text: text, Hex: hex})
}

func (c *Controller) publish(ev Event) {
	ev.Stamp = time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber too slow, skip
		}
	}
}
