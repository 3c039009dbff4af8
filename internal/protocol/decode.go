package protocol

import "fmt"

// Kind discriminates decoded acknowledgement frames.
type Kind int

const (
	KindMovement Kind = iota + 1
	KindSpeed
	KindAngle
)

func (k Kind) String() string {
	switch k {
	case KindMovement:
		return "movement"
	case KindSpeed:
		return "speed"
	case KindAngle:
		return "angle"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Response is a decoded acknowledgement frame from the chassis. Only the
// fields for the matching Kind are meaningful.
type Response struct {
	Kind Kind

	// Movement
	ID        byte
	Direction Direction

	// Speed
	Speed int // RPM
	Accel int // units of 0.1 ms

	// Angle
	Angle float64 // degrees
}

// Decode interprets a received byte buffer as an acknowledgement frame.
// It returns nil for fewer than 6 bytes, a header mismatch, or any
// (length, TYPE, SUBTYPE) combination it does not recognize; the caller
// falls back to displaying the raw hex. Decode never panics on truncated
// or merged input.
//
// Recognized shapes:
//
//	6 bytes  AA 55 04 80 [ID] [DIRECTION]        movement ack
//	8 bytes  AA 55 07 81 01 [ID] [SPEED] [ACCEL] speed ack
//	8 bytes  AA 55 07 81 02 [ID] [ANGLE] 00      angle ack
func Decode(data []byte) *Response {
	if len(data) < 6 {
		return nil
	}
	if data[0] != Header0 || data[1] != Header1 {
		return nil
	}

	switch {
	case len(data) == 6 && data[2] == movementLen && data[3] == TypeMovement:
		return &Response{
			Kind:      KindMovement,
			ID:        data[4],
			Direction: Direction(data[5]),
		}

	case len(data) == 8 && data[2] == settingLen && data[3] == TypeSetting && data[4] == SubtypeSpeed:
		return &Response{
			Kind:  KindSpeed,
			ID:    data[5],
			Speed: int(data[6]),
			Accel: int(data[7]),
		}

	case len(data) == 8 && data[2] == settingLen && data[3] == TypeSetting && data[4] == SubtypeAngle:
		return &Response{
			Kind:  KindAngle,
			ID:    data[5],
			Angle: DecodeAngle(data[6]),
		}
	}

	return nil
}

// String renders the response for log and display surfaces.
func (r *Response) String() string {
	switch r.Kind {
	case KindMovement:
		return fmt.Sprintf("movement ack: %s %s", ActuatorName(r.ID), r.Direction)
	case KindSpeed:
		return fmt.Sprintf("speed ack: %s speed=%d RPM accel=%d (x0.1 ms)", ActuatorName(r.ID), r.Speed, r.Accel)
	case KindAngle:
		return fmt.Sprintf("angle ack: %.1f deg", r.Angle)
	default:
		return fmt.Sprintf("unrecognized ack (kind=%d)", int(r.Kind))
	}
}
