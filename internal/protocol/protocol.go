// Package protocol implements the wire format spoken by the wheeled robot
// chassis: fixed-layout byte frames with a two-byte header, a length byte,
// a command type and an 8-bit additive checksum.
//
// Frame layout (both directions):
//
//	[0xAA][0x55][LEN][TYPE][...payload...][CHECKSUM]
//
// LEN counts the bytes from TYPE through the end of the payload. CHECKSUM is
// the low 8 bits of the sum of every byte from LEN through the last payload
// byte. Acknowledgement frames sent by the chassis carry the same header,
// length and payload layout but no trailing checksum byte.
//
// All functions here are pure: no I/O, no shared state.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Frame header, fixed on every frame in both directions.
	Header0 = 0xAA
	Header1 = 0x55

	// Command types.
	TypeMovement = 0x80 // movement control
	TypeSetting  = 0x81 // parameter setting, discriminated by subtype

	// Subtypes for TypeSetting.
	SubtypeSpeed = 0x01
	SubtypeAngle = 0x02

	// Length bytes as the firmware expects them.
	movementLen = 0x04
	settingLen  = 0x07
)

// Value bounds for the single-byte parameter fields.
const (
	MaxSpeedRPM  = 115   // hub motor limit
	MaxAccelTime = 255   // units of 0.1 ms
	MaxAngleDeg  = 180.0 // steering servo limit
)

// ErrInvalidDirection is returned by EncodeMovement for a direction code
// outside the six the firmware understands.
var ErrInvalidDirection = errors.New("invalid direction code")

// Direction is a movement command code.
type Direction byte

const (
	Forward   Direction = 0x01
	Backward  Direction = 0x02
	TurnLeft  Direction = 0x03
	TurnRight Direction = 0x04
	Brake     Direction = 0x05
	Stop      Direction = 0x06
)

// Valid reports whether d is one of the six defined movement codes.
func (d Direction) Valid() bool { return d >= Forward && d <= Stop }

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case TurnLeft:
		return "turn-left"
	case TurnRight:
		return "turn-right"
	case Brake:
		return "brake"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(d))
	}
}

// ActuatorName renders the target ID byte for log and display text.
// 0 addresses the whole vehicle, 1-4 the individual wheel hubs; the encoder
// accepts any byte, so unknown values are named explicitly rather than
// defaulted.
func ActuatorName(id byte) string {
	switch id {
	case 0:
		return "vehicle"
	case 1, 2, 3, 4:
		return fmt.Sprintf("wheel %d", id)
	default:
		return fmt.Sprintf("unknown(id=%d)", id)
	}
}

// Checksum sums every byte after the two-byte header, truncated to the low
// 8 bits. Input that does not begin with the header is summed whole; the
// receive path depends on the header-present branch.
func Checksum(b []byte) byte {
	if len(b) >= 2 && b[0] == Header0 && b[1] == Header1 {
		b = b[2:]
	}
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// EncodeMovement builds a movement command frame:
//
//	AA 55 04 80 [ID] [DIRECTION] [CHECKSUM]
//
// It returns ErrInvalidDirection for a direction outside Forward..Stop.
// The ID byte is passed through unchecked.
func EncodeMovement(dir Direction, id byte) ([]byte, error) {
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidDirection, byte(dir))
	}
	frame := []byte{Header0, Header1, movementLen, TypeMovement, id, byte(dir)}
	return append(frame, Checksum(frame)), nil
}

// EncodeSpeed builds a speed setting frame:
//
//	AA 55 07 81 01 [ID] [SPEED] [ACCEL] [CHECKSUM]
//
// speedRPM is clamped to [0, 115] and accelTime (units of 0.1 ms) to
// [0, 255] before encoding, so EncodeSpeed never fails.
func EncodeSpeed(speedRPM, accelTime int, id byte) []byte {
	speedRPM = clamp(speedRPM, 0, MaxSpeedRPM)
	accelTime = clamp(accelTime, 0, MaxAccelTime)
	frame := []byte{Header0, Header1, settingLen, TypeSetting, SubtypeSpeed, id, byte(speedRPM), byte(accelTime)}
	return append(frame, Checksum(frame))
}

// EncodeAngle builds a steering angle frame:
//
//	AA 55 07 81 02 [ID] [ANGLE] 00 [CHECKSUM]
//
// angleDegrees is clamped to [0.0, 180.0] and truncated; the byte encoding
// is linear identity on that range. Never fails.
func EncodeAngle(angleDegrees float64, id byte) []byte {
	if angleDegrees < 0 {
		angleDegrees = 0
	}
	if angleDegrees > MaxAngleDeg {
		angleDegrees = MaxAngleDeg
	}
	angleByte := byte(int(angleDegrees * 180.0 / 180.0))
	frame := []byte{Header0, Header1, settingLen, TypeSetting, SubtypeAngle, id, angleByte, 0x00}
	return append(frame, Checksum(frame))
}

// DecodeAngle maps an angle byte back to degrees. The mapping is linear
// identity; the full byte range 0-255 is accepted and passed through.
func DecodeAngle(angleByte byte) float64 {
	return float64(angleByte) * 180.0 / 180.0
}

// FormatHex renders bytes as two-digit uppercase hex, space-separated.
// This is the canonical human-readable form used on every log surface.
func FormatHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
