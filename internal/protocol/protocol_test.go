package protocol

import (
	"bytes"
	"errors"
	"testing"
)

// sumAfterHeader recomputes the checksum rule independently of Checksum:
// sum of every byte from LEN through the last payload byte, low 8 bits.
func sumAfterHeader(frame []byte) byte {
	var sum int
	for _, b := range frame[2 : len(frame)-1] {
		sum += int(b)
	}
	return byte(sum & 0xFF)
}

func TestEncodeMovement(t *testing.T) {
	for dir := Forward; dir <= Stop; dir++ {
		for id := byte(0); id <= 4; id++ {
			frame, err := EncodeMovement(dir, id)
			if err != nil {
				t.Fatalf("EncodeMovement(%v, %d): %v", dir, id, err)
			}
			if len(frame) != 7 {
				t.Fatalf("EncodeMovement(%v, %d): got %d bytes, want 7", dir, id, len(frame))
			}
			if frame[0] != 0xAA || frame[1] != 0x55 {
				t.Errorf("bad header: % X", frame[:2])
			}
			if frame[2] != 0x04 || frame[3] != 0x80 {
				t.Errorf("bad LEN/TYPE: % X", frame[2:4])
			}
			if frame[4] != id || frame[5] != byte(dir) {
				t.Errorf("bad payload: % X", frame[4:6])
			}
			if want := sumAfterHeader(frame); frame[6] != want {
				t.Errorf("checksum = 0x%02X, want 0x%02X", frame[6], want)
			}
		}
	}
}

func TestEncodeMovementKnownFrame(t *testing.T) {
	frame, err := EncodeMovement(Forward, 0x00)
	if err != nil {
		t.Fatal(err)
	}
	// Checksum computed from the stated rule: (0x04+0x80+0x00+0x01) & 0xFF.
	want := []byte{0xAA, 0x55, 0x04, 0x80, 0x00, 0x01, 0x85}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = %s, want %s", FormatHex(frame), FormatHex(want))
	}
}

func TestEncodeMovementInvalidDirection(t *testing.T) {
	for _, dir := range []Direction{0, 7, 0x10, 0xFF} {
		frame, err := EncodeMovement(dir, 0)
		if !errors.Is(err, ErrInvalidDirection) {
			t.Errorf("EncodeMovement(%d): err = %v, want ErrInvalidDirection", dir, err)
		}
		if frame != nil {
			t.Errorf("EncodeMovement(%d): got frame %s, want none", dir, FormatHex(frame))
		}
	}
}

func TestEncodeSpeedClamps(t *testing.T) {
	tests := []struct {
		rpm, accel         int
		wantRPM, wantAccel byte
	}{
		{-50, -10, 0, 0},
		{0, 0, 0, 0},
		{70, 128, 70, 128},
		{115, 255, 115, 255},
		{300, 400, 115, 255},
	}
	for _, tt := range tests {
		frame := EncodeSpeed(tt.rpm, tt.accel, 2)
		if len(frame) != 9 {
			t.Fatalf("EncodeSpeed(%d, %d): got %d bytes, want 9", tt.rpm, tt.accel, len(frame))
		}
		if frame[2] != 0x07 || frame[3] != 0x81 || frame[4] != 0x01 {
			t.Errorf("bad LEN/TYPE/SUBTYPE: % X", frame[2:5])
		}
		if frame[5] != 2 {
			t.Errorf("id = %d, want 2", frame[5])
		}
		if frame[6] != tt.wantRPM || frame[7] != tt.wantAccel {
			t.Errorf("EncodeSpeed(%d, %d): encoded (%d, %d), want (%d, %d)",
				tt.rpm, tt.accel, frame[6], frame[7], tt.wantRPM, tt.wantAccel)
		}
		if want := sumAfterHeader(frame); frame[8] != want {
			t.Errorf("checksum = 0x%02X, want 0x%02X", frame[8], want)
		}
	}
}

func TestEncodeAngleClamps(t *testing.T) {
	tests := []struct {
		deg  float64
		want byte
	}{
		{-30.0, 0},
		{0.0, 0},
		{90.0, 90},
		{179.9, 179},
		{180.0, 180},
		{250.0, 180},
	}
	for _, tt := range tests {
		frame := EncodeAngle(tt.deg, 0)
		if len(frame) != 9 {
			t.Fatalf("EncodeAngle(%v): got %d bytes, want 9", tt.deg, len(frame))
		}
		if frame[2] != 0x07 || frame[3] != 0x81 || frame[4] != 0x02 {
			t.Errorf("bad LEN/TYPE/SUBTYPE: % X", frame[2:5])
		}
		if frame[6] != tt.want {
			t.Errorf("EncodeAngle(%v): byte = %d, want %d", tt.deg, frame[6], tt.want)
		}
		if frame[7] != 0x00 {
			t.Errorf("EncodeAngle(%v): reserved byte = 0x%02X, want 0x00", tt.deg, frame[7])
		}
		if want := sumAfterHeader(frame); frame[8] != want {
			t.Errorf("checksum = 0x%02X, want 0x%02X", frame[8], want)
		}
	}
}

func TestChecksum(t *testing.T) {
	// Header-present input sums only the bytes after the header.
	withHeader := []byte{0xAA, 0x55, 0x04, 0x80, 0x00, 0x01}
	if got := Checksum(withHeader); got != 0x85 {
		t.Errorf("Checksum(header-present) = 0x%02X, want 0x85", got)
	}

	// Header-absent input is summed whole.
	noHeader := []byte{0x04, 0x80, 0x00, 0x01}
	if got := Checksum(noHeader); got != 0x85 {
		t.Errorf("Checksum(header-absent) = 0x%02X, want 0x85", got)
	}

	// 8-bit truncation.
	if got := Checksum([]byte{0xFF, 0xFF, 0x02}); got != 0x00 {
		t.Errorf("Checksum truncation = 0x%02X, want 0x00", got)
	}

	// Excluding the trailing checksum byte is the caller's slicing
	// responsibility: a complete frame checks out only over frame[:len-1].
	frame, _ := EncodeMovement(Stop, 3)
	if got := Checksum(frame[:len(frame)-1]); got != frame[len(frame)-1] {
		t.Errorf("Checksum(frame[:len-1]) = 0x%02X, want 0x%02X", got, frame[len(frame)-1])
	}
	if got := Checksum(frame); got == frame[len(frame)-1] && frame[len(frame)-1] != 0 {
		t.Errorf("Checksum over the full frame should include the trailing byte")
	}
}

func TestDecodeMovementRoundTrip(t *testing.T) {
	for dir := Forward; dir <= Stop; dir++ {
		for id := byte(0); id <= 4; id++ {
			frame, err := EncodeMovement(dir, id)
			if err != nil {
				t.Fatal(err)
			}
			// Acknowledgements carry the same layout without the checksum.
			resp := Decode(frame[:len(frame)-1])
			if resp == nil {
				t.Fatalf("Decode(movement %v id=%d) = nil", dir, id)
			}
			if resp.Kind != KindMovement || resp.ID != id || resp.Direction != dir {
				t.Errorf("Decode = %+v, want movement id=%d dir=%v", resp, id, dir)
			}
		}
	}
}

func TestDecodeSpeedRoundTrip(t *testing.T) {
	tests := []struct {
		rpm, accel         int
		wantRPM, wantAccel int
	}{
		{0, 0, 0, 0},
		{70, 10, 70, 10},
		{300, 400, 115, 255},
		{-1, -1, 0, 0},
	}
	for _, tt := range tests {
		frame := EncodeSpeed(tt.rpm, tt.accel, 1)
		resp := Decode(frame[:len(frame)-1])
		if resp == nil {
			t.Fatalf("Decode(speed %d/%d) = nil", tt.rpm, tt.accel)
		}
		if resp.Kind != KindSpeed || resp.ID != 1 || resp.Speed != tt.wantRPM || resp.Accel != tt.wantAccel {
			t.Errorf("Decode = %+v, want speed id=1 rpm=%d accel=%d", resp, tt.wantRPM, tt.wantAccel)
		}
	}
}

func TestDecodeAngleRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 45.5, 90, 180, 250} {
		frame := EncodeAngle(deg, 0)
		resp := Decode(frame[:len(frame)-1])
		if resp == nil {
			t.Fatalf("Decode(angle %v) = nil", deg)
		}
		want := DecodeAngle(frame[6])
		if resp.Kind != KindAngle || resp.Angle != want {
			t.Errorf("Decode = %+v, want angle %v", resp, want)
		}
	}
}

func TestDecodeRejects(t *testing.T) {
	full, _ := EncodeMovement(Forward, 0)
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte{0xAA, 0x55, 0x04, 0x80, 0x00}},
		{"bad header", []byte{0xAB, 0x55, 0x04, 0x80, 0x00, 0x01}},
		{"swapped header", []byte{0x55, 0xAA, 0x04, 0x80, 0x00, 0x01}},
		{"unknown type at len 6", []byte{0xAA, 0x55, 0x04, 0x82, 0x00, 0x01}},
		{"command frame with checksum", full},
		{"unknown subtype", []byte{0xAA, 0x55, 0x07, 0x81, 0x03, 0x00, 0x00, 0x00}},
		{"setting at wrong length", []byte{0xAA, 0x55, 0x07, 0x81, 0x01, 0x00, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		if resp := Decode(tt.data); resp != nil {
			t.Errorf("Decode(%s) = %+v, want nil", tt.name, resp)
		}
	}
}

func TestDecodeAngleFullByteRange(t *testing.T) {
	// The clamp keeps the encoder inside 0-180, but the decoder passes the
	// whole byte space through the same linear formula.
	for _, b := range []byte{0, 90, 180, 181, 255} {
		if got := DecodeAngle(b); got != float64(b) {
			t.Errorf("DecodeAngle(%d) = %v, want %v", b, got, float64(b))
		}
	}
}

func TestFormatHex(t *testing.T) {
	if got := FormatHex(nil); got != "" {
		t.Errorf("FormatHex(nil) = %q, want empty", got)
	}
	if got := FormatHex([]byte{0xAA, 0x55, 0x0F, 0x00}); got != "AA 55 0F 00" {
		t.Errorf("FormatHex = %q, want %q", got, "AA 55 0F 00")
	}
}

func TestDirectionString(t *testing.T) {
	tests := []struct {
		dir  Direction
		want string
	}{
		{Forward, "forward"},
		{Backward, "backward"},
		{TurnLeft, "turn-left"},
		{TurnRight, "turn-right"},
		{Brake, "brake"},
		{Stop, "stop"},
		{Direction(0x0A), "unknown(0x0A)"},
	}
	for _, tt := range tests {
		if got := tt.dir.String(); got != tt.want {
			t.Errorf("Direction(%d).String() = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestActuatorName(t *testing.T) {
	tests := []struct {
		id   byte
		want string
	}{
		{0, "vehicle"},
		{1, "wheel 1"},
		{4, "wheel 4"},
		{9, "unknown(id=9)"},
	}
	for _, tt := range tests {
		if got := ActuatorName(tt.id); got != tt.want {
			t.Errorf("ActuatorName(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
