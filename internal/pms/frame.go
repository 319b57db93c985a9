package pms

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// StartByte1 and StartByte2 open every frame.
	StartByte1 = 0x42
	StartByte2 = 0x4D

	// FrameSize is the length of a complete frame on the wire.
	FrameSize = 32
	// FrameLength is the value carried in the length field: the number of
	// bytes following it (13 data words plus the checksum word).
	FrameLength = 28

	// ReservedWord is what PMS5003 hardware places in the reserved slot.
	// EncodeFrame uses it; the decoder ignores the slot.
	ReservedWord = 0x9700

	checksumOffset = FrameSize - 2
)

var (
	ErrShortFrame = errors.New("frame shorter than 32 bytes")
	ErrBadMarker  = errors.New("frame does not start with 0x42 0x4d")
	ErrBadLength  = errors.New("frame length field is not 28")
	ErrChecksum   = errors.New("frame checksum mismatch")
)

// Frame is the full content of one sensor frame, including the "standard"
// concentrations that Sample leaves out.
type Frame struct {
	PM1_0Standard uint16
	PM2_5Standard uint16
	PM10Standard  uint16

	PM1_0Env uint16
	PM2_5Env uint16
	PM10Env  uint16

	Particles [6]uint16

	Reserved uint16
	Checksum uint16
}

// Sample returns the environmental-compensated view of the frame.
func (f Frame) Sample() Sample {
	return Sample{
		PM1_0:          f.PM1_0Env,
		PM2_5:          f.PM2_5Env,
		PM10:           f.PM10Env,
		Particles0_3um: f.Particles[0],
		Particles0_5um: f.Particles[1],
		Particles1_0um: f.Particles[2],
		Particles2_5um: f.Particles[3],
		Particles5_0um: f.Particles[4],
		Particles10um:  f.Particles[5],
	}
}

// Checksum returns the 16-bit wrapping sum of b.
func Checksum(b []byte) uint16 {
	var sum uint16
	for _, c := range b {
		sum += uint16(c)
	}
	return sum
}

// ParseFrame validates and decodes exactly one frame held in the first
// FrameSize bytes of b.
func ParseFrame(b []byte) (Frame, error) {
	if len(b) < FrameSize {
		return Frame{}, ErrShortFrame
	}
	if b[0] != StartByte1 || b[1] != StartByte2 {
		return Frame{}, ErrBadMarker
	}
	if n := binary.BigEndian.Uint16(b[2:4]); n != FrameLength {
		return Frame{}, fmt.Errorf("%w: got %d", ErrBadLength, n)
	}

	var words [14]uint16
	for i := range words {
		words[i] = binary.BigEndian.Uint16(b[4+2*i:])
	}

	f := Frame{
		PM1_0Standard: words[0],
		PM2_5Standard: words[1],
		PM10Standard:  words[2],
		PM1_0Env:      words[3],
		PM2_5Env:      words[4],
		PM10Env:       words[5],
		Reserved:      words[12],
		Checksum:      words[13],
	}
	copy(f.Particles[:], words[6:12])

	if sum := Checksum(b[:checksumOffset]); sum != f.Checksum {
		return Frame{}, fmt.Errorf("%w: computed 0x%04x, frame carries 0x%04x", ErrChecksum, sum, f.Checksum)
	}
	return f, nil
}

// EncodeFrame builds a valid frame carrying s. The standard concentrations
// mirror the environmental ones.
func EncodeFrame(s Sample) []byte {
	b := make([]byte, FrameSize)
	b[0], b[1] = StartByte1, StartByte2
	binary.BigEndian.PutUint16(b[2:], FrameLength)

	words := [13]uint16{
		s.PM1_0, s.PM2_5, s.PM10,
		s.PM1_0, s.PM2_5, s.PM10,
		s.Particles0_3um, s.Particles0_5um, s.Particles1_0um,
		s.Particles2_5um, s.Particles5_0um, s.Particles10um,
		ReservedWord,
	}
	for i, w := range words {
		binary.BigEndian.PutUint16(b[4+2*i:], w)
	}
	binary.BigEndian.PutUint16(b[checksumOffset:], Checksum(b[:checksumOffset]))
	return b
}
