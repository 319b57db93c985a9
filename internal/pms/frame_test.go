package pms

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseFrame_Fields(t *testing.T) {
	f, err := ParseFrame(fixtureFrame)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if f.PM1_0Standard != 11 || f.PM2_5Standard != 21 || f.PM10Standard != 31 {
		t.Errorf("standard = %d/%d/%d, want 11/21/31", f.PM1_0Standard, f.PM2_5Standard, f.PM10Standard)
	}
	if f.PM1_0Env != 10 || f.PM2_5Env != 20 || f.PM10Env != 30 {
		t.Errorf("env = %d/%d/%d, want 10/20/30", f.PM1_0Env, f.PM2_5Env, f.PM10Env)
	}
	if f.Particles != [6]uint16{1, 2, 3, 4, 5, 6} {
		t.Errorf("Particles = %v, want [1 2 3 4 5 6]", f.Particles)
	}
	if f.Reserved != ReservedWord {
		t.Errorf("Reserved = 0x%04x, want 0x%04x", f.Reserved, ReservedWord)
	}
	if f.Checksum != 0x01D2 {
		t.Errorf("Checksum = 0x%04x, want 0x01d2", f.Checksum)
	}
	if got := f.Sample(); got != fixtureSample {
		t.Errorf("Sample() = %v, want %v", got, fixtureSample)
	}
}

func TestParseFrame_Errors(t *testing.T) {
	badLength := bytes.Clone(fixtureFrame)
	badLength[2] = 0x01
	badMarker := bytes.Clone(fixtureFrame)
	badMarker[1] = 0x4E
	badSum := bytes.Clone(fixtureFrame)
	badSum[31] ^= 0x01

	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"short", fixtureFrame[:31], ErrShortFrame},
		{"marker", badMarker, ErrBadMarker},
		{"length", badLength, ErrBadLength},
		{"checksum", badSum, ErrChecksum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame(tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseFrame error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestChecksum_Wraps(t *testing.T) {
	b := bytes.Repeat([]byte{0xFF}, 300)
	// 300*255 = 76500, minus 65536
	if got := Checksum(b); got != 10964 {
		t.Errorf("Checksum = %d, want 10964", got)
	}
}

func TestEncodeFrame_MatchesFixtureLayout(t *testing.T) {
	b := EncodeFrame(fixtureSample)
	if len(b) != FrameSize {
		t.Fatalf("len = %d, want %d", len(b), FrameSize)
	}
	// standard values mirror env, so only the env slots and bins line up
	if !bytes.Equal(b[10:30], fixtureFrame[10:30]) {
		t.Errorf("data words = % x, want % x", b[10:30], fixtureFrame[10:30])
	}
	if !bytes.Equal(b[:4], fixtureFrame[:4]) {
		t.Errorf("header = % x, want % x", b[:4], fixtureFrame[:4])
	}
}

func TestSample_IsZero(t *testing.T) {
	if !(Sample{}).IsZero() {
		t.Error("zero Sample reported non-zero")
	}
	if fixtureSample.IsZero() {
		t.Error("fixture Sample reported zero")
	}
}
