package pms

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureFrame carries standard values 11/21/31, environmental values
// 10/20/30 and bins 1..6.
var fixtureFrame = []byte{
	0x42, 0x4D, 0x00, 0x1C,
	0x00, 0x0B, 0x00, 0x15, 0x00, 0x1F, // standard
	0x00, 0x0A, 0x00, 0x14, 0x00, 0x1E, // environmental
	0x00, 0x01, 0x00, 0x02, 0x00, 0x03,
	0x00, 0x04, 0x00, 0x05, 0x00, 0x06,
	0x97, 0x00, // reserved
	0x01, 0xD2, // checksum
}

var fixtureSample = Sample{
	PM1_0: 10, PM2_5: 20, PM10: 30,
	Particles0_3um: 1, Particles0_5um: 2, Particles1_0um: 3,
	Particles2_5um: 4, Particles5_0um: 5, Particles10um: 6,
}

func TestDecode_FixtureFrame(t *testing.T) {
	got, rest, outcome := Decode(nil, fixtureFrame)
	require.Equal(t, OK, outcome)
	assert.Empty(t, rest)
	if diff := cmp.Diff(fixtureSample, got); diff != "" {
		t.Errorf("sample mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_NoiseBeforeFrame(t *testing.T) {
	input := append([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, fixtureFrame...)
	require.Len(t, input, 40)

	got, rest, outcome := Decode(nil, input)
	require.Equal(t, OK, outcome)
	assert.Empty(t, rest)
	assert.Equal(t, fixtureSample, got)
}

func TestDecode_EmptyChunkLeavesBufferAlone(t *testing.T) {
	buf := []byte{0x00, 0x42, 0x4D}
	_, rest, outcome := Decode(buf, nil)
	assert.Equal(t, NeedMoreData, outcome)
	assert.Equal(t, []byte{0x00, 0x42, 0x4D}, rest, "leading garbage must not be trimmed without new bytes")
}

func TestDecode_PartialFrameIsKept(t *testing.T) {
	var b Buffer

	_, outcome := b.Feed(fixtureFrame[:20])
	assert.Equal(t, NeedMoreData, outcome)
	assert.Equal(t, 20, b.Len())

	got, outcome := b.Feed(fixtureFrame[20:])
	require.Equal(t, OK, outcome)
	assert.Equal(t, fixtureSample, got)
	assert.Zero(t, b.Len())
}

func TestDecode_ConsumedBytesAreNotReprocessed(t *testing.T) {
	var b Buffer
	_, outcome := b.Feed(fixtureFrame)
	require.Equal(t, OK, outcome)

	_, outcome = b.Feed(nil)
	assert.Equal(t, NeedMoreData, outcome)
	assert.Zero(t, b.Len())

	// the same bytes again form a fresh frame
	_, outcome = b.Feed(fixtureFrame)
	assert.Equal(t, OK, outcome)
}

func TestDecode_TwoFramesInOneChunk(t *testing.T) {
	var b Buffer
	input := append(append([]byte{}, fixtureFrame...), fixtureFrame...)

	_, outcome := b.Feed(input)
	require.Equal(t, OK, outcome)
	assert.Equal(t, FrameSize, b.Len(), "second frame stays buffered")
}

func TestDecode_BadSecondMarker(t *testing.T) {
	var b Buffer

	_, outcome := b.Feed(append([]byte{0x42, 0x00}, fixtureFrame[:30]...))
	assert.Equal(t, Resync, outcome)
	assert.Equal(t, 31, b.Len(), "only the first byte is dropped")

	got, outcome := b.Feed(fixtureFrame[30:])
	require.Equal(t, OK, outcome)
	assert.Equal(t, fixtureSample, got)
}

func TestDecode_BadLengthClearsBuffer(t *testing.T) {
	frame := bytes.Clone(fixtureFrame)
	frame[3] = 0x1D

	var b Buffer
	_, outcome := b.Feed(frame)
	assert.Equal(t, Resync, outcome)
	assert.Zero(t, b.Len())
}

func TestDecode_OverrunBoundary(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"199 bytes kept", 199, 198},
		{"200 bytes kept", 200, 199},
		{"201 bytes reset", 201, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 0x42 survives the start-byte hunt, so nothing is trimmed
			// before the overrun check
			_, rest, outcome := Decode(nil, bytes.Repeat([]byte{StartByte1}, tt.size))
			assert.Equal(t, Resync, outcome)
			assert.Len(t, rest, tt.wantLen)
		})
	}
}

func TestDecode_LeadingGarbageIsTrimmed(t *testing.T) {
	_, rest, outcome := Decode(nil, bytes.Repeat([]byte{0x11}, 199))
	assert.Equal(t, NeedMoreData, outcome)
	assert.Empty(t, rest)
}

func TestDecode_ChecksumLaw(t *testing.T) {
	for i := 4; i < checksumOffset; i++ {
		frame := bytes.Clone(fixtureFrame)
		frame[i]++

		var b Buffer
		_, outcome := b.Feed(frame)
		if outcome != ChecksumMismatch {
			t.Errorf("mutating byte %d: outcome = %v, want %v", i, outcome, ChecksumMismatch)
		}
		if b.Len() != 0 {
			t.Errorf("mutating byte %d: buffer length = %d, want 0", i, b.Len())
		}
	}
}

func TestDecode_HeaderMutationNeverYieldsSample(t *testing.T) {
	for i := 0; i < 4; i++ {
		frame := bytes.Clone(fixtureFrame)
		frame[i]++

		var b Buffer
		if _, outcome := b.Feed(frame); outcome == OK {
			t.Errorf("mutating header byte %d: decoded a sample", i)
		}
	}
}

func TestDecode_NoMarkerPairNeverDecodes(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))

	stream := make([]byte, 20000)
	for i := range stream {
		stream[i] = byte(r.IntN(256))
		if i > 0 && stream[i-1] == StartByte1 && stream[i] == StartByte2 {
			stream[i] = 0x00
		}
	}

	var b Buffer
	for len(stream) > 0 {
		n := min(r.IntN(65), len(stream))
		_, outcome := b.Feed(stream[:n])
		stream = stream[n:]

		if outcome == OK {
			t.Fatal("decoded a sample from a stream without a start marker pair")
		}
		if b.Len() > MaxBufferLen {
			t.Fatalf("buffer grew to %d bytes", b.Len())
		}
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	samples := []Sample{
		{},
		fixtureSample,
		{
			PM1_0: 0xFFFF, PM2_5: 0xFFFF, PM10: 0xFFFF,
			Particles0_3um: 0xFFFF, Particles0_5um: 0xFFFF, Particles1_0um: 0xFFFF,
			Particles2_5um: 0xFFFF, Particles5_0um: 0xFFFF, Particles10um: 0xFFFF,
		},
		{PM1_0: 3, PM2_5: 7, PM10: 9, Particles0_3um: 1203, Particles0_5um: 344, Particles1_0um: 58, Particles2_5um: 4, Particles10um: 1},
	}
	for _, want := range samples {
		got, rest, outcome := Decode(nil, EncodeFrame(want))
		require.Equal(t, OK, outcome, "sample %v", want)
		assert.Empty(t, rest)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestBuffer_Reset(t *testing.T) {
	var b Buffer
	b.Feed(fixtureFrame[:10])
	require.Equal(t, 10, b.Len())
	b.Reset()
	assert.Zero(t, b.Len())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "ok", OK.String())
	assert.Equal(t, "need_more_data", NeedMoreData.String())
	assert.Equal(t, "resync", Resync.String())
	assert.Equal(t, "checksum_mismatch", ChecksumMismatch.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
