package pms

import "errors"

// MaxBufferLen bounds the resync buffer. Anything longer after trimming is
// treated as unrecoverable garbage and discarded.
const MaxBufferLen = 200

// Outcome is the result of one decode attempt.
type Outcome int

const (
	// OK means a frame was accepted and a Sample produced.
	OK Outcome = iota
	// NeedMoreData means no bytes arrived or the buffer holds less than a
	// frame. The buffer is kept.
	NeedMoreData
	// Resync means the buffer was misaligned or overran and has been
	// trimmed or cleared.
	Resync
	// ChecksumMismatch means a complete frame failed its checksum and the
	// buffer has been cleared.
	ChecksumMismatch
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case NeedMoreData:
		return "need_more_data"
	case Resync:
		return "resync"
	case ChecksumMismatch:
		return "checksum_mismatch"
	default:
		return "unknown"
	}
}

// Decode appends chunk to buf and tries to extract one Sample from the
// front of it. It returns the buffer to carry into the next call; like
// append, it may reuse buf's storage. Decode performs no I/O.
func Decode(buf, chunk []byte) (Sample, []byte, Outcome) {
	if len(chunk) == 0 {
		return Sample{}, buf, NeedMoreData
	}
	buf = append(buf, chunk...)

	// hunt for the first start byte
	i := 0
	for i < len(buf) && buf[i] != StartByte1 {
		i++
	}
	buf = buf[i:]

	if len(buf) > MaxBufferLen {
		return Sample{}, buf[:0], Resync
	}
	if len(buf) < FrameSize {
		return Sample{}, buf, NeedMoreData
	}
	if buf[1] != StartByte2 {
		return Sample{}, buf[1:], Resync
	}

	f, err := ParseFrame(buf[:FrameSize])
	switch {
	case err == nil:
		return f.Sample(), buf[FrameSize:], OK
	case errors.Is(err, ErrChecksum):
		return Sample{}, buf[:0], ChecksumMismatch
	default:
		return Sample{}, buf[:0], Resync
	}
}

// Buffer is the resync buffer owned by a single reader across read
// attempts. The zero value is an empty buffer. Buffer is not safe for
// concurrent use.
type Buffer struct {
	b []byte
}

// Feed decodes chunk against the buffered bytes and keeps whatever Decode
// leaves behind.
func (b *Buffer) Feed(chunk []byte) (Sample, Outcome) {
	s, rest, o := Decode(b.b, chunk)
	if len(rest) == 0 {
		// drop the backing array so a long misaligned stream doesn't pin it
		rest = nil
	}
	b.b = rest
	return s, o
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int { return len(b.b) }

// Reset empties the buffer.
func (b *Buffer) Reset() { b.b = nil }
