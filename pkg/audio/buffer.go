package audio

import (
	"errors"
	"io"
)

// SeekBuffer is an in-memory [io.WriteSeeker]. The WAV writer needs to
// seek back and patch its header, which rules out bytes.Buffer; this
// covers recordings that never touch disk (wake-word probes, tests).
type SeekBuffer struct {
	data []byte
	pos  int
}

// Write writes p at the current position, growing the buffer as needed.
func (b *SeekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		b.data = append(b.data, make([]byte, need-len(b.data))...)
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

// Seek sets the position for the next Write.
func (b *SeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int
	switch whence {
	case io.SeekStart:
		pos = int(offset)
	case io.SeekCurrent:
		pos = b.pos + int(offset)
	case io.SeekEnd:
		pos = len(b.data) + int(offset)
	default:
		return 0, errors.New("audio: invalid seek whence")
	}
	if pos < 0 {
		return 0, errors.New("audio: negative seek position")
	}
	b.pos = pos
	return int64(pos), nil
}

// Bytes returns the written data. The slice is owned by the buffer.
func (b *SeekBuffer) Bytes() []byte { return b.data }
