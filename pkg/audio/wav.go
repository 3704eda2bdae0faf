package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// wavHeaderSize is the size of the canonical 44-byte PCM WAV header the
// writer emits.
const wavHeaderSize = 44

// ErrNotWAV is returned by [DecodeWAV] when the input does not carry a
// RIFF/WAVE signature.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE stream")

// Format describes the sample layout of a decoded WAV stream.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// WAVWriter streams PCM samples into a WAV container. A placeholder
// header is written up front; the RIFF and data chunk byte counts are
// patched only on Close, after every sample has been written, so a
// half-written file never carries a header that overstates its payload.
type WAVWriter struct {
	w       io.WriteSeeker
	format  Format
	written int // payload bytes
	closed  bool
}

// NewWAVWriter writes a placeholder header for the given format and
// returns a writer ready to accept samples.
func NewWAVWriter(w io.WriteSeeker, format Format) (*WAVWriter, error) {
	ww := &WAVWriter{w: w, format: format}
	if err := ww.writeHeader(0); err != nil {
		return nil, fmt.Errorf("audio: write wav header: %w", err)
	}
	return ww, nil
}

// WriteSamples appends signed 16-bit samples to the data chunk.
func (ww *WAVWriter) WriteSamples(samples []int16) error {
	if ww.closed {
		return errors.New("audio: write after close")
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	n, err := ww.w.Write(buf)
	ww.written += n
	if err != nil {
		return fmt.Errorf("audio: write samples: %w", err)
	}
	return nil
}

// Written returns the number of payload bytes written so far.
func (ww *WAVWriter) Written() int { return ww.written }

// Close patches the header size fields to reflect exactly what was
// written. It does not close the underlying writer. Calling Close more
// than once is safe.
func (ww *WAVWriter) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if _, err := ww.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("audio: seek for header patch: %w", err)
	}
	if err := ww.writeHeader(ww.written); err != nil {
		return fmt.Errorf("audio: patch wav header: %w", err)
	}
	if _, err := ww.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("audio: seek to end: %w", err)
	}
	return nil
}

// writeHeader emits the 44-byte canonical PCM header with the given
// data chunk size.
func (ww *WAVWriter) writeHeader(dataSize int) error {
	f := ww.format
	blockAlign := f.Channels * f.BitsPerSample / 8
	byteRate := f.SampleRate * blockAlign

	var hdr [wavHeaderSize]byte
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], uint32(36+dataSize))
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:], uint16(f.Channels))
	binary.LittleEndian.PutUint32(hdr[24:], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:], uint16(f.BitsPerSample))
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], uint32(dataSize))

	_, err := ww.w.Write(hdr[:])
	return err
}

// DecodeWAV parses a PCM WAV stream and returns its format and samples.
// Unknown chunks between "fmt " and "data" are skipped. Only 16-bit PCM
// payloads are supported; other encodings return an error so the caller
// can apply its own fallback policy.
func DecodeWAV(r io.Reader) (Format, []int16, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Format{}, nil, fmt.Errorf("audio: read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	var format Format
	sawFmt := false

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return Format{}, nil, fmt.Errorf("audio: read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, nil, fmt.Errorf("audio: read fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return Format{}, nil, errors.New("audio: fmt chunk too short")
			}
			codec := binary.LittleEndian.Uint16(body[0:2])
			if codec != 1 {
				return Format{}, nil, fmt.Errorf("audio: unsupported codec %d (want PCM)", codec)
			}
			format = Format{
				Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
			sawFmt = true

		case "data":
			if !sawFmt {
				return Format{}, nil, errors.New("audio: data chunk before fmt chunk")
			}
			if format.BitsPerSample != 16 {
				return Format{}, nil, fmt.Errorf("audio: unsupported bit depth %d", format.BitsPerSample)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, nil, fmt.Errorf("audio: read data chunk: %w", err)
			}
			return format, DecodeInt16(body), nil

		default:
			// Skip unknown chunk (LIST, fact, …).
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return Format{}, nil, fmt.Errorf("audio: skip %q chunk: %w", id, err)
			}
		}
	}
}
