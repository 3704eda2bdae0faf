// Package kwspot implements wake.Recognizer by keyword spotting over
// short transcribed probes: it captures fixed-length audio chunks from
// the microphone, submits each to the batch STT provider, and emits the
// transcript when it plausibly contains speech.
//
// This is the "listen loop" approach used when no dedicated keyword
// model is available — the same STT infrastructure serves both probes
// and full instruction capture.
package kwspot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/sentina/pkg/audio"
	"github.com/MrWong99/sentina/pkg/provider/stt"
	"github.com/MrWong99/sentina/pkg/provider/wake"
)

const (
	defaultChunk      = 2 * time.Second
	defaultMinRMSDBFS = -55.0
	resultBuffer      = 4
)

// Compile-time assertion that Recognizer implements wake.Recognizer.
var _ wake.Recognizer = (*Recognizer)(nil)

// Option is a functional option for configuring a Recognizer.
type Option func(*Recognizer)

// WithChunkDuration sets the probe length. Defaults to 2s — long
// enough for a wake word, short enough to keep trigger latency low.
func WithChunkDuration(d time.Duration) Option {
	return func(r *Recognizer) { r.chunk = d }
}

// WithMinLevelDBFS sets the chunk energy floor below which a probe is
// discarded without transcription. Defaults to -55 dBFS.
func WithMinLevelDBFS(db float64) Option {
	return func(r *Recognizer) { r.minDBFS = db }
}

// Recognizer polls the microphone in fixed chunks and transcribes the
// energetic ones.
type Recognizer struct {
	opener  audio.Opener
	stt     stt.Provider
	chunk   time.Duration
	minDBFS float64

	results chan wake.Result

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Recognizer reading from opener and transcribing via p.
func New(opener audio.Opener, p stt.Provider, opts ...Option) *Recognizer {
	r := &Recognizer{
		opener:  opener,
		stt:     p,
		chunk:   defaultChunk,
		minDBFS: defaultMinRMSDBFS,
		results: make(chan wake.Result, resultBuffer),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Results emits recognised utterances.
func (r *Recognizer) Results() <-chan wake.Result { return r.results }

// Start claims the microphone and begins the probe loop.
func (r *Recognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil // already listening
	}

	dev, err := r.opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("kwspot: open device: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	go func() {
		defer close(done)
		defer dev.Close()
		r.loop(loopCtx, dev)
	}()
	return nil
}

// Stop halts recognition and blocks until the device is released.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// loop reads chunk-sized probes and transcribes the loud ones.
func (r *Recognizer) loop(ctx context.Context, dev audio.Device) {
	framesPerChunk := int(r.chunk / audio.FrameDuration)
	if framesPerChunk < 1 {
		framesPerChunk = 1
	}

	buf := make([]int16, 0, framesPerChunk*audio.SamplesPerFrame)
	frame := make([]int16, audio.SamplesPerFrame)

	for {
		if ctx.Err() != nil {
			return
		}

		buf = buf[:0]
		for i := 0; i < framesPerChunk; i++ {
			n, err := dev.ReadFrame(frame)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
					slog.Warn("kwspot: device read failed, stopping", "err", err)
				}
				return
			}
			buf = append(buf, frame[:n]...)
		}

		if audio.DBFS(audio.RMSInt16(buf)) < r.minDBFS {
			continue // quiet probe, skip the STT round-trip
		}

		text, err := r.transcribe(ctx, buf)
		if err != nil {
			if !errors.Is(err, stt.ErrEmptyResult) && ctx.Err() == nil {
				slog.Debug("kwspot: probe transcription failed", "err", err)
			}
			continue
		}

		select {
		case r.results <- wake.Result{Text: text, At: time.Now()}:
		default:
			// Consumer is behind; drop the probe rather than block the mic.
		}
	}
}

// transcribe wraps the probe in a WAV container and submits it.
func (r *Recognizer) transcribe(ctx context.Context, samples []int16) (string, error) {
	var buf audio.SeekBuffer
	ww, err := audio.NewWAVWriter(&buf, audio.Format{
		SampleRate:    audio.SampleRate,
		Channels:      1,
		BitsPerSample: audio.BitsPerSample,
	})
	if err != nil {
		return "", err
	}
	if err := ww.WriteSamples(samples); err != nil {
		return "", err
	}
	if err := ww.Close(); err != nil {
		return "", err
	}
	return r.stt.Transcribe(ctx, bytes.NewReader(buf.Bytes()))
}
