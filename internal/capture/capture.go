// Package capture implements the blocking microphone capture session
// that records one spoken instruction into a WAV file.
//
// A session claims the (exclusive) microphone, writes a placeholder WAV
// header, and reads 30 ms frames, classifying each against a silence
// threshold. Recording stops when trailing silence exceeds its window
// after at least one voiced frame, or when the hard duration ceiling is
// reached. The header byte counts are patched only after all samples
// are written, and the device and file are released on every exit path.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/sentina/pkg/audio"
)

// Config holds the capture tuning knobs.
type Config struct {
	// SilenceThresholdDBFS classifies a frame as voice when its RMS
	// level is at or above this value. Default: -45 dBFS.
	SilenceThresholdDBFS float64

	// TrailingSilence stops the recording once this much continuous
	// silence follows the last voiced frame. Default: 1.5s.
	TrailingSilence time.Duration

	// MaxDuration is the hard recording ceiling. Default: 8s.
	MaxDuration time.Duration

	// Dir is where recordings are written. Default: os.TempDir().
	Dir string
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.SilenceThresholdDBFS == 0 {
		c.SilenceThresholdDBFS = -45
	}
	if c.TrailingSilence <= 0 {
		c.TrailingSilence = 1500 * time.Millisecond
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 8 * time.Second
	}
	if c.Dir == "" {
		c.Dir = os.TempDir()
	}
	return c
}

// Callbacks are the per-session observer hooks. Any field may be nil.
// They are invoked from the capturing goroutine; keep them fast.
type Callbacks struct {
	// OnStarted fires once the device is open and the file created.
	OnStarted func(path string)

	// OnLevel fires per frame with the frame RMS level in dBFS.
	OnLevel func(dbfs float64)

	// OnFinished fires after a successful stop, header patched.
	OnFinished func(Result)

	// OnError fires when the session aborts; the partial file has been
	// removed.
	OnError func(error)
}

// Result describes a finished recording.
type Result struct {
	// Path of the finished WAV file. The caller owns the file and
	// removes it after transcription.
	Path string

	// Duration of retained audio.
	Duration time.Duration

	// Voiced reports whether any frame crossed the silence threshold.
	Voiced bool
}

// Controller records instruction audio through an [audio.Opener].
// Sessions are strictly sequential; the caller guarantees microphone
// ownership before calling Record.
type Controller struct {
	opener audio.Opener
	cfg    Config
}

// New creates a Controller with the given device opener and config.
func New(opener audio.Opener, cfg Config) *Controller {
	return &Controller{opener: opener, cfg: cfg.withDefaults()}
}

// Record runs one blocking capture session and returns the finished
// recording. On error the partial file is deleted and the error is also
// delivered to cb.OnError.
func (c *Controller) Record(ctx context.Context, cb Callbacks) (Result, error) {
	res, err := c.record(ctx, cb)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return Result{}, err
	}
	if cb.OnFinished != nil {
		cb.OnFinished(res)
	}
	return res, nil
}

func (c *Controller) record(ctx context.Context, cb Callbacks) (_ Result, err error) {
	dev, err := c.opener.Open(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("capture: open device: %w", err)
	}
	defer dev.Close()

	path := filepath.Join(c.cfg.Dir, "capture-"+uuid.NewString()+".wav")
	f, err := os.Create(path)
	if err != nil {
		return Result{}, fmt.Errorf("capture: create recording file: %w", err)
	}
	defer func() {
		f.Close()
		if err != nil {
			// Never leave a partial recording with a stale header behind.
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("capture: cannot remove partial recording", "path", path, "err", rmErr)
			}
		}
	}()

	ww, err := audio.NewWAVWriter(f, audio.Format{
		SampleRate:    audio.SampleRate,
		Channels:      1,
		BitsPerSample: audio.BitsPerSample,
	})
	if err != nil {
		return Result{}, fmt.Errorf("capture: %w", err)
	}

	if cb.OnStarted != nil {
		cb.OnStarted(path)
	}

	frame := make([]int16, audio.SamplesPerFrame)
	var (
		elapsed  time.Duration
		retained time.Duration
		trailing time.Duration
		voiced   bool
	)

	for {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("capture: %w", ctx.Err())
		}

		n, readErr := dev.ReadFrame(frame)
		if readErr != nil {
			return Result{}, fmt.Errorf("capture: read frame: %w", readErr)
		}
		samples := frame[:n]
		elapsed += audio.FrameDuration

		level := audio.DBFS(audio.RMSInt16(samples))
		if cb.OnLevel != nil {
			cb.OnLevel(level)
		}

		isVoice := level >= c.cfg.SilenceThresholdDBFS
		if isVoice {
			voiced = true
			trailing = 0
		} else {
			trailing += audio.FrameDuration
		}

		// Voice frames are always retained; silence only while still
		// inside the trailing window behind the last voiced frame.
		if isVoice || trailing <= c.cfg.TrailingSilence {
			if err := ww.WriteSamples(samples); err != nil {
				return Result{}, err
			}
			retained += audio.FrameDuration
		}

		if voiced && trailing > c.cfg.TrailingSilence {
			break
		}
		if elapsed >= c.cfg.MaxDuration {
			break
		}
	}

	if err := ww.Close(); err != nil {
		return Result{}, fmt.Errorf("capture: finalise recording: %w", err)
	}
	if err := f.Sync(); err != nil {
		slog.Warn("capture: fsync failed", "path", path, "err", err)
	}

	return Result{Path: path, Duration: retained, Voiced: voiced}, nil
}
