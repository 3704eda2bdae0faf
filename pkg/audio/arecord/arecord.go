// Package arecord implements audio.Opener on top of the ALSA arecord
// utility. The capture process is spawned per Open and killed on Close,
// which matches the exclusive-ownership contract of audio.Device: the
// wake recognizer, fall listener and instruction capture each claim the
// microphone for themselves.
package arecord

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/MrWong99/sentina/pkg/audio"
)

// Compile-time assertion that Opener implements audio.Opener.
var _ audio.Opener = (*Opener)(nil)

// Opener spawns arecord for raw 16 kHz mono S16_LE capture.
type Opener struct {
	// DeviceName is the ALSA device ("default", "plughw:1,0", ...).
	DeviceName string

	// Path overrides the arecord executable. Empty means "arecord"
	// resolved via PATH.
	Path string
}

// New creates an Opener for the named ALSA device.
func New(deviceName string) *Opener {
	if deviceName == "" {
		deviceName = "default"
	}
	return &Opener{DeviceName: deviceName}
}

// Open starts the capture process. The returned Device reads raw
// little-endian samples from the process stdout.
func (o *Opener) Open(ctx context.Context) (audio.Device, error) {
	path := o.Path
	if path == "" {
		path = "arecord"
	}
	cmd := exec.Command(path,
		"-q",
		"-D", o.DeviceName,
		"-f", "S16_LE",
		"-r", strconv.Itoa(audio.SampleRate),
		"-c", "1",
		"-t", "raw",
	)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("arecord: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("arecord: start %q on %q: %w", path, o.DeviceName, err)
	}

	d := &device{cmd: cmd, out: out}
	// Honour a cancelled context the same way Close does.
	if ctx != nil && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() { d.Close() })
		d.stopWatch = stop
	}
	return d, nil
}

type device struct {
	cmd       *exec.Cmd
	out       io.ReadCloser
	stopWatch func() bool
	closeOnce sync.Once
	raw       []byte
}

// ReadFrame fills buf with decoded samples and returns the count. A
// dead capture process surfaces as io.EOF.
func (d *device) ReadFrame(buf []int16) (int, error) {
	need := len(buf) * 2
	if cap(d.raw) < need {
		d.raw = make([]byte, need)
	}
	raw := d.raw[:need]
	n, err := io.ReadFull(d.out, raw)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("arecord: read: %w", err)
	}
	samples := n / 2
	for i := range samples {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	if samples < len(buf) {
		return samples, io.EOF
	}
	return samples, nil
}

// Close kills the capture process and reaps it. Safe to call twice.
func (d *device) Close() error {
	d.closeOnce.Do(func() {
		if d.stopWatch != nil {
			d.stopWatch()
		}
		d.out.Close()
		if d.cmd.Process != nil {
			_ = d.cmd.Process.Kill()
		}
		_ = d.cmd.Wait()
	})
	return nil
}
