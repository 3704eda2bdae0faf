package arecord

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// fakeCapture writes a shell script that emits fixed raw bytes the way
// the real capture binary streams samples.
func fakeCapture(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write fake capture: %v", err)
	}
	return path
}

func TestOpen_ReadsSamples(t *testing.T) {
	t.Parallel()

	// Two samples: 0x0001 and 0x7FFF, little endian.
	o := New("default")
	o.Path = fakeCapture(t, `printf '\001\000\377\177'`)

	dev, err := o.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	buf := make([]int16, 2)
	n, err := dev.ReadFrame(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("ReadFrame: %v", err)
	}
	if n != 2 {
		t.Fatalf("read %d samples, want 2", n)
	}
	if buf[0] != 1 || buf[1] != 32767 {
		t.Errorf("samples = %v, want [1 32767]", buf)
	}
}

func TestReadFrame_ShortStreamReportsEOF(t *testing.T) {
	t.Parallel()

	o := New("default")
	o.Path = fakeCapture(t, `printf '\001\000'`)

	dev, err := o.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	buf := make([]int16, 4)
	n, err := dev.ReadFrame(buf)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	if n != 1 {
		t.Errorf("read %d samples before EOF, want 1", n)
	}
}

func TestOpen_MissingBinary(t *testing.T) {
	t.Parallel()

	o := New("default")
	o.Path = "/nonexistent/arecord"

	if _, err := o.Open(context.Background()); err == nil {
		t.Fatal("expected error for missing capture binary, got nil")
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	o := New("default")
	o.Path = fakeCapture(t, `sleep 10`)

	dev, err := o.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
