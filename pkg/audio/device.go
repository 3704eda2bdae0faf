package audio

import "context"

// Device is an open microphone stream delivering 16 kHz mono signed
// 16-bit samples. The microphone is an exclusive resource: exactly one
// Device may be open at a time, and ownership transfer between the
// wake recognizer, the ambient fall listener, and instruction capture
// is explicit — stop one before opening for another.
type Device interface {
	// ReadFrame blocks until it has filled buf (one capture tick) and
	// returns the number of samples read. A short read with io.EOF
	// semantics signals the stream ended.
	ReadFrame(buf []int16) (int, error)

	// Close releases the device. Calling Close more than once is safe.
	Close() error
}

// Opener opens the microphone. Implementations wrap the platform audio
// API; tests supply scripted fakes.
type Opener interface {
	// Open claims the device. Returns an error when the microphone is
	// unavailable or claimed elsewhere (DeviceError: fail closed, the
	// caller reports via its lifecycle callback and does not retry).
	Open(ctx context.Context) (Device, error)
}
