// Package dsp provides the spectral primitives shared by the fall
// detector and diagnostic paths: an in-place radix-2 FFT, windowed
// magnitude spectrograms, and decibel scaling.
//
// All functions are pure and stateless; callers may invoke them from
// multiple goroutines on distinct slices.
package dsp

import (
	"fmt"
	"math"
	"math/bits"
)

// FFT performs an in-place radix-2 Cooley-Tukey fast Fourier transform
// over the complex signal (re[i], im[i]).
//
// Both slices must have the same length, and the length must be a power
// of two. Violating either precondition is a programming error, not a
// runtime condition, and FFT panics.
func FFT(re, im []float64) {
	n := len(re)
	if len(im) != n {
		panic(fmt.Sprintf("dsp: FFT length mismatch: re=%d im=%d", n, len(im)))
	}
	if n == 0 || n&(n-1) != 0 {
		panic(fmt.Sprintf("dsp: FFT length %d is not a power of two", n))
	}
	if n == 1 {
		return
	}

	// Bit-reversal permutation.
	shift := 64 - uint(bits.TrailingZeros(uint(n)))
	for i := 1; i < n; i++ {
		j := int(bits.Reverse64(uint64(i)) >> shift)
		if j > i {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	// Butterflies.
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := -2 * math.Pi / float64(size)
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				angle := step * float64(k)
				wr, wi := math.Cos(angle), math.Sin(angle)

				even, odd := start+k, start+k+half
				tr := wr*re[odd] - wi*im[odd]
				ti := wr*im[odd] + wi*re[odd]

				re[odd] = re[even] - tr
				im[odd] = im[even] - ti
				re[even] += tr
				im[even] += ti
			}
		}
	}
}

// IFFT performs the inverse transform in place via the
// conjugate-and-rescale identity: ifft(x) = conj(fft(conj(x))) / n.
// The same power-of-two precondition as [FFT] applies.
func IFFT(re, im []float64) {
	n := float64(len(re))
	for i := range im {
		im[i] = -im[i]
	}
	FFT(re, im)
	for i := range re {
		re[i] /= n
		im[i] = -im[i] / n
	}
}
