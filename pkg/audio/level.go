package audio

import "math"

// MinDBFS is the level reported for digital silence. It sits well below
// any threshold the pipeline compares against.
const MinDBFS = -120.0

// Float64Samples converts signed 16-bit PCM to float64 samples in [-1, 1).
func Float64Samples(pcm []int16) []float64 {
	out := make([]float64, len(pcm))
	for i, s := range pcm {
		out[i] = float64(s) / 32768.0
	}
	return out
}

// DecodeInt16 reinterprets little-endian byte pairs as int16 samples.
// A trailing odd byte is ignored.
func DecodeInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return out
}

// RMS returns the root-mean-square level of samples in full-scale units.
// Returns 0 for an empty slice.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMSInt16 returns the RMS level of signed 16-bit samples in full-scale
// units (0 = silence, 1 = maximum amplitude).
func RMSInt16(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DBFS converts a full-scale RMS or amplitude level to decibels relative
// to full scale. Levels at or below zero report [MinDBFS].
func DBFS(level float64) float64 {
	if level <= 0 {
		return MinDBFS
	}
	db := 20 * math.Log10(level)
	if db < MinDBFS {
		return MinDBFS
	}
	return db
}

// PeakInt16 returns the largest absolute sample amplitude in full-scale
// units.
func PeakInt16(samples []int16) float64 {
	var peak int32
	for _, s := range samples {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return float64(peak) / 32768.0
}
