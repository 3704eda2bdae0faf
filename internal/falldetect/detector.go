// Package falldetect runs the continuous ambient-listening loop that
// detects fall-impact acoustic events. It fuses an external acoustic
// classifier's ranked labels with spectral and temporal heuristics and
// guards downstream handling with a single-flight activation gate.
package falldetect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/sentina/internal/observe"
	"github.com/MrWong99/sentina/pkg/audio"
	"github.com/MrWong99/sentina/pkg/dsp"
	"github.com/MrWong99/sentina/pkg/provider/classifier"
)

// Thresholds are the empirically tuned acceptance constants. They are
// configuration, not algorithmic invariants; every field is exposed for
// retuning in the field.
type Thresholds struct {
	// ImpactScore is the minimum classifier confidence for a label to
	// count as an impact flag.
	ImpactScore float64 `yaml:"impact_score"`

	// StrongPeakRMS is the minimum peak RMS for any acceptance path.
	StrongPeakRMS float64 `yaml:"strong_peak_rms"`

	// Bassy path: close-range impacts with dominant low-frequency energy.
	BassyWidthMs      float64 `yaml:"bassy_width_ms"`
	BassyLowFreq      float64 `yaml:"bassy_low_freq"`
	BassyHighVeto     float64 `yaml:"bassy_high_veto"`
	BassyCentroidVeto float64 `yaml:"bassy_centroid_veto_hz"`

	// Far-field path: selective relaxation for distant impacts.
	FarFieldRMS         float64 `yaml:"far_field_rms"`
	FarFieldWidthMs     float64 `yaml:"far_field_width_ms"`
	FarFieldHighMax     float64 `yaml:"far_field_high_max"`
	FarFieldCentroidMax float64 `yaml:"far_field_centroid_max_hz"`
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ImpactScore:         0.20,
		StrongPeakRMS:       0.15,
		BassyWidthMs:        30,
		BassyLowFreq:        0.35,
		BassyHighVeto:       0.65,
		BassyCentroidVeto:   4200,
		FarFieldRMS:         0.27,
		FarFieldWidthMs:     28,
		FarFieldHighMax:     0.46,
		FarFieldCentroidMax: 4050,
	}
}

// impactVocab is matched by substring against lowercased classifier
// labels. Only top-3 labels per classification group are considered.
var impactVocab = []string{
	"thump", "bang", "slam", "crash", "drop", "thud", "smash", "knock", "fall",
}

const (
	windowDuration = 3 * time.Second
	topK           = 3

	specFrameSize = 512
	specHopSize   = 160 // 10ms at 16kHz
)

// Detector owns the ambient worker. It holds its own microphone stream,
// separate from wake listening; Pause/Resume hand the hardware back and
// forth without preempting a window mid-analysis.
type Detector struct {
	opener     audio.Opener
	classifier classifier.Provider
	gate       *ActivationGate
	thresholds atomic.Pointer[Thresholds]
	onFall     func(Features)
	metrics    *observe.Metrics

	paused  atomic.Bool
	windows atomic.Int64 // analyzed window count, for introspection
}

// New creates a Detector. onFall is invoked from the ambient worker
// after a successful gate acquisition; the callee owns releasing the
// gate when its flow completes.
func New(opener audio.Opener, cls classifier.Provider, gate *ActivationGate, th Thresholds, onFall func(Features)) *Detector {
	d := &Detector{
		opener:     opener,
		classifier: cls,
		gate:       gate,
		onFall:     onFall,
		metrics:    observe.DefaultMetrics(),
	}
	d.thresholds.Store(&th)
	return d
}

// SetThresholds replaces the acceptance constants. Safe to call while
// Run is active; the new values apply from the next analyzed window.
func (d *Detector) SetThresholds(th Thresholds) {
	d.thresholds.Store(&th)
	slog.Info("falldetect: thresholds updated")
}

// Pause stops ambient analysis at the next poll point and releases the
// microphone until Resume.
func (d *Detector) Pause() { d.paused.Store(true) }

// Resume re-enables ambient analysis.
func (d *Detector) Resume() { d.paused.Store(false) }

// Run blocks until ctx is done, filling a sliding window with 50%
// overlap and analyzing each fill. Device errors close the stream and
// re-open after a backoff; classifier errors are treated as "no impact
// heard" and never stop the loop.
func (d *Detector) Run(ctx context.Context) error {
	windowSamples := int(windowDuration.Seconds() * float64(audio.SampleRate))
	buf := make([]float64, 0, windowSamples)
	frame := make([]int16, audio.SamplesPerFrame)

	var dev audio.Device
	closeDev := func() {
		if dev != nil {
			dev.Close()
			dev = nil
		}
	}
	defer closeDev()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.paused.Load() {
			closeDev()
			buf = buf[:0]
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		if dev == nil {
			var err error
			dev, err = d.opener.Open(ctx)
			if err != nil {
				slog.Error("falldetect: cannot open ambient device", "err", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Second):
				}
				continue
			}
		}

		n, err := dev.ReadFrame(frame)
		if err != nil {
			slog.Warn("falldetect: ambient read failed, reopening", "err", err)
			closeDev()
			buf = buf[:0]
			continue
		}
		buf = append(buf, audio.Float64Samples(frame[:n])...)

		if len(buf) >= windowSamples {
			d.analyze(ctx, buf[:windowSamples])
			// Keep the second half so consecutive windows overlap.
			half := windowSamples / 2
			buf = append(buf[:0], buf[half:windowSamples]...)
		}
	}
}

// analyze runs feature extraction, classifier fusion and the decision
// function over one full window.
func (d *Detector) analyze(ctx context.Context, samples []float64) {
	d.windows.Add(1)
	d.metrics.FallWindows.Add(ctx, 1)

	cfg := dsp.SpectrogramConfig{
		SampleRate: audio.SampleRate,
		FrameSize:  specFrameSize,
		HopSize:    specHopSize,
		Window:     dsp.WindowHann,
	}
	spec, err := dsp.Spectrogram(samples, cfg)
	if err != nil {
		slog.Error("falldetect: spectrogram failed", "err", err)
		return
	}
	feats := extractFeatures(samples, spec, cfg)

	groups, err := d.classifier.Classify(ctx, samples)
	if err != nil {
		// No classifier verdict means no impact heard. The loop stays up.
		slog.Warn("falldetect: classifier unavailable", "err", err)
		return
	}
	flagged, label, score := d.impactFlag(groups)
	feats.TopLabel, feats.TopScore = label, score
	if !flagged {
		return
	}

	fall, path := d.decide(feats)
	if !fall {
		slog.Debug("falldetect: impact flagged but rejected",
			"label", label, "score", score,
			"rmsPeak", feats.RMSPeak, "widthMs", feats.WidthMs)
		return
	}

	if !d.gate.TryAcquire() {
		// Already handling a fall; silently drop per the single-flight policy.
		slog.Debug("falldetect: event dropped, gate held")
		return
	}
	feats.Path = path
	slog.Info("falldetect: fall accepted",
		"path", path, "label", label, "score", score,
		"rmsPeak", fmt.Sprintf("%.2f", feats.RMSPeak),
		"widthMs", fmt.Sprintf("%.0f", feats.WidthMs),
		"lowFreq", fmt.Sprintf("%.2f", feats.LowFreqRatio),
		"centroidHz", fmt.Sprintf("%.0f", feats.CentroidHz))
	d.onFall(feats)
}

// impactFlag scans the top-K labels of every group for a confident
// impact-vocabulary match.
func (d *Detector) impactFlag(groups []classifier.Group) (flagged bool, topLabel string, topScore float64) {
	minScore := d.thresholds.Load().ImpactScore
	for _, g := range groups {
		labels := g.Labels
		if len(labels) > topK {
			labels = labels[:topK]
		}
		for _, l := range labels {
			if l.Score > topScore {
				topLabel, topScore = l.Name, l.Score
			}
			if l.Score < minScore {
				continue
			}
			name := strings.ToLower(l.Name)
			for _, word := range impactVocab {
				if strings.Contains(name, word) {
					flagged = true
				}
			}
		}
	}
	return flagged, topLabel, topScore
}

// decide applies the two acceptance paths to the extracted features.
// The classifier flag has already been checked by the caller.
func (d *Detector) decide(f Features) (bool, string) {
	th := *d.thresholds.Load()
	strongPeak := f.RMSPeak >= th.StrongPeakRMS

	bassy := strongPeak &&
		f.WidthMs >= th.BassyWidthMs &&
		f.PostSilence &&
		f.LowFreqRatio >= th.BassyLowFreq &&
		!(f.HighFreqRatio >= th.BassyHighVeto || f.CentroidHz >= th.BassyCentroidVeto)
	if bassy {
		return true, "bassy"
	}

	farField := strongPeak &&
		f.PostSilence &&
		f.WidthMs >= th.FarFieldWidthMs &&
		f.RMSPeak >= th.FarFieldRMS &&
		f.HighFreqRatio <= th.FarFieldHighMax &&
		f.CentroidHz <= th.FarFieldCentroidMax
	if farField {
		return true, "farfield"
	}
	return false, ""
}
