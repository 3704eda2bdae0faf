package falldetect

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/sentina/pkg/audio"
	"github.com/MrWong99/sentina/pkg/dsp"
	"github.com/MrWong99/sentina/pkg/provider/classifier"
	"github.com/MrWong99/sentina/pkg/provider/classifier/mock"
)

func newDetector(cls classifier.Provider, gate *ActivationGate, onFall func(Features)) *Detector {
	if onFall == nil {
		onFall = func(Features) {}
	}
	return New(nil, cls, gate, DefaultThresholds(), onFall)
}

func TestDecide_BassyDoorSlam(t *testing.T) {
	t.Parallel()

	d := newDetector(nil, nil, nil)
	ok, path := d.decide(Features{
		RMSPeak:       0.30,
		WidthMs:       40,
		LowFreqRatio:  0.5,
		HighFreqRatio: 0.2,
		CentroidHz:    2000,
		PostSilence:   true,
	})
	if !ok || path != "bassy" {
		t.Fatalf("decide = (%v, %q), want bassy acceptance", ok, path)
	}
}

func TestDecide_WeakPeakRejectsBothPaths(t *testing.T) {
	t.Parallel()

	d := newDetector(nil, nil, nil)
	ok, _ := d.decide(Features{
		RMSPeak:       0.10,
		WidthMs:       40,
		LowFreqRatio:  0.5,
		HighFreqRatio: 0.2,
		CentroidHz:    2000,
		PostSilence:   true,
	})
	if ok {
		t.Fatal("RMS 0.10 below the strong-peak floor must be rejected")
	}
}

func TestDecide_FarFieldRelaxation(t *testing.T) {
	t.Parallel()

	d := newDetector(nil, nil, nil)
	// Too little low-frequency energy for the bassy path, but loud and
	// dull enough for the far-field rule.
	ok, path := d.decide(Features{
		RMSPeak:       0.30,
		WidthMs:       29,
		LowFreqRatio:  0.10,
		HighFreqRatio: 0.30,
		CentroidHz:    3000,
		PostSilence:   true,
	})
	if !ok || path != "farfield" {
		t.Fatalf("decide = (%v, %q), want farfield acceptance", ok, path)
	}
}

func TestDecide_NoPostSilenceRejects(t *testing.T) {
	t.Parallel()

	d := newDetector(nil, nil, nil)
	ok, _ := d.decide(Features{
		RMSPeak:       0.30,
		WidthMs:       40,
		LowFreqRatio:  0.5,
		HighFreqRatio: 0.2,
		CentroidHz:    2000,
		PostSilence:   false,
	})
	if ok {
		t.Fatal("ongoing noise after the peak must veto both paths")
	}
}

func TestDecide_SetThresholdsApplies(t *testing.T) {
	t.Parallel()

	d := newDetector(nil, nil, nil)
	quiet := Features{
		RMSPeak:       0.12,
		WidthMs:       40,
		LowFreqRatio:  0.5,
		HighFreqRatio: 0.2,
		CentroidHz:    2000,
		PostSilence:   true,
	}
	if ok, _ := d.decide(quiet); ok {
		t.Fatal("peak below the default minimum must be rejected")
	}

	th := DefaultThresholds()
	th.StrongPeakRMS = 0.10
	d.SetThresholds(th)

	ok, path := d.decide(quiet)
	if !ok || path != "bassy" {
		t.Fatalf("decide after retuning = (%v, %q), want bassy acceptance", ok, path)
	}
}

func TestImpactFlag_TopThreePerGroup(t *testing.T) {
	t.Parallel()

	d := newDetector(nil, nil, nil)
	groups := []classifier.Group{{
		Name: "events",
		Labels: []classifier.Label{
			{Name: "Music", Score: 0.9},
			{Name: "Speech", Score: 0.8},
			{Name: "Television", Score: 0.5},
			{Name: "Door slam", Score: 0.4}, // rank 4: must be ignored
		},
	}}
	flagged, top, score := d.impactFlag(groups)
	if flagged {
		t.Error("impact label outside the top 3 must not flag")
	}
	if top != "Music" || score != 0.9 {
		t.Errorf("top = %q/%v, want Music/0.9", top, score)
	}
}

func TestImpactFlag_SubstringMatch(t *testing.T) {
	t.Parallel()

	d := newDetector(nil, nil, nil)
	flagged, _, _ := d.impactFlag([]classifier.Group{{
		Name:   "events",
		Labels: []classifier.Label{{Name: "Door slam, hard", Score: 0.25}},
	}})
	if !flagged {
		t.Error("'Door slam, hard' at 0.25 should flag via substring match")
	}

	flagged, _, _ = d.impactFlag([]classifier.Group{{
		Name:   "events",
		Labels: []classifier.Label{{Name: "Door slam", Score: 0.19}},
	}})
	if flagged {
		t.Error("score below the impact threshold must not flag")
	}
}

func TestActivationGate_SingleFlight(t *testing.T) {
	t.Parallel()

	gate := NewActivationGate(time.Minute)
	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate.TryAcquire() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("gate admitted %d concurrent flows, want exactly 1", wins)
	}
	if !gate.Held() {
		t.Error("gate should report held after acquisition")
	}
}

func TestActivationGate_CooldownAfterRelease(t *testing.T) {
	t.Parallel()

	gate := NewActivationGate(30 * time.Second)
	now := time.Unix(1000, 0)
	gate.now = func() time.Time { return now }

	if !gate.TryAcquire() {
		t.Fatal("fresh gate must be acquirable")
	}
	gate.Release()
	if gate.TryAcquire() {
		t.Fatal("gate must refuse acquisition during cooldown")
	}
	now = now.Add(31 * time.Second)
	if !gate.TryAcquire() {
		t.Fatal("gate must be acquirable after cooldown expiry")
	}
}

// impactWindow builds a 3s buffer that is silent except for a short
// 200Hz burst, loud enough for the bassy path.
func impactWindow() []float64 {
	samples := make([]float64, 3*audio.SampleRate)
	start := audio.SampleRate // burst at t=1s
	for i := 0; i < audio.SampleRate*6/100; i++ { // 60ms
		samples[start+i] = 0.5 * math.Sin(2*math.Pi*200*float64(i)/float64(audio.SampleRate))
	}
	return samples
}

func TestAnalyze_AcceptsSyntheticImpact(t *testing.T) {
	t.Parallel()

	cls := &mock.Provider{Groups: []classifier.Group{{
		Name:   "events",
		Labels: []classifier.Label{{Name: "Thump", Score: 0.4}},
	}}}
	gate := NewActivationGate(time.Minute)
	var fired int
	d := newDetector(cls, gate, func(f Features) {
		fired++
		if f.RMSPeak < 0.15 {
			t.Errorf("reported peak %v below strong-peak floor", f.RMSPeak)
		}
	})

	win := impactWindow()
	d.analyze(context.Background(), win)
	if fired != 1 {
		t.Fatalf("onFall fired %d times, want 1", fired)
	}
	if !gate.Held() {
		t.Error("gate must be held after acceptance")
	}

	// Second acceptance while the flow is live is silently dropped.
	d.analyze(context.Background(), win)
	if fired != 1 {
		t.Fatalf("gate held but onFall fired again (%d times)", fired)
	}
}

func TestAnalyze_ClassifierErrorMeansNoImpact(t *testing.T) {
	t.Parallel()

	cls := &mock.Provider{Err: errors.New("model gone")}
	gate := NewActivationGate(time.Minute)
	var fired int
	d := newDetector(cls, gate, func(Features) { fired++ })

	d.analyze(context.Background(), impactWindow())
	if fired != 0 {
		t.Fatal("classifier failure must be treated as no impact heard")
	}
	if gate.Held() {
		t.Error("gate must stay free when nothing was accepted")
	}
}

func TestExtractFeatures_SyntheticImpact(t *testing.T) {
	t.Parallel()

	cfg := dsp.SpectrogramConfig{
		SampleRate: audio.SampleRate,
		FrameSize:  specFrameSize,
		HopSize:    specHopSize,
		Window:     dsp.WindowHann,
	}
	win := impactWindow()
	spec, err := dsp.Spectrogram(win, cfg)
	if err != nil {
		t.Fatalf("Spectrogram: %v", err)
	}
	f := extractFeatures(win, spec, cfg)

	if f.RMSPeak < 0.3 || f.RMSPeak > 0.4 {
		t.Errorf("RMSPeak = %v, want ≈0.35 for a 0.5-amplitude tone", f.RMSPeak)
	}
	if f.WidthMs < 30 {
		t.Errorf("WidthMs = %v, want ≥ 30 for a 60ms burst", f.WidthMs)
	}
	if f.LowFreqRatio < 0.8 {
		t.Errorf("LowFreqRatio = %v, want near 1 for a 200Hz tone", f.LowFreqRatio)
	}
	if f.CentroidHz > 1000 {
		t.Errorf("CentroidHz = %v, want well under 1kHz", f.CentroidHz)
	}
	if !f.PostSilence {
		t.Error("window is silent after the burst, PostSilence must hold")
	}
}
