package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/sentina/internal/config"
	"github.com/MrWong99/sentina/pkg/provider/stt"
	sttmock "github.com/MrWong99/sentina/pkg/provider/stt/mock"
	"github.com/MrWong99/sentina/pkg/provider/tts"
	ttsmock "github.com/MrWong99/sentina/pkg/provider/tts/mock"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
user:
  name: Carmen
  wake_word: sentina
contacts:
  - name: Ana
    phone: "+34600111222"
  - name: Luis
    phone: "+34600333444"
backend:
  send_url: http://localhost:9000/send
  health_url: http://localhost:9000/health
providers:
  stt:
    name: whisper
    base_url: http://localhost:8081
    model: small-es
  tts:
    name: locald
    base_url: http://localhost:8082
  nlu:
    name: router
    base_url: http://localhost:8083
  classifier:
    name: yamnet
    base_url: http://localhost:8084
audio:
  device: plughw:1,0
  ambient_device: plughw:2,0
capture:
  dir: /var/lib/sentina
  silence_threshold_dbfs: -45
  trailing_silence_ms: 1500
  max_duration_ms: 8000
vad:
  gate_threshold_dbfs: -50
  min_voiced_ms: 120
wake:
  min_level_dbfs: -55
fall:
  cooldown_ms: 30000
  thresholds:
    impact_score: 0.20
    strong_peak_rms: 0.15
    bassy_width_ms: 30
    bassy_low_freq: 0.35
    bassy_high_veto: 0.65
    bassy_centroid_veto_hz: 4200
    far_field_rms: 0.27
    far_field_width_ms: 28
    far_field_high_max: 0.46
    far_field_centroid_max_hz: 4050
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.User.Name != "Carmen" || cfg.User.WakeWord != "sentina" {
		t.Errorf("user = %+v", cfg.User)
	}
	if len(cfg.Contacts) != 2 || cfg.Contacts[0].Phone != "+34600111222" {
		t.Errorf("contacts = %+v", cfg.Contacts)
	}
	if cfg.Providers.STT.Name != "whisper" || cfg.Providers.STT.Model != "small-es" {
		t.Errorf("stt = %+v", cfg.Providers.STT)
	}
	if cfg.Audio.Device != "plughw:1,0" || cfg.Audio.AmbientDevice != "plughw:2,0" {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Capture.TrailingSilenceMs != 1500 {
		t.Errorf("TrailingSilenceMs = %d, want 1500", cfg.Capture.TrailingSilenceMs)
	}
	if cfg.Fall.Thresholds == nil || cfg.Fall.Thresholds.ImpactScore != 0.20 {
		t.Errorf("fall thresholds = %+v", cfg.Fall.Thresholds)
	}
	if !cfg.FallEnabled() {
		t.Error("FallEnabled() = false with classifier configured, want true")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
user:
  name: Carmen
  shoe_size: 42
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected decode error for unknown field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
server:
  log_level: loud
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

const minimalYAML = `
user:
  name: Carmen
providers:
  stt:
    name: whisper
  tts:
    name: locald
`

func TestValidate_MissingUserName(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper
  tts:
    name: locald
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing user name, got nil")
	}
	if !strings.Contains(err.Error(), "user.name") {
		t.Errorf("error should mention user.name, got: %v", err)
	}
}

func TestValidate_MissingSTTAndTTS(t *testing.T) {
	t.Parallel()
	yaml := `
user:
  name: Carmen
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing providers, got nil")
	}
	if !strings.Contains(err.Error(), "providers.stt") {
		t.Errorf("error should mention providers.stt, got: %v", err)
	}
	if !strings.Contains(err.Error(), "providers.tts") {
		t.Errorf("error should mention providers.tts, got: %v", err)
	}
}

func TestValidate_DuplicateContactNames(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
backend:
  send_url: http://localhost:9000/send
contacts:
  - name: Ana
    phone: "+34600111222"
  - name: Ana
    phone: "+34600333444"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate contact names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_ContactsRequireSendURL(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
contacts:
  - name: Ana
    phone: "+34600111222"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for contacts without backend.send_url, got nil")
	}
	if !strings.Contains(err.Error(), "backend.send_url") {
		t.Errorf("error should mention backend.send_url, got: %v", err)
	}
}

func TestValidate_PositiveDBFSRejected(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
vad:
  gate_threshold_dbfs: 12
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for positive dBFS value, got nil")
	}
	if !strings.Contains(err.Error(), "gate_threshold_dbfs") {
		t.Errorf("error should mention gate_threshold_dbfs, got: %v", err)
	}
}

func TestValidate_FallEnabledRequiresClassifier(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
fall:
  enabled: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for fall.enabled without classifier, got nil")
	}
	if !strings.Contains(err.Error(), "classifier") {
		t.Errorf("error should mention classifier, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
capture:
  trailing_silence_ms: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined errors, got nil")
	}
	for _, want := range []string{"log_level", "user.name", "providers.stt", "trailing_silence_ms"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestRegistry_UnknownSTT(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	_, err := r.CreateSTT(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_UnknownClassifier(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	_, err := r.CreateClassifier(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_RegisteredSTT(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	r.RegisterSTT("whisper", func(e config.ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})
	p, err := r.CreateSTT(config.ProviderEntry{Name: "whisper"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p == nil {
		t.Fatal("CreateSTT returned nil provider")
	}
}

func TestRegistry_RegisteredTTS(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	r.RegisterTTS("locald", func(e config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})
	p, err := r.CreateTTS(config.ProviderEntry{Name: "locald"})
	if err != nil {
		t.Fatalf("CreateTTS: %v", err)
	}
	if p == nil {
		t.Fatal("CreateTTS returned nil provider")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	wantErr := errors.New("boom")
	r.RegisterSTT("whisper", func(e config.ProviderEntry) (stt.Provider, error) {
		return nil, wantErr
	})
	_, err := r.CreateSTT(config.ProviderEntry{Name: "whisper"})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
