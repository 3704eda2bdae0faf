package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"whisper", "vosk"},
	"tts":        {"locald", "piper"},
	"nlu":        {"router"},
	"classifier": {"yamnet", "panns"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// User
	if cfg.User.Name == "" {
		errs = append(errs, errors.New("user.name is required"))
	}
	if cfg.User.WakeWord == "" {
		slog.Warn("user.wake_word is empty; every utterance will be treated as a wake trigger")
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("nlu", cfg.Providers.NLU.Name)
	validateProviderName("classifier", cfg.Providers.Classifier.Name)
	for _, fb := range cfg.Providers.STT.Fallbacks {
		validateProviderName("stt", fb.Name)
	}
	for _, fb := range cfg.Providers.TTS.Fallbacks {
		validateProviderName("tts", fb.Name)
	}
	for _, fb := range cfg.Providers.NLU.Fallbacks {
		validateProviderName("nlu", fb.Name)
	}

	// The wake spotter and the instruction capture both transcribe, and
	// every reply is spoken. Without STT and TTS nothing works.
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts is required"))
	}
	if cfg.Providers.NLU.Name == "" {
		slog.Warn("providers.nlu is not configured; instructions will be routed by the local parser only")
	}
	if cfg.Providers.Classifier.Name == "" && fallEnabled(cfg) {
		errs = append(errs, errors.New("fall.enabled is true but providers.classifier is not configured"))
	}

	// Contact duplicate detection.
	contactNamesSeen := make(map[string]int, len(cfg.Contacts))

	// Contacts
	for i, c := range cfg.Contacts {
		prefix := fmt.Sprintf("contacts[%d]", i)
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := contactNamesSeen[c.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of contacts[%d]", prefix, c.Name, prev))
			}
			contactNamesSeen[c.Name] = i
		}
		if c.Phone == "" {
			errs = append(errs, fmt.Errorf("%s.phone is required", prefix))
		} else if !strings.HasPrefix(c.Phone, "+") {
			slog.Warn("contact phone is not in E.164 format", "contact", c.Name, "phone", c.Phone)
		}
	}

	// Contacts ↔ backend cross-validation: emergency alerts have nowhere
	// to go without a send endpoint.
	if len(cfg.Contacts) > 0 && cfg.Backend.SendURL == "" {
		errs = append(errs, errors.New("contacts are configured but backend.send_url is empty"))
	}
	if cfg.Backend.SendURL != "" && cfg.Backend.HealthURL == "" {
		slog.Warn("backend.health_url is empty; queued emergency alerts will only be retried on send attempts")
	}

	// Capture
	if cfg.Capture.SilenceThresholdDBFS > 0 {
		errs = append(errs, fmt.Errorf("capture.silence_threshold_dbfs %.1f must be negative (dBFS)", cfg.Capture.SilenceThresholdDBFS))
	}
	if cfg.Capture.TrailingSilenceMs < 0 {
		errs = append(errs, fmt.Errorf("capture.trailing_silence_ms %d must not be negative", cfg.Capture.TrailingSilenceMs))
	}
	if cfg.Capture.MaxDurationMs < 0 {
		errs = append(errs, fmt.Errorf("capture.max_duration_ms %d must not be negative", cfg.Capture.MaxDurationMs))
	}

	// VAD / wake levels are dBFS and therefore non-positive.
	if cfg.VAD.GateThresholdDBFS > 0 {
		errs = append(errs, fmt.Errorf("vad.gate_threshold_dbfs %.1f must be negative (dBFS)", cfg.VAD.GateThresholdDBFS))
	}
	if cfg.Wake.MinLevelDBFS > 0 {
		errs = append(errs, fmt.Errorf("wake.min_level_dbfs %.1f must be negative (dBFS)", cfg.Wake.MinLevelDBFS))
	}

	// Fall thresholds
	if t := cfg.Fall.Thresholds; t != nil {
		if t.ImpactScore < 0 || t.ImpactScore > 1 {
			errs = append(errs, fmt.Errorf("fall.thresholds.impact_score %.2f is out of range [0, 1]", t.ImpactScore))
		}
		if t.StrongPeakRMS < 0 || t.StrongPeakRMS > 1 {
			errs = append(errs, fmt.Errorf("fall.thresholds.strong_peak_rms %.2f is out of range [0, 1]", t.StrongPeakRMS))
		}
	}
	if cfg.Fall.CooldownMs < 0 {
		errs = append(errs, fmt.Errorf("fall.cooldown_ms %d must not be negative", cfg.Fall.CooldownMs))
	}

	return errors.Join(errs...)
}

// fallEnabled reports whether the ambient detector should run: explicitly
// enabled, or enabled by default when a classifier is configured.
func fallEnabled(cfg *Config) bool {
	if cfg.Fall.Enabled != nil {
		return *cfg.Fall.Enabled
	}
	return cfg.Providers.Classifier.Name != ""
}

// FallEnabled reports whether the ambient fall detector should run.
func (c *Config) FallEnabled() bool { return fallEnabled(c) }

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
