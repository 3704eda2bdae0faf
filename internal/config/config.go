// Package config provides the configuration schema, loader, and provider
// registry for the Sentina voice companion.
package config

import (
	"github.com/MrWong99/sentina/internal/convo"
	"github.com/MrWong99/sentina/internal/falldetect"
)

// LogLevel controls log verbosity for the Sentina daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Sentina.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	User      UserConfig      `yaml:"user"`
	Contacts  []convo.Contact `yaml:"contacts"`
	Backend   BackendConfig   `yaml:"backend"`
	Providers ProvidersConfig `yaml:"providers"`
	Audio     AudioConfig     `yaml:"audio"`
	Capture   CaptureConfig   `yaml:"capture"`
	VAD       VADConfig       `yaml:"vad"`
	Wake      WakeConfig      `yaml:"wake"`
	Fall      FallConfig      `yaml:"fall"`
	Prompts   *convo.Prompts  `yaml:"prompts"`
}

// ServerConfig holds network and logging settings for the control surface.
type ServerConfig struct {
	// ListenAddr is the TCP address the control server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the control server. When nil, plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// UserConfig identifies the person the companion serves.
type UserConfig struct {
	// Name is spoken back in acknowledgments and fall prompts.
	Name string `yaml:"name"`

	// WakeWord triggers a conversation turn (e.g., "sentina").
	WakeWord string `yaml:"wake_word"`
}

// BackendConfig points at the messaging backend used for outbound
// notifications and emergency alerts.
type BackendConfig struct {
	// SendURL is the message dispatch endpoint.
	SendURL string `yaml:"send_url"`

	// CommandURL is the endpoint for non-messaging commands (calls,
	// media control, free-form queries).
	CommandURL string `yaml:"command_url"`

	// HealthURL is polled to decide whether the backend is reachable.
	HealthURL string `yaml:"health_url"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	STT        ProviderEntry `yaml:"stt"`
	TTS        ProviderEntry `yaml:"tts"`
	NLU        ProviderEntry `yaml:"nlu"`
	Classifier ProviderEntry `yaml:"classifier"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper", "piper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "small-es", "yamnet").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when the primary provider fails.
	// Each fallback gets its own circuit breaker.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// AudioConfig names the ALSA capture devices. Empty means "default".
// AmbientDevice is the dedicated fall-detection microphone; when empty
// it shares the conversation device.
type AudioConfig struct {
	Device        string `yaml:"device"`
	AmbientDevice string `yaml:"ambient_device"`
}

// CaptureConfig tunes the instruction recorder.
type CaptureConfig struct {
	// Dir is where WAV recordings are written. Empty means the OS temp dir.
	Dir string `yaml:"dir"`

	// SilenceThresholdDBFS classifies a frame as voice when its RMS level
	// is at or above this value. 0 means the built-in default (-45).
	SilenceThresholdDBFS float64 `yaml:"silence_threshold_dbfs"`

	// TrailingSilenceMs stops a recording after this much continuous
	// silence follows the last voiced frame. 0 means the default (1500).
	TrailingSilenceMs int `yaml:"trailing_silence_ms"`

	// MaxDurationMs is the hard recording ceiling. 0 means the default (8000).
	MaxDurationMs int `yaml:"max_duration_ms"`
}

// VADConfig tunes the post-capture voice gate.
type VADConfig struct {
	// GateThresholdDBFS is the wake recognizer's gate level, used to
	// anchor the adaptive speech threshold. 0 means the default (-50).
	GateThresholdDBFS float64 `yaml:"gate_threshold_dbfs"`

	// MinVoicedMs is the shortest voiced run that counts as speech.
	// 0 means the default (300).
	MinVoicedMs int `yaml:"min_voiced_ms"`
}

// WakeConfig tunes the always-on keyword spotter.
type WakeConfig struct {
	// MinLevelDBFS is the energy floor below which audio chunks are not
	// sent to the transcriber. 0 means the spotter's default.
	MinLevelDBFS float64 `yaml:"min_level_dbfs"`

	// ChunkMs is the audio chunk length handed to the transcriber.
	// 0 means the spotter's default.
	ChunkMs int `yaml:"chunk_ms"`
}

// FallConfig tunes the ambient impact detector.
type FallConfig struct {
	// Enabled turns the ambient worker on. Defaults to true when the
	// classifier provider is configured.
	Enabled *bool `yaml:"enabled"`

	// CooldownMs is the activation gate cooldown after a confirmation
	// flow resolves. 0 means the default (30000).
	CooldownMs int `yaml:"cooldown_ms"`

	// Thresholds override the tuned acceptance constants. When nil the
	// built-in defaults apply.
	Thresholds *falldetect.Thresholds `yaml:"thresholds"`
}
