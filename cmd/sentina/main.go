// Command sentina is the main entry point for the Sentina voice companion.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/sentina/internal/app"
	"github.com/MrWong99/sentina/internal/config"
	"github.com/MrWong99/sentina/internal/observe"
	"github.com/MrWong99/sentina/internal/resilience"
	"github.com/MrWong99/sentina/pkg/provider/classifier"
	"github.com/MrWong99/sentina/pkg/provider/classifier/httpclass"
	"github.com/MrWong99/sentina/pkg/provider/nlu"
	"github.com/MrWong99/sentina/pkg/provider/nlu/httprouter"
	"github.com/MrWong99/sentina/pkg/provider/stt"
	"github.com/MrWong99/sentina/pkg/provider/stt/whisperhttp"
	"github.com/MrWong99/sentina/pkg/provider/tts"
	"github.com/MrWong99/sentina/pkg/provider/tts/locald"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sentina: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sentina: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("sentina starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "sentina",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot-reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, next *config.Config) {
		d := config.Diff(old, next)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level reloaded", "level", d.NewLogLevel)
		}
		application.ApplyConfig(d, next)
	})
	if err != nil {
		slog.Warn("config hot-reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("companion ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisperhttp.Option
		if entry.Model != "" {
			opts = append(opts, whisperhttp.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisperhttp.WithLanguage(lang))
		}
		return whisperhttp.New(entry.BaseURL, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("locald", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []locald.Option
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, locald.WithVoice(voice))
		}
		return locald.New(entry.BaseURL, opts...)
	})

	// ── NLU ───────────────────────────────────────────────────────────────────

	reg.RegisterNLU("router", func(entry config.ProviderEntry) (nlu.Provider, error) {
		var opts []httprouter.Option
		if t := optDuration(entry.Options, "timeout_ms"); t > 0 {
			opts = append(opts, httprouter.WithTimeout(t))
		}
		return httprouter.New(entry.BaseURL, opts...)
	})

	// ── Classifier ────────────────────────────────────────────────────────────
	// yamnet and panns are served by the same HTTP protocol; the model
	// behind the endpoint is the server's business.

	for _, providerName := range []string{"yamnet", "panns"} {
		reg.RegisterClassifier(providerName, func(entry config.ProviderEntry) (classifier.Provider, error) {
			var opts []httpclass.Option
			if t := optDuration(entry.Options, "timeout_ms"); t > 0 {
				opts = append(opts, httpclass.WithTimeout(t))
			}
			return httpclass.New(entry.BaseURL, opts...)
		})
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to
// consume. Entries with fallbacks are wrapped in failover groups.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "stt", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		} else {
			ps.STT = p
			slog.Info("provider created", "kind", "stt", "name", name)
		}
	}
	if ps.STT != nil && len(cfg.Providers.STT.Fallbacks) > 0 {
		group := resilience.NewSTTFallback(ps.STT, cfg.Providers.STT.Name, resilience.FallbackConfig{})
		for _, entry := range cfg.Providers.STT.Fallbacks {
			fb, err := reg.CreateSTT(entry)
			if err != nil {
				return nil, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
			}
			group.AddFallback(entry.Name, fb)
			slog.Info("provider created", "kind", "stt", "name", entry.Name, "role", "fallback")
		}
		ps.STT = group
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "tts", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		} else {
			ps.TTS = p
			slog.Info("provider created", "kind", "tts", "name", name)
		}
	}
	if ps.TTS != nil && len(cfg.Providers.TTS.Fallbacks) > 0 {
		group := resilience.NewTTSFallback(ps.TTS, cfg.Providers.TTS.Name, resilience.FallbackConfig{})
		for _, entry := range cfg.Providers.TTS.Fallbacks {
			fb, err := reg.CreateTTS(entry)
			if err != nil {
				return nil, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
			}
			group.AddFallback(entry.Name, fb)
			slog.Info("provider created", "kind", "tts", "name", entry.Name, "role", "fallback")
		}
		ps.TTS = group
	}

	if name := cfg.Providers.NLU.Name; name != "" {
		p, err := reg.CreateNLU(cfg.Providers.NLU)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "nlu", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create nlu provider %q: %w", name, err)
		} else {
			ps.NLU = p
			slog.Info("provider created", "kind", "nlu", "name", name)
		}
	}
	if ps.NLU != nil && len(cfg.Providers.NLU.Fallbacks) > 0 {
		group := resilience.NewNLUFallback(ps.NLU, cfg.Providers.NLU.Name, resilience.FallbackConfig{})
		for _, entry := range cfg.Providers.NLU.Fallbacks {
			fb, err := reg.CreateNLU(entry)
			if err != nil {
				return nil, fmt.Errorf("create nlu fallback %q: %w", entry.Name, err)
			}
			group.AddFallback(entry.Name, fb)
			slog.Info("provider created", "kind", "nlu", "name", entry.Name, "role", "fallback")
		}
		ps.NLU = group
	}

	if name := cfg.Providers.Classifier.Name; name != "" {
		p, err := reg.CreateClassifier(cfg.Providers.Classifier)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "classifier", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create classifier provider %q: %w", name, err)
		} else {
			ps.Classifier = p
			slog.Info("provider created", "kind", "classifier", "name", name)
		}
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Sentina — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("NLU", cfg.Providers.NLU.Name, cfg.Providers.NLU.Model)
	printProvider("Classifier", cfg.Providers.Classifier.Name, cfg.Providers.Classifier.Model)
	if cfg.FallEnabled() {
		fmt.Printf("║  Fall detection  : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Fall detection  : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Contacts        : %-19d ║\n", len(cfg.Contacts))
	if cfg.User.WakeWord != "" {
		fmt.Printf("║  Wake word       : %-19s ║\n", cfg.User.WakeWord)
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optDuration extracts a millisecond count from a provider Options map.
// YAML integers decode as int; be lenient about the numeric type.
func optDuration(opts map[string]any, key string) time.Duration {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v) * time.Millisecond
	default:
		return 0
	}
}
