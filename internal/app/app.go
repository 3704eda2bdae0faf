// Package app wires all Sentina subsystems into a running companion.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the workers until the context is cancelled,
// and Shutdown tears everything down in order.
//
// For testing, inject fakes via functional options (WithMicrophone,
// WithRecognizer, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sentina/internal/backend"
	"github.com/MrWong99/sentina/internal/capture"
	"github.com/MrWong99/sentina/internal/config"
	"github.com/MrWong99/sentina/internal/control"
	"github.com/MrWong99/sentina/internal/convo"
	"github.com/MrWong99/sentina/internal/falldetect"
	"github.com/MrWong99/sentina/internal/health"
	"github.com/MrWong99/sentina/internal/observe"
	"github.com/MrWong99/sentina/internal/store"
	"github.com/MrWong99/sentina/internal/vad"
	"github.com/MrWong99/sentina/pkg/audio"
	"github.com/MrWong99/sentina/pkg/audio/arecord"
	"github.com/MrWong99/sentina/pkg/provider/classifier"
	"github.com/MrWong99/sentina/pkg/provider/nlu"
	"github.com/MrWong99/sentina/pkg/provider/stt"
	"github.com/MrWong99/sentina/pkg/provider/tts"
	"github.com/MrWong99/sentina/pkg/provider/wake"
	"github.com/MrWong99/sentina/pkg/provider/wake/kwspot"
)

const (
	// reminderScanInterval is how often due reminders are checked.
	reminderScanInterval = time.Second

	// backendProbeInterval paces the background health monitor.
	backendProbeInterval = 30 * time.Second
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT        stt.Provider
	TTS        tts.Provider
	NLU        nlu.Provider
	Classifier classifier.Provider
}

// App owns all subsystem lifetimes and orchestrates the companion.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	// Audio front ends. mic is shared by the wake recognizer and the
	// instruction recorder; ambientMic feeds the fall detector.
	mic        audio.Opener
	ambientMic audio.Opener

	vadGate    *vad.Gate
	recorder   *capture.Controller
	recognizer wake.Recognizer
	fallGate   *falldetect.ActivationGate
	detector   *falldetect.Detector

	messages  *store.MessageSlot
	reminders *store.ReminderStore
	queue     *store.RecoveryQueue

	prober    *backend.Prober
	messenger *backend.Messenger
	commander *backend.Commander

	machine *convo.Machine
	control *control.Server
	srv     *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMicrophone injects the conversation microphone (wake + capture)
// instead of opening the configured device.
func WithMicrophone(o audio.Opener) Option {
	return func(a *App) { a.mic = o }
}

// WithAmbientMicrophone injects the fall-detector microphone.
func WithAmbientMicrophone(o audio.Opener) Option {
	return func(a *App) { a.ambientMic = o }
}

// WithRecognizer injects a wake recognizer instead of building the
// keyword spotter from config.
func WithRecognizer(r wake.Recognizer) Option {
	return func(a *App) { a.recognizer = r }
}

// WithMetrics injects a metrics bundle instead of using the global one.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers
// struct comes from main.go (populated via the config registry). Use
// Option functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil || providers.TTS == nil {
		return nil, errors.New("app: stt and tts providers are required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Shared stores ─────────────────────────────────────────────────
	a.initStores()

	// ── 2. Backend clients ───────────────────────────────────────────────
	a.initBackend()

	// ── 3. Audio front end ───────────────────────────────────────────────
	a.initAudio()

	// ── 4. Fall detection ────────────────────────────────────────────────
	if err := a.initDetector(); err != nil {
		return nil, fmt.Errorf("app: init detector: %w", err)
	}

	// ── 5. Conversation machine ──────────────────────────────────────────
	a.initMachine()

	// ── 6. Control surface ───────────────────────────────────────────────
	a.initControl()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStores sets up the in-memory shared state.
func (a *App) initStores() {
	a.messages = store.NewMessageSlot()
	a.reminders = store.NewReminderStore()
	a.queue = store.NewRecoveryQueue()
}

// initBackend creates the prober and the two backend clients. Missing
// URLs leave the corresponding client nil; the actions adapter reports
// those commands as unavailable.
func (a *App) initBackend() {
	b := a.cfg.Backend
	if b.SendURL == "" && b.CommandURL == "" && b.HealthURL == "" {
		return
	}
	a.prober = backend.NewProber(b.HealthURL, nil)
	if b.SendURL != "" {
		a.messenger = backend.NewMessenger(b.SendURL, nil, a.queue, a.prober)
	}
	if b.CommandURL != "" {
		a.commander = backend.NewCommander(b.CommandURL, nil, a.prober)
	}
}

// initAudio builds the VAD gate, the instruction recorder and the wake
// recognizer from config, unless test doubles were injected.
func (a *App) initAudio() {
	if a.mic == nil {
		a.mic = arecord.New(a.cfg.Audio.Device)
	}

	var vadOpts []vad.Option
	if a.cfg.VAD.GateThresholdDBFS != 0 {
		vadOpts = append(vadOpts, vad.WithGateThresholdDBFS(a.cfg.VAD.GateThresholdDBFS))
	}
	if a.cfg.VAD.MinVoicedMs != 0 {
		vadOpts = append(vadOpts, vad.WithMinVoicedMs(a.cfg.VAD.MinVoicedMs))
	}
	a.vadGate = vad.New(vadOpts...)

	a.recorder = capture.New(a.mic, capture.Config{
		SilenceThresholdDBFS: a.cfg.Capture.SilenceThresholdDBFS,
		TrailingSilence:      time.Duration(a.cfg.Capture.TrailingSilenceMs) * time.Millisecond,
		MaxDuration:          time.Duration(a.cfg.Capture.MaxDurationMs) * time.Millisecond,
		Dir:                  a.cfg.Capture.Dir,
	})

	if a.recognizer == nil {
		var wakeOpts []kwspot.Option
		if a.cfg.Wake.MinLevelDBFS != 0 {
			wakeOpts = append(wakeOpts, kwspot.WithMinLevelDBFS(a.cfg.Wake.MinLevelDBFS))
		}
		if a.cfg.Wake.ChunkMs != 0 {
			wakeOpts = append(wakeOpts, kwspot.WithChunkDuration(time.Duration(a.cfg.Wake.ChunkMs)*time.Millisecond))
		}
		a.recognizer = kwspot.New(a.mic, a.providers.STT, wakeOpts...)
	}
}

// initDetector builds the activation gate and, when enabled, the
// ambient fall detector with its own microphone stream.
func (a *App) initDetector() error {
	cooldown := 30 * time.Second
	if a.cfg.Fall.CooldownMs > 0 {
		cooldown = time.Duration(a.cfg.Fall.CooldownMs) * time.Millisecond
	}
	a.fallGate = falldetect.NewActivationGate(cooldown)

	if !a.cfg.FallEnabled() {
		return nil
	}
	if a.providers.Classifier == nil {
		return errors.New("fall detection enabled but no classifier provider")
	}
	if a.ambientMic == nil {
		dev := a.cfg.Audio.AmbientDevice
		if dev == "" {
			dev = a.cfg.Audio.Device
		}
		a.ambientMic = arecord.New(dev)
	}

	th := falldetect.DefaultThresholds()
	if a.cfg.Fall.Thresholds != nil {
		th = *a.cfg.Fall.Thresholds
	}
	a.detector = falldetect.New(a.ambientMic, a.providers.Classifier, a.fallGate, th, func(f falldetect.Features) {
		a.metrics.RecordFallEvent(context.Background(), f.Path, "accepted")
		a.machine.Post(convo.FallSignal{Source: "ambient"})
	})
	return nil
}

// initMachine assembles the conversation machine with the actions
// adapter and emergency dispatch.
func (a *App) initMachine() {
	var ambient convo.AmbientListener = noopAmbient{}
	if a.detector != nil {
		ambient = a.detector
	}

	var dispatch convo.EmergencyDispatcher = noopDispatcher{}
	if a.messenger != nil {
		dispatch = a.messenger
	}

	nluP := a.providers.NLU
	if nluP == nil {
		nluP = nluUnavailable{}
	}

	machineCfg := convo.Config{
		UserName: a.cfg.User.Name,
		WakeWord: a.cfg.User.WakeWord,
		Contacts: a.cfg.Contacts,
		OnFallDetected: func(source, userName string) {
			a.control.NotifyFall(source, userName)
		},
	}
	if a.cfg.Prompts != nil {
		machineCfg.Prompts = *a.cfg.Prompts
	}

	acts := &actions{
		commander: a.commander,
		messenger: a.messenger,
		reminders: a.reminders,
	}

	a.machine = convo.New(machineCfg, a.recognizer, a.recorder, a.vadGate,
		a.providers.STT, a.providers.TTS, nluP,
		ambient, a.fallGate, dispatch, acts, a.messages)

	// Contact lookups follow the machine so hot reloads apply everywhere.
	acts.contacts = a.machine.Contacts
}

// initControl builds the control surface and its HTTP server.
func (a *App) initControl() {
	var ambient control.Ambient = noopAmbient{}
	if a.detector != nil {
		ambient = a.detector
	}

	var checkers []health.Checker
	if a.prober != nil && a.cfg.Backend.HealthURL != "" {
		checkers = append(checkers, health.Checker{Name: "backend", Check: a.prober.Check})
	}

	a.control = control.New(a.machine, ambient, a.metrics, checkers...)

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.srv = &http.Server{
		Addr:              addr,
		Handler:           a.control.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.closers = append(a.closers, a.srv.Close)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts all workers and blocks until ctx is cancelled or a worker
// fails. On return the HTTP server is already shut down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.machine.Run(gctx)
	})

	if a.detector != nil {
		g.Go(func() error {
			return a.detector.Run(gctx)
		})
	}

	g.Go(func() error {
		return a.scanReminders(gctx)
	})

	if a.prober != nil && a.cfg.Backend.HealthURL != "" {
		g.Go(func() error {
			return a.monitorBackend(gctx)
		})
	}

	g.Go(func() error {
		err := a.serve()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: control server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	})

	slog.Info("app running",
		"listen_addr", a.srv.Addr,
		"fall_detection", a.detector != nil,
		"contacts", len(a.cfg.Contacts),
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serve starts the control server, with TLS when configured.
func (a *App) serve() error {
	if tls := a.cfg.Server.TLS; tls != nil {
		return a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	}
	return a.srv.ListenAndServe()
}

// scanReminders polls the reminder store and announces due entries.
func (a *App) scanReminders(ctx context.Context) error {
	ticker := time.NewTicker(reminderScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for _, r := range a.reminders.PopDue(now) {
				slog.Info("reminder due", "id", r.ID, "text", r.Text)
				a.machine.Post(convo.ReminderDue{Reminder: r})
			}
		}
	}
}

// monitorBackend probes the backend periodically so a recovery flush
// happens even when no sends are attempted while it is down.
func (a *App) monitorBackend(ctx context.Context) error {
	ticker := time.NewTicker(backendProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.prober.IsUp(ctx)
		}
	}
}

// ApplyConfig applies the hot-reloadable parts of a changed
// configuration: contacts and prompts on the machine, acceptance
// thresholds on the fall detector. Everything else needs a restart.
func (a *App) ApplyConfig(d config.ConfigDiff, cfg *config.Config) {
	if d.ContactsChanged || d.PromptsChanged {
		var prompts convo.Prompts
		if cfg.Prompts != nil {
			prompts = *cfg.Prompts
		}
		a.machine.Reconfigure(cfg.Contacts, prompts)
		slog.Info("app: contacts and prompts reloaded", "contacts", len(cfg.Contacts))
	}
	if d.ThresholdsChanged && a.detector != nil {
		th := falldetect.DefaultThresholds()
		if cfg.Fall.Thresholds != nil {
			th = *cfg.Fall.Thresholds
		}
		a.detector.SetThresholds(th)
	}
}

// Machine exposes the conversation machine for the command layer.
func (a *App) Machine() *convo.Machine { return a.machine }

// Reminders exposes the reminder store.
func (a *App) Reminders() *store.ReminderStore { return a.reminders }

// Shutdown tears down all subsystems in reverse-init order. It respects
// the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.recognizer.Stop()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Actions adapter ─────────────────────────────────────────────────────────

// errNoBackend is spoken-path safe: the machine converts action errors
// into apology prompts, never raw text.
var errNoBackend = errors.New("app: backend command endpoint not configured")

// actions dispatches resolved intents to the backend clients and the
// local reminder store.
type actions struct {
	commander *backend.Commander
	messenger *backend.Messenger
	reminders *store.ReminderStore
	contacts  func() []convo.Contact
}

// Compile-time interface assertion.
var _ convo.Actions = (*actions)(nil)

func (x *actions) Call(ctx context.Context, contact string) error {
	if x.commander == nil {
		return errNoBackend
	}
	return x.commander.Call(ctx, contact)
}

func (x *actions) SetAlarm(ctx context.Context, at time.Time, label string) error {
	if label == "" {
		label = "alarma"
	}
	id := x.reminders.Add(label, at)
	slog.Info("alarm scheduled", "id", id, "at", at, "label", label)
	return nil
}

func (x *actions) SendMessage(ctx context.Context, recipient, body string) error {
	if x.messenger == nil {
		return errNoBackend
	}
	phone, ok := x.phoneFor(recipient)
	if !ok {
		return fmt.Errorf("app: unknown contact %q", recipient)
	}
	_, err := x.messenger.Send(ctx, phone, body)
	return err
}

func (x *actions) Query(ctx context.Context, text string) (string, error) {
	if x.commander == nil {
		return "", errNoBackend
	}
	return x.commander.Query(ctx, text)
}

func (x *actions) Media(ctx context.Context, op string) error {
	if x.commander == nil {
		return errNoBackend
	}
	return x.commander.Media(ctx, op)
}

// phoneFor resolves a spoken contact name case-insensitively.
func (x *actions) phoneFor(name string) (string, bool) {
	for _, c := range x.contacts() {
		if strings.EqualFold(c.Name, name) {
			return c.Phone, true
		}
	}
	return "", false
}

// ─── Stand-ins ───────────────────────────────────────────────────────────────

// noopAmbient satisfies the ambient listener when fall detection is off.
type noopAmbient struct{}

func (noopAmbient) Pause()  {}
func (noopAmbient) Resume() {}

// noopDispatcher logs instead of dispatching when no messenger exists.
type noopDispatcher struct{}

func (noopDispatcher) SendEmergency(_ context.Context, phone, userName string) {
	slog.Error("emergency dispatch requested but messaging is not configured",
		"phone", phone, "user", userName)
}

// nluUnavailable forces the machine onto its local parsing fallback.
type nluUnavailable struct{}

func (nluUnavailable) Route(context.Context, string, map[string]string) (nlu.RouteResult, error) {
	return nlu.RouteResult{}, errors.New("app: nlu provider not configured")
}
