// Package convo implements the conversation arbitration state machine.
// It owns the "who has the microphone, who is speaking" state across
// wake-word listening, instruction capture, backend dispatch, reply
// playback and the post-fall confirmation dialogue, serializing every
// trigger source into one active flow at a time.
package convo

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/sentina/internal/capture"
	"github.com/MrWong99/sentina/internal/falldetect"
	"github.com/MrWong99/sentina/internal/observe"
	"github.com/MrWong99/sentina/internal/store"
	"github.com/MrWong99/sentina/internal/vad"
	"github.com/MrWong99/sentina/pkg/provider/nlu"
	"github.com/MrWong99/sentina/pkg/provider/stt"
	"github.com/MrWong99/sentina/pkg/provider/tts"
	"github.com/MrWong99/sentina/pkg/provider/wake"
)

// Contact is an emergency contact.
type Contact struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"` // E.164
}

// Prompts are the spoken sentences of the companion. Every user-visible
// failure is one of these, never a raw error.
type Prompts struct {
	Acknowledgments []string `yaml:"acknowledgments"` // %s = user name
	DidNotHear      string   `yaml:"did_not_hear"`
	STTApology      string   `yaml:"stt_apology"`
	FallCheck       string   `yaml:"fall_check"`   // %s = user name
	FallRecheck     string   `yaml:"fall_recheck"` // %s = user name
	FallReassured   string   `yaml:"fall_reassured"`
	HelpConfirm     string   `yaml:"help_confirm"`
	UnknownReply    string   `yaml:"unknown_reply"`
	MessageIntro    string   `yaml:"message_intro"`  // sender, body
	ReminderIntro   string   `yaml:"reminder_intro"` // text
}

// DefaultPrompts returns the Spanish defaults.
func DefaultPrompts() Prompts {
	return Prompts{
		Acknowledgments: []string{
			"Dime, %s.",
			"¿Sí, %s?",
			"Te escucho, %s.",
		},
		DidNotHear:    "Perdona, no te he escuchado bien.",
		STTApology:    "Perdona, ahora mismo no puedo entenderte.",
		FallCheck:     "He oído un golpe. ¿Estás bien, %s?",
		FallRecheck:   "%s, ¿me oyes? ¿Estás bien?",
		FallReassured: "Me alegro. Avísame si necesitas algo.",
		HelpConfirm:   "Tranquilo, voy a avisar a tus contactos ahora mismo.",
		UnknownReply:  "Perdona, no he entendido qué necesitas.",
		MessageIntro:  "Tienes un mensaje de %s: %s",
		ReminderIntro: "Recordatorio: %s",
	}
}

// AmbientListener is the subset of the fall detector the machine
// controls: pausing the ambient worker for the duration of a
// confirmation flow.
type AmbientListener interface {
	Pause()
	Resume()
}

// EmergencyDispatcher notifies one contact that the user needs help.
type EmergencyDispatcher interface {
	SendEmergency(ctx context.Context, phone, userName string)
}

// Config wires a Machine.
type Config struct {
	UserName string
	WakeWord string
	Contacts []Contact
	Prompts  Prompts

	// OnFallDetected, when set, is notified about every accepted fall
	// signal (for the control surface push). Called off the run loop.
	OnFallDetected func(source, userName string)
}

// Machine is the arbitration state machine. Construct with New, drive
// with Run, and feed external triggers through Post.
type Machine struct {
	cfg        Config
	recognizer wake.Recognizer
	capture    *capture.Controller
	vadGate    *vad.Gate
	stt        stt.Provider
	tts        tts.Provider
	nlu        nlu.Provider
	ambient    AmbientListener
	gate       *falldetect.ActivationGate
	dispatch   EmergencyDispatcher
	actions    Actions
	messages   *store.MessageSlot

	events  chan Event
	filter  *WakeFilter
	metrics *observe.Metrics

	// Hot-reloadable configuration, read from several goroutines.
	hot atomic.Pointer[hotConfig]

	// Run-loop confined.
	runCtx       context.Context
	retry        int
	fallPending  bool
	awaitCommand bool
	turnCtx      context.Context
	turnCancel   context.CancelFunc
	speakCancel  context.CancelFunc
	deferredSay  []string

	mu    sync.Mutex
	state State
}

// New creates a Machine. All collaborators are required except
// cfg.OnFallDetected.
func New(cfg Config, rec wake.Recognizer, recorder *capture.Controller, gate *vad.Gate,
	sttP stt.Provider, ttsP tts.Provider, nluP nlu.Provider,
	ambient AmbientListener, fallGate *falldetect.ActivationGate,
	dispatch EmergencyDispatcher, actions Actions, messages *store.MessageSlot) *Machine {
	m := &Machine{
		cfg:        cfg,
		recognizer: rec,
		capture:    recorder,
		vadGate:    gate,
		stt:        sttP,
		tts:        ttsP,
		nlu:        nluP,
		ambient:    ambient,
		gate:       fallGate,
		dispatch:   dispatch,
		actions:    actions,
		messages:   messages,
		events:     make(chan Event, 64),
		filter:     NewWakeFilter(cfg.WakeWord),
		metrics:    observe.DefaultMetrics(),
	}
	m.Reconfigure(cfg.Contacts, cfg.Prompts)
	return m
}

// hotConfig is the reloadable slice of the machine's configuration.
type hotConfig struct {
	contacts []Contact
	prompts  Prompts
}

// Reconfigure replaces the contact list and prompt set. Safe to call
// while Run is active; flows already in progress keep the sentences
// they started with. An empty prompt set falls back to the defaults.
func (m *Machine) Reconfigure(contacts []Contact, prompts Prompts) {
	if len(prompts.Acknowledgments) == 0 {
		prompts = DefaultPrompts()
	}
	m.hot.Store(&hotConfig{
		contacts: slices.Clone(contacts),
		prompts:  prompts,
	})
}

func (m *Machine) prompts() Prompts { return m.hot.Load().prompts }

// Contacts returns the current emergency contact list.
func (m *Machine) Contacts() []Contact { return m.hot.Load().contacts }

// Post delivers an external event to the run loop.
func (m *Machine) Post(ev Event) {
	m.events <- ev
}

// State returns the current conversation state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()
	if prev != s {
		slog.Debug("convo: state transition", "from", prev, "to", s)
	}
}

// Run drives the machine until ctx is done. It starts the wake
// recognizer and consumes events from all trigger sources.
func (m *Machine) Run(ctx context.Context) error {
	m.runCtx = ctx
	m.startListening()
	defer m.recognizer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-m.recognizer.Results():
			m.handle(WakeDetected{Text: res.Text, At: res.At})
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

func (m *Machine) handle(ev Event) {
	switch ev := ev.(type) {
	case WakeDetected:
		m.onWake(ev)
	case speechDone:
		m.onSpeechDone(ev)
	case instructionCaptured:
		m.onInstruction(ev)
	case responseReady:
		m.onResponse(ev)
	case CommandFinished:
		if m.State() != StateIdle && m.awaitCommand {
			m.awaitCommand = false
			m.finishTurn()
		}
	case SayRequest:
		m.onSay(ev)
	case MessageArrived:
		if m.messages.Put(ev.Message) && m.State() == StateIdle {
			m.drainDeferred()
		}
	case ReminderDue:
		text := fmt.Sprintf(m.prompts().ReminderIntro, ev.Reminder.Text)
		if m.State() == StateIdle {
			m.speakFinal(text)
		} else {
			m.deferredSay = append(m.deferredSay, text)
		}
	case FallSignal:
		m.onFall(ev)
	case fallOutcome:
		m.onFallOutcome(ev)
	case fallClosed:
		m.onFallClosed()
	}
}

func (m *Machine) onWake(ev WakeDetected) {
	if m.State() != StateIdle {
		return
	}
	if !m.filter.Accept(ev.Text, ev.At) {
		return
	}
	slog.Info("convo: wake trigger", "text", ev.Text)
	m.metrics.WakeTriggers.Add(m.runCtx, 1)
	m.recognizer.Stop()
	m.setState(StateAcknowledging)

	m.turnCtx, m.turnCancel = context.WithCancel(m.runCtx)

	acks := m.prompts().Acknowledgments
	ack := acks[rand.IntN(len(acks))]
	m.speakAsync(m.turnCtx, fmt.Sprintf(ack, m.cfg.UserName), phaseAck)
}

func (m *Machine) onSpeechDone(ev speechDone) {
	switch m.State() {
	case StateAcknowledging:
		if ev.canceled {
			return // a fall flow took over mid-acknowledgment
		}
		m.setState(StateCapturing)
		go m.captureInstruction(m.turnContext())
	case StateSpeaking:
		if ev.phase != phaseFinal {
			return
		}
		if m.awaitCommand {
			return // turn stays open until CommandFinished
		}
		m.finishTurn()
	default:
		// Speech cut short by a fall interrupt; the fall flow owns the
		// device now.
	}
}

func (m *Machine) onInstruction(ev instructionCaptured) {
	if m.State() != StateCapturing {
		return
	}
	if !ev.heard {
		m.setState(StateSpeaking)
		m.speakAsync(m.turnContext(), m.prompts().DidNotHear, phaseFinal)
		return
	}
	if ev.transcript == "" {
		m.setState(StateSpeaking)
		m.speakAsync(m.turnContext(), m.prompts().STTApology, phaseFinal)
		return
	}
	m.setState(StateProcessing)
	go m.process(m.turnContext(), ev.transcript)
}

func (m *Machine) onResponse(ev responseReady) {
	if m.State() != StateProcessing {
		return
	}
	m.awaitCommand = ev.awaitCommand
	m.setState(StateSpeaking)
	m.speakAsync(m.turnContext(), ev.text, phaseFinal)
}

func (m *Machine) onSay(ev SayRequest) {
	if m.State() == StateIdle {
		m.speakFinal(ev.Text)
		return
	}
	if ev.EnqueueIfBusy {
		m.deferredSay = append(m.deferredSay, ev.Text)
	}
}

// onFall enters the confirmation flow from any state, interrupting
// whatever is in progress. The detector has already acquired the
// activation gate.
func (m *Machine) onFall(ev FallSignal) {
	if m.State() == StateAwaitingConfirmation {
		return
	}
	slog.Warn("convo: fall signal", "source", ev.Source)
	if m.speakCancel != nil {
		m.speakCancel()
	}
	if m.turnCancel != nil {
		m.turnCancel()
		m.turnCancel = nil
		m.turnCtx = nil
	}
	m.recognizer.Stop()
	m.ambient.Pause()
	m.awaitCommand = false
	m.retry = 0
	m.fallPending = true
	m.setState(StateAwaitingConfirmation)

	if m.cfg.OnFallDetected != nil {
		go m.cfg.OnFallDetected(ev.Source, m.cfg.UserName)
	}
	go m.fallRound(m.runCtx, fmt.Sprintf(m.prompts().FallCheck, m.cfg.UserName))
}

func (m *Machine) onFallOutcome(ev fallOutcome) {
	if m.State() != StateAwaitingConfirmation {
		return
	}
	switch {
	case ev.verdict == VerdictOK:
		go m.resolveFall(m.runCtx, false)
	case ev.verdict == VerdictHelp:
		go m.resolveFall(m.runCtx, true)
	case m.retry == 0:
		// First ambiguity earns one re-prompt.
		m.retry = 1
		go m.fallRound(m.runCtx, fmt.Sprintf(m.prompts().FallRecheck, m.cfg.UserName))
	default:
		// Still ambiguous after the retry: escalate, never re-prompt again.
		slog.Warn("convo: check-in still ambiguous, escalating")
		go m.resolveFall(m.runCtx, true)
	}
}

func (m *Machine) onFallClosed() {
	m.gate.Release()
	m.ambient.Resume()
	m.fallPending = false
	m.retry = 0
	m.finishTurn()
}

// finishTurn returns to idle, restarts wake listening and drains any
// deferred announcement.
func (m *Machine) finishTurn() {
	if m.turnCancel != nil {
		m.turnCancel()
		m.turnCancel = nil
		m.turnCtx = nil
	}
	m.metrics.RecordTurn(m.runCtx, "completed")
	if m.fallPending {
		// A fall prompt is pending; the listener restart is deferred
		// until that flow fully finishes.
		return
	}
	m.setState(StateIdle)
	m.startListening()
	m.drainDeferred()
}

// drainDeferred announces the next queued item, one per idle return.
func (m *Machine) drainDeferred() {
	if len(m.deferredSay) > 0 {
		text := m.deferredSay[0]
		m.deferredSay = m.deferredSay[1:]
		m.speakFinal(text)
		return
	}
	if msg, ok := m.messages.Take(); ok {
		body := msg.Body
		if body == "" {
			body = strings.Join(msg.Parts, ". ")
		}
		m.speakFinal(fmt.Sprintf(m.prompts().MessageIntro, msg.Sender, body))
	}
}

func (m *Machine) startListening() {
	if err := m.recognizer.Start(m.runCtx); err != nil {
		slog.Error("convo: cannot start wake listener", "err", err)
	}
}

// speakFinal runs a one-utterance turn from idle.
func (m *Machine) speakFinal(text string) {
	m.recognizer.Stop()
	m.setState(StateSpeaking)
	m.turnCtx, m.turnCancel = context.WithCancel(m.runCtx)
	m.speakAsync(m.turnCtx, text, phaseFinal)
}

// speakAsync plays text on a worker and posts speechDone. The stored
// cancel lets a fall signal cut playback immediately.
func (m *Machine) speakAsync(ctx context.Context, text string, phase speechPhase) {
	speakCtx, cancel := context.WithCancel(ctx)
	m.speakCancel = cancel
	go func() {
		defer cancel()
		start := time.Now()
		err := m.tts.Speak(speakCtx, text)
		switch {
		case err != nil && speakCtx.Err() == nil:
			slog.Error("convo: speech failed", "err", err)
			m.metrics.RecordProviderError(speakCtx, "tts", "speak")
		case err == nil:
			m.metrics.TTSDuration.Record(speakCtx, time.Since(start).Seconds())
		}
		m.events <- speechDone{phase: phase, canceled: speakCtx.Err() != nil}
	}()
}

func (m *Machine) turnContext() context.Context {
	if m.turnCtx == nil {
		return m.runCtx
	}
	return m.turnCtx
}

// captureInstruction records, gates and transcribes one instruction.
func (m *Machine) captureInstruction(ctx context.Context) {
	start := time.Now()
	res, err := m.capture.Record(ctx, capture.Callbacks{})
	if err != nil {
		slog.Error("convo: capture failed", "err", err)
		m.events <- instructionCaptured{heard: false}
		return
	}
	m.metrics.CaptureDuration.Record(ctx, time.Since(start).Seconds())
	defer os.Remove(res.Path)

	if !res.Voiced {
		m.events <- instructionCaptured{heard: false}
		return
	}
	f, err := os.Open(res.Path)
	if err != nil {
		m.events <- instructionCaptured{heard: false}
		return
	}
	ok := m.vadGate.HasEnoughVoice(f)
	f.Close()
	if !ok {
		m.metrics.VADRejects.Add(ctx, 1)
		m.events <- instructionCaptured{heard: false}
		return
	}

	wav, err := os.Open(res.Path)
	if err != nil {
		m.events <- instructionCaptured{heard: false}
		return
	}
	sttStart := time.Now()
	transcript, err := m.stt.Transcribe(ctx, wav)
	wav.Close()
	if err != nil {
		slog.Warn("convo: transcription failed", "err", err)
		m.metrics.RecordProviderError(ctx, "stt", "transcribe")
		m.metrics.RecordProviderRequest(ctx, "stt", "transcribe", "error")
		m.events <- instructionCaptured{heard: true, transcript: ""}
		return
	}
	m.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	m.metrics.RecordProviderRequest(ctx, "stt", "transcribe", "ok")
	m.events <- instructionCaptured{heard: true, transcript: strings.TrimSpace(transcript)}
}

// process resolves the transcript into a spoken response, dispatching
// the resolved action to its external handler.
func (m *Machine) process(ctx context.Context, transcript string) {
	// Safety net: an explicit plea for help outside the fall flow goes
	// straight to the confirmation path.
	if AssessFallReply(transcript) == VerdictHelp {
		if m.gate.TryAcquire() {
			m.events <- FallSignal{Source: "speech"}
			return
		}
	}

	intent := m.route(ctx, transcript)
	text, await := m.perform(ctx, intent)
	m.events <- responseReady{text: text, awaitCommand: await}
}

// route asks the NLU router, falling back to the local alarm time
// parser when it is unreachable.
func (m *Machine) route(ctx context.Context, transcript string) Intent {
	start := time.Now()
	res, err := m.nlu.Route(ctx, transcript, map[string]string{"user": m.cfg.UserName})
	if err == nil {
		m.metrics.NLUDuration.Record(ctx, time.Since(start).Seconds())
		return resolveIntent(res, time.Now())
	}
	m.metrics.RecordProviderError(ctx, "nlu", "route")
	slog.Warn("convo: router unreachable, trying local parse", "err", err)

	norm := normalizeReply(transcript)
	if strings.Contains(norm, "alarma") || strings.Contains(norm, "despierta") ||
		strings.Contains(norm, "recuerda") || strings.Contains(norm, "avisa") {
		if at, ok := ParseSpanishTime(norm, time.Now()); ok {
			return SetAlarmIntent{At: at}
		}
	}
	return UnknownIntent{}
}

// perform dispatches one intent and builds the spoken reply.
func (m *Machine) perform(ctx context.Context, intent Intent) (text string, awaitCommand bool) {
	switch it := intent.(type) {
	case CallIntent:
		if err := m.actions.Call(ctx, it.Contact); err != nil {
			slog.Error("convo: call dispatch failed", "contact", it.Contact, "err", err)
			return m.prompts().UnknownReply, false
		}
		return fmt.Sprintf("Llamando a %s.", it.Contact), true
	case SetAlarmIntent:
		if err := m.actions.SetAlarm(ctx, it.At, it.Label); err != nil {
			slog.Error("convo: alarm dispatch failed", "err", err)
			return m.prompts().UnknownReply, false
		}
		return fmt.Sprintf("Vale, te aviso a las %s.", it.At.Format("15:04")), false
	case SendMessageIntent:
		if err := m.actions.SendMessage(ctx, it.Recipient, it.Body); err != nil {
			slog.Error("convo: message dispatch failed", "err", err)
			return m.prompts().UnknownReply, false
		}
		return fmt.Sprintf("Mensaje enviado a %s.", it.Recipient), false
	case QueryIntent:
		reply, err := m.actions.Query(ctx, it.Text)
		if err != nil {
			slog.Error("convo: query failed", "err", err)
			return m.prompts().UnknownReply, false
		}
		return reply, false
	case MediaIntent:
		if err := m.actions.Media(ctx, it.Op); err != nil {
			slog.Error("convo: media dispatch failed", "err", err)
			return m.prompts().UnknownReply, false
		}
		return "Hecho.", false
	case AnswerIntent:
		return it.Text, false
	default:
		return m.prompts().UnknownReply, false
	}
}

// fallRound speaks the check-in prompt, captures a short reply and
// posts its verdict.
func (m *Machine) fallRound(ctx context.Context, prompt string) {
	if err := m.tts.Speak(ctx, prompt); err != nil && ctx.Err() == nil {
		slog.Error("convo: check-in prompt failed", "err", err)
	}

	res, err := m.capture.Record(ctx, capture.Callbacks{})
	if err != nil {
		slog.Warn("convo: check-in capture failed", "err", err)
		m.events <- fallOutcome{verdict: VerdictUnknown}
		return
	}
	defer os.Remove(res.Path)

	if !res.Voiced {
		m.events <- fallOutcome{verdict: VerdictUnknown}
		return
	}

	wav, err := os.Open(res.Path)
	if err != nil {
		m.events <- fallOutcome{verdict: VerdictUnknown}
		return
	}
	transcript, err := m.stt.Transcribe(ctx, wav)
	wav.Close()
	if err != nil {
		slog.Warn("convo: check-in transcription failed", "err", err)
		m.events <- fallOutcome{verdict: VerdictUnknown}
		return
	}
	m.events <- fallOutcome{verdict: AssessFallReply(transcript)}
}

// resolveFall closes the confirmation flow, dispatching emergencies
// when help reports true.
func (m *Machine) resolveFall(ctx context.Context, help bool) {
	if help {
		for _, c := range m.Contacts() {
			m.dispatch.SendEmergency(ctx, c.Phone, m.cfg.UserName)
		}
		if err := m.tts.Speak(ctx, m.prompts().HelpConfirm); err != nil && ctx.Err() == nil {
			slog.Error("convo: help confirmation failed", "err", err)
		}
	} else {
		if err := m.tts.Speak(ctx, m.prompts().FallReassured); err != nil && ctx.Err() == nil {
			slog.Error("convo: reassurance reply failed", "err", err)
		}
	}
	m.events <- fallClosed{}
}
