package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nisalabs/nisa-core/internal/completion"
	"github.com/nisalabs/nisa-core/internal/config"
	"github.com/nisalabs/nisa-core/internal/conversation"
	"github.com/nisalabs/nisa-core/internal/emotion"
	"github.com/nisalabs/nisa-core/internal/synthesis"
)

// Status is the orchestrator's state for the current turn.
type Status string

const (
	StatusIdle               Status = "idle"
	StatusAwaitingCompletion Status = "awaiting_completion"
	StatusAwaitingSynthesis  Status = "awaiting_synthesis"
	StatusPlaying            Status = "playing"
)

var (
	// ErrTurnInFlight is returned when a submission arrives while a turn is
	// still being processed. The submission is dropped, nothing is appended.
	ErrTurnInFlight = errors.New("orchestrator: turn already in flight")
	// ErrEmptyUtterance is returned for whitespace-only submissions.
	ErrEmptyUtterance = errors.New("orchestrator: empty utterance")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("orchestrator: closed")
)

// PlaybackSink receives synthesized audio for playback. Handoff is fire and
// forget: the orchestrator does not wait for playback to finish, and a new
// handoff supersedes any prior one.
type PlaybackSink interface {
	Play(ctx context.Context, audio []byte, mime string) error
}

// TurnRecorder persists appended turns. Recording is best-effort; failures
// never affect the pipeline.
type TurnRecorder interface {
	Record(ctx context.Context, turn conversation.Turn) error
}

// Callbacks observe the pipeline. Both are optional and are invoked from the
// turn goroutine, in transition order.
type Callbacks struct {
	OnTurn   func(conversation.Turn)
	OnStatus func(Status)
}

// Config holds the orchestrator's timing knobs.
type Config struct {
	// ComposingDelay is the pause between the user-turn append and the
	// completion call, giving the surface time to show a composing
	// indicator. Presentation only; it never reorders transitions.
	ComposingDelay    time.Duration
	CompletionTimeout time.Duration
	SynthesisTimeout  time.Duration
	FallbackReply     string
}

// ConfigFrom maps the runtime configuration onto orchestrator timings.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		ComposingDelay:    time.Duration(cfg.Orchestrator.ComposingDelayMS) * time.Millisecond,
		CompletionTimeout: time.Duration(cfg.Completion.TimeoutMS) * time.Millisecond,
		SynthesisTimeout:  time.Duration(cfg.Synthesis.TimeoutMS) * time.Millisecond,
		FallbackReply:     cfg.Orchestrator.FallbackReply,
	}
}

// Orchestrator drives one conversational turn at a time: user turn append,
// completion, emotion classification, bot turn append, synthesis, playback
// handoff. At most one turn is in flight; overlapping submissions are
// rejected. Every submission ends back at idle.
type Orchestrator struct {
	cfg       Config
	log       *conversation.Log
	completer completion.Completer
	synth     synthesis.Synthesizer
	playback  PlaybackSink
	recorder  TurnRecorder
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	status Status
	closed bool

	callbacks Callbacks
}

func New(parent context.Context, cfg Config, log *conversation.Log, completer completion.Completer, synth synthesis.Synthesizer, playback PlaybackSink, logger *slog.Logger) *Orchestrator {
	ctx, cancel := context.WithCancel(parent)
	return &Orchestrator{
		cfg:       cfg,
		log:       log,
		completer: completer,
		synth:     synth,
		playback:  playback,
		logger:    logger.With(slog.String("component", "orchestrator")),
		ctx:       ctx,
		cancel:    cancel,
		status:    StatusIdle,
	}
}

// SetCallbacks installs observers. Call before the first Submit.
func (o *Orchestrator) SetCallbacks(cb Callbacks) {
	o.callbacks = cb
}

// SetRecorder installs a turn recorder. Call before the first Submit.
func (o *Orchestrator) SetRecorder(r TurnRecorder) {
	o.recorder = r
}

// Status reports the state of the current turn.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Log exposes the session's conversation log.
func (o *Orchestrator) Log() *conversation.Log {
	return o.log
}

// Submit starts processing one utterance. It returns ErrEmptyUtterance for
// whitespace-only text (nothing appended) and ErrTurnInFlight while a turn is
// active (guard-and-drop; nothing appended). On acceptance the user turn is
// appended synchronously and the rest of the pipeline runs in its own
// goroutine; pipeline failures become visible turns or silent degradation,
// never errors out of Submit.
func (o *Orchestrator) Submit(utt conversation.Utterance) error {
	text := strings.TrimSpace(utt.Text)
	if text == "" {
		return ErrEmptyUtterance
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.status != StatusIdle {
		o.mu.Unlock()
		return ErrTurnInFlight
	}
	o.status = StatusAwaitingCompletion
	o.mu.Unlock()

	userTurn := o.log.AppendUser(text)
	o.emitTurn(userTurn)
	o.emitStatus(StatusAwaitingCompletion)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runTurn(text)
	}()
	return nil
}

// Close stops accepting submissions and waits for the in-flight turn to
// settle back at idle.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}

// runTurn executes the fixed sequence for one turn: composing delay,
// completion, classification, bot append, synthesis, playback handoff.
// Synthesis never begins before completion has resolved, and a synthesis
// failure never hides the completed reply.
func (o *Orchestrator) runTurn(text string) {
	if o.cfg.ComposingDelay > 0 {
		select {
		case <-o.ctx.Done():
		case <-time.After(o.cfg.ComposingDelay):
		}
	}

	ctx, cancel := context.WithTimeout(o.ctx, o.cfg.CompletionTimeout)
	reply, err := o.completer.Complete(ctx, text)
	cancel()
	if err != nil {
		o.logger.Warn("completion failed, showing fallback reply", slogError(err))
		botTurn := o.log.AppendBot(o.cfg.FallbackReply, emotion.Sad)
		o.emitTurn(botTurn)
		o.transition(StatusIdle)
		return
	}

	tag := emotion.Classify(reply)
	botTurn := o.log.AppendBot(reply, tag)
	o.emitTurn(botTurn)
	o.transition(StatusAwaitingSynthesis)

	ctx, cancel = context.WithTimeout(o.ctx, o.cfg.SynthesisTimeout)
	audio, err := o.synth.Synthesize(ctx, reply)
	cancel()
	if err != nil {
		// Degraded but not fatal: the reply stays visible, just without voice.
		o.logger.Warn("synthesis failed, reply stays text-only", slogError(err))
		o.transition(StatusIdle)
		return
	}

	if err := o.playback.Play(o.ctx, audio, synthesis.MIMEType); err != nil {
		o.logger.Warn("playback handoff failed", slogError(err))
		o.transition(StatusIdle)
		return
	}

	o.transition(StatusPlaying)
	o.transition(StatusIdle)
}

func (o *Orchestrator) transition(status Status) {
	o.mu.Lock()
	o.status = status
	o.mu.Unlock()
	o.emitStatus(status)
}

func (o *Orchestrator) emitStatus(status Status) {
	if o.callbacks.OnStatus != nil {
		o.callbacks.OnStatus(status)
	}
}

func (o *Orchestrator) emitTurn(turn conversation.Turn) {
	if o.recorder != nil {
		if err := o.recorder.Record(o.ctx, turn); err != nil {
			o.logger.Warn("failed to record turn", slogError(err))
		}
	}
	if o.callbacks.OnTurn != nil {
		o.callbacks.OnTurn(turn)
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
