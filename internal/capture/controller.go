package capture

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nisalabs/nisa-core/internal/config"
	"github.com/nisalabs/nisa-core/internal/conversation"
)

// ErrCaptureUnavailable is returned when no recognizer backend is configured.
// Typed input remains fully functional without one.
var ErrCaptureUnavailable = errors.New("capture: no speech backend available")

// State is the capture controller's listening state.
type State string

const (
	StateInactive  State = "inactive"
	StateListening State = "listening"
)

// Submitter accepts finalized utterances. Submissions may be rejected while a
// turn is in flight; the controller logs the rejection and drops the
// transcript rather than queueing it.
type Submitter interface {
	Submit(utt conversation.Utterance) error
}

// Controller accumulates microphone audio between a start and a stop toggle,
// runs the recognizer over it, and submits the trimmed transcript as a spoken
// utterance. While listening it keeps a partial transcript for display.
type Controller struct {
	cfg        config.CaptureConfig
	recognizer Recognizer
	submitter  Submitter
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	buffer      []byte
	transcript  string
	lastPartial time.Time
	inflight    bool
}

func NewController(parent context.Context, cfg config.CaptureConfig, recognizer Recognizer, submitter Submitter, logger *slog.Logger) *Controller {
	ctx, cancel := context.WithCancel(parent)
	return &Controller{
		cfg:        cfg,
		recognizer: recognizer,
		submitter:  submitter,
		logger:     logger.With(slog.String("component", "capture")),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateInactive,
	}
}

// Available reports whether speech input can be offered at all.
func (c *Controller) Available() bool {
	return c.cfg.Enabled && c.recognizer != nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the most recent partial or final transcript.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Toggle flips between inactive and listening. Stopping finalizes the
// buffered audio: the transcript is trimmed and submitted as a spoken
// utterance, or discarded when empty. A rejected submission is logged and
// dropped, never retried.
func (c *Controller) Toggle(ctx context.Context) (State, error) {
	if !c.Available() {
		return StateInactive, ErrCaptureUnavailable
	}

	c.mu.Lock()
	if c.state == StateInactive {
		c.state = StateListening
		c.buffer = nil
		c.transcript = ""
		c.lastPartial = time.Time{}
		c.mu.Unlock()
		c.logger.Debug("capture started")
		return StateListening, nil
	}
	c.state = StateInactive
	pcm := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	if len(pcm) == 0 {
		c.logger.Debug("capture stopped with no audio")
		return StateInactive, nil
	}

	result, err := c.recognizer.Transcribe(ctx, pcm, c.cfg.SampleRate, c.cfg.Channels, true)
	if err != nil {
		c.logger.Warn("final transcription failed", slogError(err))
		return StateInactive, err
	}

	// The transcript is consumed exactly once: submitted or dropped, then cleared.
	c.mu.Lock()
	c.transcript = ""
	c.mu.Unlock()

	text := strings.TrimSpace(result.Text)
	if text == "" {
		c.logger.Debug("capture produced an empty transcript, nothing submitted")
		return StateInactive, nil
	}

	if err := c.submitter.Submit(conversation.Utterance{Text: text, Origin: conversation.OriginSpoken}); err != nil {
		// Usually the in-flight guard. The transcript is dropped, not queued.
		c.logger.Warn("spoken utterance rejected",
			slog.String("transcript", text),
			slogError(err))
	}
	return StateInactive, nil
}

// Reset abandons any in-progress capture and clears the transcript without
// submitting anything.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = StateInactive
	c.buffer = nil
	c.transcript = ""
	c.lastPartial = time.Time{}
	c.mu.Unlock()
}

// PushAudio appends a PCM frame to the capture buffer. Frames arriving while
// inactive are discarded.
func (c *Controller) PushAudio(pcm []byte) {
	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.buffer = append(c.buffer, pcm...)
	shouldPartial := c.shouldSchedulePartialLocked()
	var snapshot []byte
	if shouldPartial {
		snapshot = append([]byte(nil), c.buffer...)
		c.inflight = true
	}
	c.mu.Unlock()

	if shouldPartial {
		c.wg.Add(1)
		go c.runPartial(snapshot)
	}
}

// Close stops any in-flight partial transcription.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) shouldSchedulePartialLocked() bool {
	if c.inflight {
		return false
	}
	interval := time.Duration(c.cfg.PartialEveryMS) * time.Millisecond
	if interval <= 0 {
		return false
	}
	if c.lastPartial.IsZero() || time.Since(c.lastPartial) >= interval {
		c.lastPartial = time.Now()
		return true
	}
	return false
}

func (c *Controller) runPartial(pcm []byte) {
	defer c.wg.Done()
	ctx, cancel := context.WithTimeout(c.ctx, 45*time.Second)
	defer cancel()

	result, err := c.recognizer.Transcribe(ctx, pcm, c.cfg.SampleRate, c.cfg.Channels, false)

	c.mu.Lock()
	c.inflight = false
	if err == nil && c.state == StateListening {
		c.transcript = strings.TrimSpace(result.Text)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("partial transcription failed", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
