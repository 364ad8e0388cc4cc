package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/nisalabs/nisa-core/internal/config"
	"github.com/nisalabs/nisa-core/internal/conversation"
)

type scriptedRecognizer struct {
	text string
	err  error
}

func (r *scriptedRecognizer) Transcribe(_ context.Context, _ []byte, _ int, _ int, _ bool) (Result, error) {
	return Result{Text: r.text}, r.err
}

type recordingSubmitter struct {
	mu         sync.Mutex
	utts       []conversation.Utterance
	rejectWith error
}

func (s *recordingSubmitter) Submit(utt conversation.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectWith != nil {
		return s.rejectWith
	}
	s.utts = append(s.utts, utt)
	return nil
}

func (s *recordingSubmitter) submitted() []conversation.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]conversation.Utterance(nil), s.utts...)
}

func testCaptureConfig() config.CaptureConfig {
	return config.CaptureConfig{
		Enabled:    true,
		Mode:       "mock",
		SampleRate: 16000,
		Channels:   1,
	}
}

func newTestController(t *testing.T, rec Recognizer, sub Submitter) *Controller {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewController(context.Background(), testCaptureConfig(), rec, sub, logger)
	t.Cleanup(c.Close)
	return c
}

func TestToggleUnavailableWithoutBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testCaptureConfig()
	cfg.Enabled = false
	c := NewController(context.Background(), cfg, NewMockRecognizer(), &recordingSubmitter{}, logger)
	t.Cleanup(c.Close)

	if c.Available() {
		t.Fatal("capture should be unavailable when disabled")
	}
	if _, err := c.Toggle(context.Background()); !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
}

func TestToggleSubmitsSpokenUtterance(t *testing.T) {
	rec := &scriptedRecognizer{text: "  turn on the lights  "}
	sub := &recordingSubmitter{}
	c := newTestController(t, rec, sub)

	state, err := c.Toggle(context.Background())
	if err != nil {
		t.Fatalf("toggle start: %v", err)
	}
	if state != StateListening {
		t.Fatalf("expected listening, got %s", state)
	}
	c.PushAudio(make([]byte, 320))

	state, err = c.Toggle(context.Background())
	if err != nil {
		t.Fatalf("toggle stop: %v", err)
	}
	if state != StateInactive {
		t.Fatalf("expected inactive, got %s", state)
	}

	utts := sub.submitted()
	if len(utts) != 1 {
		t.Fatalf("expected one submission, got %d", len(utts))
	}
	if utts[0].Text != "turn on the lights" {
		t.Fatalf("expected trimmed transcript, got %q", utts[0].Text)
	}
	if utts[0].Origin != conversation.OriginSpoken {
		t.Fatalf("expected spoken origin, got %s", utts[0].Origin)
	}
	if c.Transcript() != "" {
		t.Fatalf("transcript must be cleared after submission, got %q", c.Transcript())
	}
}

func TestEmptyTranscriptIsNotSubmitted(t *testing.T) {
	rec := &scriptedRecognizer{text: "   "}
	sub := &recordingSubmitter{}
	c := newTestController(t, rec, sub)

	if _, err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle start: %v", err)
	}
	c.PushAudio(make([]byte, 320))
	if _, err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle stop: %v", err)
	}
	if got := sub.submitted(); len(got) != 0 {
		t.Fatalf("whitespace transcript must not be submitted, got %v", got)
	}
}

func TestStopWithoutAudioSubmitsNothing(t *testing.T) {
	rec := &scriptedRecognizer{text: "should never run"}
	sub := &recordingSubmitter{}
	c := newTestController(t, rec, sub)

	if _, err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle start: %v", err)
	}
	if _, err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle stop: %v", err)
	}
	if got := sub.submitted(); len(got) != 0 {
		t.Fatalf("no audio means nothing to submit, got %v", got)
	}
}

func TestRejectedSubmissionIsDroppedNotRetried(t *testing.T) {
	rec := &scriptedRecognizer{text: "late arrival"}
	sub := &recordingSubmitter{rejectWith: errors.New("turn already in flight")}
	c := newTestController(t, rec, sub)

	if _, err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle start: %v", err)
	}
	c.PushAudio(make([]byte, 320))
	// The guard rejection is logged, not surfaced as a toggle failure.
	if _, err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle stop should absorb the rejection, got %v", err)
	}
	if got := sub.submitted(); len(got) != 0 {
		t.Fatalf("rejected transcript must be dropped, got %v", got)
	}
}

func TestTranscriptionFailureSurfacesError(t *testing.T) {
	rec := &scriptedRecognizer{err: errors.New("backend crashed")}
	sub := &recordingSubmitter{}
	c := newTestController(t, rec, sub)

	if _, err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle start: %v", err)
	}
	c.PushAudio(make([]byte, 320))
	if _, err := c.Toggle(context.Background()); err == nil {
		t.Fatal("expected transcription error")
	}
	if c.State() != StateInactive {
		t.Fatalf("controller must end inactive, got %s", c.State())
	}
	if got := sub.submitted(); len(got) != 0 {
		t.Fatalf("failed transcription must not submit, got %v", got)
	}
}

func TestResetAbandonsCapture(t *testing.T) {
	rec := &scriptedRecognizer{text: "should be abandoned"}
	sub := &recordingSubmitter{}
	c := newTestController(t, rec, sub)

	if _, err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle start: %v", err)
	}
	c.PushAudio(make([]byte, 320))
	c.Reset()

	if c.State() != StateInactive {
		t.Fatalf("expected inactive after reset, got %s", c.State())
	}
	if c.Transcript() != "" {
		t.Fatalf("expected cleared transcript, got %q", c.Transcript())
	}
	if got := sub.submitted(); len(got) != 0 {
		t.Fatalf("reset must not submit, got %v", got)
	}
}

func TestFramesIgnoredWhileInactive(t *testing.T) {
	rec := &scriptedRecognizer{text: "hello"}
	sub := &recordingSubmitter{}
	c := newTestController(t, rec, sub)

	c.PushAudio(make([]byte, 320))
	if _, err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle start: %v", err)
	}
	if _, err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("toggle stop: %v", err)
	}
	if got := sub.submitted(); len(got) != 0 {
		t.Fatalf("frames before listening must be dropped, got %v", got)
	}
}
