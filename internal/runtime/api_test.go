package runtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nisalabs/nisa-core/internal/config"
	"github.com/nisalabs/nisa-core/internal/conversation"
	"github.com/nisalabs/nisa-core/internal/emotion"
	"github.com/nisalabs/nisa-core/internal/orchestrator"
)

type fakeTurnService struct {
	submitErr error
	submitted []conversation.Utterance
	turns     []conversation.Turn
	status    orchestrator.Status
}

func (f *fakeTurnService) Submit(utt conversation.Utterance) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, utt)
	return nil
}

func (f *fakeTurnService) Turns() []conversation.Turn  { return f.turns }
func (f *fakeTurnService) Status() orchestrator.Status { return f.status }
func (f *fakeTurnService) SessionID() string           { return "session-test" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAPIMux(t *testing.T, svc turnService) *http.ServeMux {
	t.Helper()
	rt := New(config.Default(), testLogger())
	rt.turns = svc
	mux := http.NewServeMux()
	rt.registerAPI(mux)
	return mux
}

func TestExamplesEndpoint(t *testing.T) {
	mux := newAPIMux(t, &fakeTurnService{status: orchestrator.StatusIdle})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/examples", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var prompts []examplePrompt
	if err := json.Unmarshal(rec.Body.Bytes(), &prompts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(prompts) != 5 {
		t.Fatalf("expected 5 example prompts, got %d", len(prompts))
	}
	wantEmotions := []string{"calm", "excited", "sad", "angry", "happy"}
	for i, want := range wantEmotions {
		if prompts[i].Emotion != want {
			t.Fatalf("prompt %d emotion %q, want %q", i, prompts[i].Emotion, want)
		}
		if prompts[i].Text == "" {
			t.Fatalf("prompt %d has empty text", i)
		}
	}
}

func TestSubmitUtteranceAccepted(t *testing.T) {
	svc := &fakeTurnService{status: orchestrator.StatusIdle}
	mux := newAPIMux(t, svc)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"text":"hello nisa"}`)
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/utterances", body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(svc.submitted))
	}
	if svc.submitted[0].Origin != conversation.OriginTyped {
		t.Fatalf("http submissions must be typed, got %s", svc.submitted[0].Origin)
	}
}

func TestSubmitUtteranceBusyReturnsConflict(t *testing.T) {
	svc := &fakeTurnService{submitErr: orchestrator.ErrTurnInFlight}
	mux := newAPIMux(t, svc)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"text":"too soon"}`)
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/utterances", body))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSubmitUtteranceEmptyReturnsBadRequest(t *testing.T) {
	svc := &fakeTurnService{submitErr: orchestrator.ErrEmptyUtterance}
	mux := newAPIMux(t, svc)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"text":"   "}`)
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/utterances", body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConversationEndpoint(t *testing.T) {
	now := time.Now().UTC()
	svc := &fakeTurnService{
		status: orchestrator.StatusIdle,
		turns: []conversation.Turn{
			{Speaker: conversation.SpeakerUser, Text: "hi", Emotion: emotion.Neutral, CreatedAt: now},
			{Speaker: conversation.SpeakerBot, Text: "hello!", Emotion: emotion.Happy, CreatedAt: now},
		},
	}
	mux := newAPIMux(t, svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/conversation", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var payload conversationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.SessionID != "session-test" {
		t.Fatalf("unexpected session id %q", payload.SessionID)
	}
	if len(payload.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(payload.Turns))
	}
	if payload.Turns[1].Emotion != "happy" {
		t.Fatalf("unexpected emotion %q", payload.Turns[1].Emotion)
	}
}

func TestStatusEndpoint(t *testing.T) {
	svc := &fakeTurnService{status: orchestrator.StatusAwaitingCompletion}
	mux := newAPIMux(t, svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var payload statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != "awaiting_completion" {
		t.Fatalf("unexpected status %q", payload.Status)
	}
}

func TestCaptureEndpointsWithoutController(t *testing.T) {
	mux := newAPIMux(t, &fakeTurnService{status: orchestrator.StatusIdle})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/capture", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var state captureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Available {
		t.Fatal("capture must be unavailable without a controller")
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/capture/toggle", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 toggling without a controller, got %d", rec.Code)
	}
}

func TestMethodsAreEnforced(t *testing.T) {
	mux := newAPIMux(t, &fakeTurnService{status: orchestrator.StatusIdle})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/examples", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/utterances", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
