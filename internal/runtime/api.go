package runtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nisalabs/nisa-core/internal/capture"
	"github.com/nisalabs/nisa-core/internal/conversation"
	"github.com/nisalabs/nisa-core/internal/orchestrator"
)

// examplePrompt is one of the canned questions the rendering surface offers,
// with the emotion its reply is expected to land on.
type examplePrompt struct {
	Text    string `json:"text"`
	Emotion string `json:"emotion"`
}

var examplePrompts = []examplePrompt{
	{Text: "Can you help me relax with a calming story?", Emotion: "calm"},
	{Text: "Tell me something amazing that happened today!", Emotion: "excited"},
	{Text: "I'm feeling a bit down, can you cheer me up?", Emotion: "sad"},
	{Text: "Why do people get angry sometimes?", Emotion: "angry"},
	{Text: "Share a happy memory with me!", Emotion: "happy"},
}

type submitRequest struct {
	Text string `json:"text"`
}

type submitResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

type turnPayload struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Emotion   string    `json:"emotion"`
	CreatedAt time.Time `json:"created_at"`
}

type conversationResponse struct {
	SessionID string        `json:"session_id"`
	Turns     []turnPayload `json:"turns"`
}

type statusResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

type captureResponse struct {
	Available  bool   `json:"available"`
	State      string `json:"state"`
	Transcript string `json:"transcript,omitempty"`
}

func (r *Runtime) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("/v1/examples", r.handleExamples)
	mux.HandleFunc("/v1/utterances", r.handleSubmitUtterance)
	mux.HandleFunc("/v1/conversation", r.handleConversation)
	mux.HandleFunc("/v1/status", r.handleStatus)
	mux.HandleFunc("/v1/capture", r.handleCaptureState)
	mux.HandleFunc("/v1/capture/toggle", r.handleCaptureToggle)
}

func (r *Runtime) handleExamples(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, examplePrompts)
}

func (r *Runtime) handleSubmitUtterance(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body submitRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Error: "invalid request body"})
		return
	}

	err := r.turns.Submit(conversation.Utterance{Text: body.Text, Origin: conversation.OriginTyped})
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, submitResponse{Accepted: true})
	case errors.Is(err, orchestrator.ErrEmptyUtterance):
		writeJSON(w, http.StatusBadRequest, submitResponse{Error: err.Error()})
	case errors.Is(err, orchestrator.ErrTurnInFlight):
		writeJSON(w, http.StatusConflict, submitResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusServiceUnavailable, submitResponse{Error: err.Error()})
	}
}

func (r *Runtime) handleConversation(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	turns := r.turns.Turns()
	payload := conversationResponse{
		SessionID: r.turns.SessionID(),
		Turns:     make([]turnPayload, 0, len(turns)),
	}
	for _, turn := range turns {
		payload.Turns = append(payload.Turns, turnPayload{
			Speaker:   string(turn.Speaker),
			Text:      turn.Text,
			Emotion:   string(turn.Emotion),
			CreatedAt: turn.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

func (r *Runtime) handleStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		SessionID: r.turns.SessionID(),
		Status:    string(r.turns.Status()),
	})
}

func (r *Runtime) handleCaptureState(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.captureCtl == nil {
		writeJSON(w, http.StatusOK, captureResponse{Available: false, State: string(capture.StateInactive)})
		return
	}
	writeJSON(w, http.StatusOK, captureResponse{
		Available:  r.captureCtl.Available(),
		State:      string(r.captureCtl.State()),
		Transcript: r.captureCtl.Transcript(),
	})
}

func (r *Runtime) handleCaptureToggle(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.captureCtl == nil {
		writeJSON(w, http.StatusConflict, captureResponse{Available: false, State: string(capture.StateInactive)})
		return
	}
	state, err := r.captureCtl.Toggle(req.Context())
	if err != nil {
		if errors.Is(err, capture.ErrCaptureUnavailable) {
			writeJSON(w, http.StatusConflict, captureResponse{Available: false, State: string(state)})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, captureResponse{
		Available:  true,
		State:      string(state),
		Transcript: r.captureCtl.Transcript(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
