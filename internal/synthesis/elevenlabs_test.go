package synthesis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nisalabs/nisa-core/internal/config"
)

func testConfig(endpoint string) config.SynthesisConfig {
	cfg := config.Default().Synthesis
	cfg.Mode = "elevenlabs"
	cfg.Endpoint = endpoint
	cfg.APIKey = "xi-test"
	return cfg
}

func TestInsertPauses(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello. How are you?", "Hello. ... How are you?"},
		{"Wow! Really? Yes.", "Wow! ... Really? ... Yes."},
		{"No terminal punctuation here", "No terminal punctuation here"},
		{"Trailing period.", "Trailing period."},
	}
	for _, tc := range cases {
		if got := insertPauses(tc.in); got != tc.want {
			t.Fatalf("insertPauses(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSynthesizeSendsVoiceSettings(t *testing.T) {
	var gotPath, gotKey string
	var gotReq ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xff, 0xfb, 0x90, 0x00})
	}))
	t.Cleanup(srv.Close)

	s := NewElevenLabsSynthesizer(testConfig(srv.URL))
	audio, err := s.Synthesize(context.Background(), "Good morning. Sleep well?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(audio) != 4 {
		t.Fatalf("unexpected audio length: %d", len(audio))
	}
	if gotPath != "/v1/text-to-speech/EXAVITQu4vr4xnSDxMaL" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotKey != "xi-test" {
		t.Fatalf("unexpected api key header: %q", gotKey)
	}
	if !strings.Contains(gotReq.Text, ". ... ") {
		t.Fatalf("expected pause tokens in request text, got %q", gotReq.Text)
	}
	if gotReq.VoiceSettings.Stability != 0.55 || gotReq.VoiceSettings.SimilarityBoost != 0.8 || gotReq.VoiceSettings.SpeakingRate != 0.95 {
		t.Fatalf("unexpected voice settings: %+v", gotReq.VoiceSettings)
	}
}

func TestSynthesizeNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"voice not found"}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	s := NewElevenLabsSynthesizer(testConfig(srv.URL))
	if _, err := s.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestSynthesizeEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	s := NewElevenLabsSynthesizer(testConfig(srv.URL))
	if _, err := s.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty audio body")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default().Synthesis
	if _, err := New(cfg); err != nil {
		t.Fatalf("mock backend: %v", err)
	}
	cfg.Mode = "nope"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
