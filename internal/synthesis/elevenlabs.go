package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/nisalabs/nisa-core/internal/config"
)

// sentenceEnd matches sentence-terminal punctuation followed by whitespace.
var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// insertPauses adds an explicit pause token after each sentence so the
// synthesized voice breathes between sentences without truncating content.
func insertPauses(text string) string {
	return sentenceEnd.ReplaceAllString(text, "$1 ... ")
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	SpeakingRate    float64 `json:"speaking_rate"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type elevenLabsSynthesizer struct {
	endpoint   string
	apiKey     string
	voiceID    string
	settings   voiceSettings
	httpClient *http.Client
}

// NewElevenLabsSynthesizer builds a text-to-speech client for the ElevenLabs
// REST API. Voice-shaping parameters are fixed per client.
func NewElevenLabsSynthesizer(cfg config.SynthesisConfig) Synthesizer {
	return &elevenLabsSynthesizer{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		voiceID:  cfg.VoiceID,
		settings: voiceSettings{
			Stability:       cfg.Stability,
			SimilarityBoost: cfg.SimilarityBoost,
			SpeakingRate:    cfg.SpeakingRate,
		},
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
	}
}

func (s *elevenLabsSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(ttsRequest{
		Text:          insertPauses(text),
		VoiceSettings: s.settings,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis: marshal request: %w", err)
	}

	url := s.endpoint + "/v1/text-to-speech/" + s.voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("synthesis: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("synthesis: unexpected status %d from %s: %s", res.StatusCode, url, string(buf))
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("synthesis: read audio body: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis: empty audio response")
	}
	return audio, nil
}
