package capture

import (
	"context"
	"fmt"

	"github.com/nisalabs/nisa-core/internal/config"
)

// Result captures recognizer output for one stretch of audio.
type Result struct {
	Text       string
	Confidence float64
}

// Recognizer abstracts speech-to-text backends.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, channels int, final bool) (Result, error)
}

// NewRecognizer builds the recognizer selected by the capture configuration.
func NewRecognizer(cfg config.CaptureConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockRecognizer(), nil
	case "exec":
		return NewExecRecognizer(cfg)
	default:
		return nil, fmt.Errorf("unsupported capture mode %q", cfg.Mode)
	}
}
