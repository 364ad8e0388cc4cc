package synthesis

import (
	"context"
	"fmt"

	"github.com/nisalabs/nisa-core/internal/config"
)

// MIMEType is the media type of synthesized audio.
const MIMEType = "audio/mpeg"

// Synthesizer converts reply text into playable audio bytes. A call is
// atomic: text in, complete audio or a definite error out. No retries; the
// caller bounds the wait with ctx.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// New selects a backend from config.
func New(cfg config.SynthesisConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "elevenlabs":
		return NewElevenLabsSynthesizer(cfg), nil
	case "exec":
		return NewExecSynthesizer(cfg)
	case "mock":
		return NewMockSynthesizer(), nil
	default:
		return nil, fmt.Errorf("unknown synthesis mode %q", cfg.Mode)
	}
}
