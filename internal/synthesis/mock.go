package synthesis

import (
	"context"
	"time"
)

type mockSynthesizer struct{}

func NewMockSynthesizer() Synthesizer { return &mockSynthesizer{} }

func (m *mockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}
	// A recognisable non-empty payload; the playback surface treats it as opaque.
	return []byte("mock-audio:" + text), nil
}
