package completion

import (
	"context"
	"fmt"

	"github.com/nisalabs/nisa-core/internal/config"
)

// Completer sends one user message to a language-completion backend and
// returns the full reply text. A call is atomic: request in, full reply or a
// definite error out. No retries; the caller bounds the wait with ctx.
type Completer interface {
	Complete(ctx context.Context, message string) (string, error)
}

// New selects a backend from config.
func New(cfg config.CompletionConfig) (Completer, error) {
	switch cfg.Mode {
	case "openai":
		return NewOpenAICompleter(cfg), nil
	case "exec":
		return NewExecCompleter(cfg)
	case "mock":
		return NewMockCompleter(), nil
	default:
		return nil, fmt.Errorf("unknown completion mode %q", cfg.Mode)
	}
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("completion: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}
