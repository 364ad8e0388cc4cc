package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/nisalabs/nisa-core/internal/config"
)

// execCompleter shells out to a local command: request JSON on stdin, a
// single reply JSON object on stdout. Useful for wiring local models without
// an HTTP bridge.
type execCompleter struct {
	cmd          []string
	systemPrompt string
	mu           sync.Mutex
}

type execRequest struct {
	Message string `json:"message"`
	System  string `json:"system,omitempty"`
}

type execReply struct {
	Reply string `json:"reply"`
}

func NewExecCompleter(cfg config.CompletionConfig) (Completer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse completion command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("completion command empty")
	}
	return &execCompleter{cmd: args, systemPrompt: cfg.SystemPrompt}, nil
}

func (g *execCompleter) Complete(ctx context.Context, message string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	input, err := json.Marshal(execRequest{Message: message, System: g.systemPrompt})
	if err != nil {
		return "", err
	}

	base := g.cmd[0]
	args := append([]string{}, g.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("completion exec command failed: %w", err)
	}

	var reply execReply
	if err := json.Unmarshal(bytes.TrimSpace(output), &reply); err != nil {
		return "", fmt.Errorf("decode completion exec output: %w", err)
	}
	if strings.TrimSpace(reply.Reply) == "" {
		return "", fmt.Errorf("completion exec command returned empty reply")
	}
	return reply.Reply, nil
}
