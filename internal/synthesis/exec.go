package synthesis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/nisalabs/nisa-core/internal/config"
)

// execSynthesizer shells out to a local command: request JSON on stdin, a
// single JSON object with base64 audio on stdout.
type execSynthesizer struct {
	cmd     []string
	voiceID string
	mu      sync.Mutex
}

type execSynthRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type execSynthResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

func NewExecSynthesizer(cfg config.SynthesisConfig) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse synthesis command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synthesis command empty")
	}
	return &execSynthesizer{cmd: args, voiceID: cfg.VoiceID}, nil
}

func (e *execSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	input, err := json.Marshal(execSynthRequest{Text: insertPauses(text), Voice: e.voiceID})
	if err != nil {
		return nil, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("synthesis exec command failed: %w", err)
	}

	var resp execSynthResponse
	if err := json.Unmarshal(bytes.TrimSpace(output), &resp); err != nil {
		return nil, fmt.Errorf("decode synthesis exec output: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("decode synthesis exec audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis exec command returned no audio")
	}
	return audio, nil
}
