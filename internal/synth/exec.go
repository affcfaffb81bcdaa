package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execSynth struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	Text         string  `json:"text"`
	LanguageCode string  `json:"language_code"`
	Voice        string  `json:"voice"`
	SpeakingRate float64 `json:"speaking_rate"`
	Pitch        float64 `json:"pitch"`
}

type execResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Error       string `json:"error,omitempty"`
}

// NewExecSynth wraps a local synthesis command. The command receives one
// JSON request on stdin and must write one JSON response with the
// encoded audio on stdout.
func NewExecSynth(command string) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synthesis command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synthesis command empty")
	}
	return &execSynth{cmd: args}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	payload, err := json.Marshal(execRequest{
		Text:         req.Text,
		LanguageCode: req.Voice.LanguageCode,
		Voice:        req.Voice.VoiceName,
		SpeakingRate: req.Voice.SpeakingRate,
		Pitch:        req.Voice.Pitch,
	})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		status := 0
		if exitErr, ok := err.(*exec.ExitError); ok {
			status = exitErr.ExitCode()
		}
		return nil, &ProviderError{
			Provider: "exec",
			Status:   status,
			Err:      fmt.Errorf("%v: %s", err, bytes.TrimSpace(stderr.Bytes())),
		}
	}

	var resp execResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return nil, &ProviderError{Provider: "exec", Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Error != "" {
		return nil, &ProviderError{Provider: "exec", Err: fmt.Errorf("%s", resp.Error)}
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return nil, &ProviderError{Provider: "exec", Err: fmt.Errorf("decode audio: %w", err)}
	}
	if len(audio) == 0 {
		return nil, &ProviderError{Provider: "exec", Err: fmt.Errorf("command produced no audio")}
	}
	return audio, nil
}
