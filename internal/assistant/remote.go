package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/tiktoken-go/tokenizer"
)

// ErrNoCredential is returned when no API key is configured.
var ErrNoCredential = errors.New("remote responder: no api key configured")

// ErrEmptyReply is returned when the upstream answered without content.
var ErrEmptyReply = errors.New("remote responder: empty reply")

// Responder produces a reply from an external model.
type Responder interface {
	Respond(ctx context.Context, prompt, system string) (string, error)
}

// RemoteSettings configures an OpenAIResponder.
type RemoteSettings struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Model   string
	// MaxPromptTokens caps the user prompt; <= 0 disables the cap.
	MaxPromptTokens int
}

// OpenAIResponder calls an OpenAI-compatible /chat/completions endpoint.
// Settings can be swapped at runtime with Update.
type OpenAIResponder struct {
	client   *http.Client
	settings atomic.Pointer[RemoteSettings]
}

// NewOpenAIResponder creates a responder. A nil client selects a default client;
// per-call deadlines come from the caller's context.
func NewOpenAIResponder(settings RemoteSettings, client *http.Client) *OpenAIResponder {
	if client == nil {
		client = &http.Client{}
	}
	r := &OpenAIResponder{client: client}
	r.Update(settings)
	return r
}

// Update replaces the settings used by subsequent calls.
func (r *OpenAIResponder) Update(settings RemoteSettings) {
	s := settings
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	s.APIKey = strings.TrimSpace(s.APIKey)
	r.settings.Store(&s)
}

// Settings returns a copy of the current settings.
func (r *OpenAIResponder) Settings() RemoteSettings {
	return *r.settings.Load()
}

// Respond sends prompt with an optional system instruction and returns the
// first choice's message content, trimmed.
func (r *OpenAIResponder) Respond(ctx context.Context, prompt, system string) (string, error) {
	s := r.settings.Load()
	if !s.Enabled {
		return "", errors.New("remote responder: disabled")
	}
	if s.APIKey == "" {
		return "", ErrNoCredential
	}

	payload, err := buildChatPayload(s.Model, system, TruncateTokens(prompt, s.MaxPromptTokens))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("remote responder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote responder: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("remote responder: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("remote responder: status %d: %s", resp.StatusCode, RedactText(truncateRunes(string(body), 200)))
	}

	content := strings.TrimSpace(gjson.GetBytes(body, "choices.0.message.content").String())
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}

func buildChatPayload(model, system, prompt string) ([]byte, error) {
	payload := []byte(`{"messages":[]}`)
	var err error
	if payload, err = sjson.SetBytes(payload, "model", model); err != nil {
		return nil, err
	}
	idx := 0
	if strings.TrimSpace(system) != "" {
		if payload, err = sjson.SetBytes(payload, "messages.0.role", "system"); err != nil {
			return nil, err
		}
		if payload, err = sjson.SetBytes(payload, "messages.0.content", system); err != nil {
			return nil, err
		}
		idx = 1
	}
	if payload, err = sjson.SetBytes(payload, fmt.Sprintf("messages.%d.role", idx), "user"); err != nil {
		return nil, err
	}
	if payload, err = sjson.SetBytes(payload, fmt.Sprintf("messages.%d.content", idx), prompt); err != nil {
		return nil, err
	}
	return sjson.SetBytes(payload, "temperature", 0.3)
}

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

// TruncateTokens cuts text to at most maxTokens o200k tokens. When the
// tokenizer is unavailable the text is returned unchanged.
func TruncateTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.O200kBase)
	})
	if codecErr != nil {
		return text
	}
	ids, _, err := codec.Encode(text)
	if err != nil || len(ids) <= maxTokens {
		return text
	}
	cut, err := codec.Decode(ids[:maxTokens])
	if err != nil {
		return text
	}
	return cut
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
