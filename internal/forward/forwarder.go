// Package forward posts legacy summaries to an external webhook.
package forward

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

// Tool identifies this service in forwarded payloads.
const Tool = "AI Summarizer Chrome Extension"

// ErrNotConfigured is returned by Send when no target URL is set.
var ErrNotConfigured = errors.New("forward: no target url configured")

// Summary is the forwarded document.
type Summary struct {
	PageURL string
	Content string
	Time    time.Time
}

// Forwarder POSTs summaries as JSON to a fixed URL.
type Forwarder struct {
	url    string
	client *http.Client
}

// New returns a forwarder for url. timeout bounds each Send; zero means 10s.
func New(url string, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Forwarder{url: strings.TrimSpace(url), client: &http.Client{Timeout: timeout}}
}

// Enabled reports whether a target URL is configured.
func (f *Forwarder) Enabled() bool {
	return f != nil && f.url != ""
}

// Send posts s. Only a failed delivery is an error; the webhook's status is
// logged, since RequestBin-style targets answer with arbitrary codes.
func (f *Forwarder) Send(ctx context.Context, s Summary) error {
	if !f.Enabled() {
		return ErrNotConfigured
	}
	payload, err := buildPayload(s)
	if err != nil {
		return fmt.Errorf("forward: build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("forward: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("forward: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithField("status", resp.StatusCode).Warn("forward: webhook answered with non-2xx status")
	}
	return nil
}

func buildPayload(s Summary) ([]byte, error) {
	at := s.Time
	if at.IsZero() {
		at = time.Now()
	}
	payload := []byte(`{}`)
	var err error
	for _, kv := range []struct {
		path  string
		value string
	}{
		{"tool", Tool},
		{"pageUrl", s.PageURL},
		{"summary", s.Content},
		{"time", at.UTC().Format(time.RFC3339Nano)},
	} {
		if payload, err = sjson.SetBytes(payload, kv.path, kv.value); err != nil {
			return nil, err
		}
	}
	return payload, nil
}
