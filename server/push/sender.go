package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sammcj/go-a2a-core/a2a"
)

// HTTPSender POSTs events as JSON to the configured webhook URL.
type HTTPSender struct {
	httpClient *http.Client
}

// NewHTTPSender creates an HTTPSender. A nil client gets a 10 second timeout.
func NewHTTPSender(client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{httpClient: client}
}

// Send implements Sender. Any non-2xx response is an error.
func (s *HTTPSender) Send(ctx context.Context, cfg a2a.PushNotificationConfig, ev a2a.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal push notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create push notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "go-a2a-push-notifier")
	applyAuth(req, cfg)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push notification failed with status code %d", resp.StatusCode)
	}
	return nil
}

// applyAuth sets the receiver's credentials. Token wins and is sent as a
// bearer token. Otherwise Authentication.Credentials is either
// "Header-Name: value" or a raw credential sent with the first scheme.
func applyAuth(req *http.Request, cfg a2a.PushNotificationConfig) {
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
		return
	}
	auth := cfg.Authentication
	if auth == nil || auth.Credentials == "" {
		return
	}
	if name, value, ok := strings.Cut(auth.Credentials, ":"); ok && !strings.ContainsAny(name, " \t") {
		req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
		return
	}
	scheme := "Bearer"
	if len(auth.Schemes) > 0 && auth.Schemes[0] != "" {
		scheme = auth.Schemes[0]
	}
	req.Header.Set("Authorization", scheme+" "+auth.Credentials)
}
