package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PushClient talks to the push-notification gateway over HTTP. The
// gateway owns vendor specifics (FCM tokens, platforms); we only hand it
// user ids and a message. With skip enabled every send succeeds locally.
type PushClient struct {
	baseURL string
	skip    bool
	http    *http.Client
}

// NewPushClient creates a client for the gateway at baseURL.
func NewPushClient(baseURL string, skip bool) *PushClient {
	return &PushClient{
		baseURL: baseURL,
		skip:    skip,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type pushRequest struct {
	UserIDs []string          `json:"user_ids"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Kind    string            `json:"kind"`
	Data    map[string]string `json:"data,omitempty"`
}

// Send delivers a push message to the given users, best-effort.
func (c *PushClient) Send(ctx context.Context, userIDs []string, title, body, kind string, data map[string]string) error {
	if c.skip || len(userIDs) == 0 {
		return nil
	}
	payload, err := json.Marshal(pushRequest{
		UserIDs: userIDs,
		Title:   title,
		Body:    body,
		Kind:    kind,
		Data:    data,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push gateway: status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// Health checks gateway reachability.
func (c *PushClient) Health(ctx context.Context) error {
	if c.skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push gateway: status %d", resp.StatusCode)
	}
	return nil
}
