package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultExpoPushURL is the production Expo push API base URL.
const DefaultExpoPushURL = "https://exp.host/--/api/v2"

// Push ticket and receipt statuses.
const (
	PushStatusOK    = "ok"
	PushStatusError = "error"
)

// PushMessage is one item in a provider send call.
type PushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Sound string            `json:"sound,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushTicketDetails carries the provider's error classification.
type PushTicketDetails struct {
	Error string `json:"error,omitempty"`
}

// PushTicket is the provider's per-item response to a send call, returned
// in submission order.
type PushTicket struct {
	Status  string             `json:"status"`
	ID      string             `json:"id,omitempty"`
	Message string             `json:"message,omitempty"`
	Details *PushTicketDetails `json:"details,omitempty"`
}

// PermanentTokenError reports whether the ticket says the destination token
// is dead for good, as opposed to a transient delivery problem.
func (t PushTicket) PermanentTokenError() bool {
	if t.Status != PushStatusError || t.Details == nil {
		return false
	}
	return t.Details.Error == PushErrorDeviceNotRegistered || t.Details.Error == PushErrorInvalidCredentials
}

// PushReceipt is the provider's delayed per-ticket delivery outcome.
type PushReceipt struct {
	Status  string             `json:"status"`
	Message string             `json:"message,omitempty"`
	Details *PushTicketDetails `json:"details,omitempty"`
}

// PermanentTokenError reports whether the receipt flags a dead token.
func (r PushReceipt) PermanentTokenError() bool {
	if r.Status != PushStatusError || r.Details == nil {
		return false
	}
	return r.Details.Error == PushErrorDeviceNotRegistered || r.Details.Error == PushErrorInvalidCredentials
}

// ExpoPushClient talks to an Expo-compatible push API: batched sends to
// /push/send, best-effort receipt checks via /push/getReceipts.
type ExpoPushClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewExpoPushClient creates a client for the given base URL, falling back
// to the production Expo endpoint when empty.
func NewExpoPushClient(baseURL string) *ExpoPushClient {
	if baseURL == "" {
		baseURL = DefaultExpoPushURL
	}
	return &ExpoPushClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SendBatch submits up to MaxPushBatchSize messages and returns one ticket
// per message, in order.
func (c *ExpoPushClient) SendBatch(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	if len(messages) > MaxPushBatchSize {
		return nil, fmt.Errorf("push batch of %d exceeds provider limit of %d", len(messages), MaxPushBatchSize)
	}

	var response struct {
		Data []PushTicket `json:"data"`
	}
	if err := c.post(ctx, "/push/send", messages, &response); err != nil {
		return nil, err
	}

	if len(response.Data) != len(messages) {
		return nil, fmt.Errorf("push provider returned %d tickets for %d messages", len(response.Data), len(messages))
	}
	return response.Data, nil
}

// CheckReceipts fetches delivery receipts for previously returned ticket
// ids. Missing receipts (not ready yet) are simply absent from the map.
func (c *ExpoPushClient) CheckReceipts(ctx context.Context, ids []string) (map[string]PushReceipt, error) {
	if len(ids) == 0 {
		return map[string]PushReceipt{}, nil
	}

	request := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}

	var response struct {
		Data map[string]PushReceipt `json:"data"`
	}
	if err := c.post(ctx, "/push/getReceipts", request, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func (c *ExpoPushClient) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("push request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push request to %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode push response from %s: %w", path, err)
	}
	return nil
}
