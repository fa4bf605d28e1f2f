package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mandatoja/pkg/whatsapp/types"
)

const defaultTimeout = 30 * time.Second

// Client talks to one named session of a WAHA-compatible WhatsApp HTTP
// gateway. All calls are plain request/response; retries and failure policy
// belong to the caller.
type Client struct {
	baseURL     string
	apiKey      string
	sessionName string
	client      *http.Client
}

func NewClient(config types.ClientConfig) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:     config.BaseURL,
		apiKey:      config.APIKey,
		sessionName: config.SessionName,
		client:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) SessionName() string {
	return c.sessionName
}

func (c *Client) SendText(ctx context.Context, chatID, text string) (*types.SendMessageResponse, error) {
	payload := types.SendTextRequest{
		ChatID:  chatID,
		Text:    text,
		Session: c.sessionName,
	}

	var result types.SendMessageResponse
	if err := c.postJSON(ctx, types.APIBase+types.EndpointSendText, payload, &result); err != nil {
		return nil, fmt.Errorf("failed to send text: %w", err)
	}
	return &result, nil
}

func (c *Client) SendSeen(ctx context.Context, chatID string) error {
	payload := types.ChatRequest{ChatID: chatID, Session: c.sessionName}
	if err := c.postJSON(ctx, types.APIBase+types.EndpointSendSeen, payload, nil); err != nil {
		return fmt.Errorf("failed to mark seen: %w", err)
	}
	return nil
}

func (c *Client) StartTyping(ctx context.Context, chatID string) error {
	payload := types.ChatRequest{ChatID: chatID, Session: c.sessionName}
	if err := c.postJSON(ctx, types.APIBase+types.EndpointStartTyping, payload, nil); err != nil {
		return fmt.Errorf("failed to start typing: %w", err)
	}
	return nil
}

func (c *Client) StopTyping(ctx context.Context, chatID string) error {
	payload := types.ChatRequest{ChatID: chatID, Session: c.sessionName}
	if err := c.postJSON(ctx, types.APIBase+types.EndpointStopTyping, payload, nil); err != nil {
		return fmt.Errorf("failed to stop typing: %w", err)
	}
	return nil
}

func (c *Client) ListSessions(ctx context.Context) ([]types.Session, error) {
	var sessions []types.Session
	if err := c.getJSON(ctx, types.APIBase+types.EndpointSessions, &sessions); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// GetSessionStatus resolves this client's session in the gateway's session
// listing. A session absent from the listing is reported as STOPPED.
func (c *Client) GetSessionStatus(ctx context.Context) (types.SessionStatus, error) {
	sessions, err := c.ListSessions(ctx)
	if err != nil {
		return "", err
	}
	for _, session := range sessions {
		if session.Name == c.sessionName {
			return session.Status, nil
		}
	}
	return types.SessionStatusStopped, nil
}

func (c *Client) StartSession(ctx context.Context) error {
	if err := c.sessionAction(ctx, types.SessionActionStart); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}

func (c *Client) StopSession(ctx context.Context) error {
	if err := c.sessionAction(ctx, types.SessionActionStop); err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	return nil
}

func (c *Client) LogoutSession(ctx context.Context) error {
	if err := c.sessionAction(ctx, types.SessionActionLogout); err != nil {
		return fmt.Errorf("failed to logout session: %w", err)
	}
	return nil
}

// GetQR retrieves the current QR payload for the session. The gateway only
// produces one while the session is in SCAN_QR_CODE.
func (c *Client) GetQR(ctx context.Context) (*types.QRCode, error) {
	var qr types.QRCode
	path := fmt.Sprintf("%s/%s/auth/qr?format=raw", types.APIBase, c.sessionName)
	if err := c.getJSON(ctx, path, &qr); err != nil {
		return nil, fmt.Errorf("failed to get QR code: %w", err)
	}
	return &qr, nil
}

func (c *Client) sessionAction(ctx context.Context, action string) error {
	path := fmt.Sprintf("%s%s/%s%s", types.APIBase, types.EndpointSessions, c.sessionName, action)
	return c.postJSON(ctx, path, nil, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr types.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
