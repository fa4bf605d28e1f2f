package types

import "time"

// SessionStatus represents the current state of a gateway session
type SessionStatus string

const (
	SessionStatusStopped    SessionStatus = "STOPPED"
	SessionStatusStarting   SessionStatus = "STARTING"
	SessionStatusScanQRCode SessionStatus = "SCAN_QR_CODE"
	SessionStatusWorking    SessionStatus = "WORKING"
	SessionStatusFailed     SessionStatus = "FAILED"
)

// IsAuthenticated reports whether the session has completed QR authentication.
func (s SessionStatus) IsAuthenticated() bool {
	return s == SessionStatusWorking
}

// IsStable reports whether the status is a resting state rather than a
// transient one expected to resolve via polling.
func (s SessionStatus) IsStable() bool {
	return s == SessionStatusStopped || s == SessionStatusWorking || s == SessionStatusFailed
}

// Session represents a gateway session as reported by the session listing
type Session struct {
	Name   string        `json:"name"`
	Status SessionStatus `json:"status"`
}

// SendTextRequest represents the request for sending a text message
type SendTextRequest struct {
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
	Session string `json:"session"`
}

// ChatRequest represents the request for chat-scoped side effects
// (mark seen, start/stop typing)
type ChatRequest struct {
	ChatID  string `json:"chatId"`
	Session string `json:"session"`
}

// SendMessageResponse represents the response from send message operations
type SendMessageResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// QRCode represents the raw QR payload the operator scans to authenticate
type QRCode struct {
	Value string `json:"value"`
}

// ErrorResponse represents error responses from the gateway API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ClientConfig represents the configuration for a gateway client
type ClientConfig struct {
	BaseURL     string        `json:"base_url"`
	APIKey      string        `json:"api_key"`
	SessionName string        `json:"session_name"`
	Timeout     time.Duration `json:"timeout"`
}
