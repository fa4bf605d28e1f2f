package types

import "context"

// MessageSender is the provider surface the delivery engine needs.
type MessageSender interface {
	SendText(ctx context.Context, chatID, text string) (*SendMessageResponse, error)
	SendSeen(ctx context.Context, chatID string) error
	StartTyping(ctx context.Context, chatID string) error
	StopTyping(ctx context.Context, chatID string) error
}

// SessionAPI is the provider surface the session lifecycle controller needs.
type SessionAPI interface {
	ListSessions(ctx context.Context) ([]Session, error)
	GetSessionStatus(ctx context.Context) (SessionStatus, error)
	StartSession(ctx context.Context) error
	StopSession(ctx context.Context) error
	LogoutSession(ctx context.Context) error
	GetQR(ctx context.Context) (*QRCode, error)
	SessionName() string
}

// GatewayClient is the full client surface for one configured session.
type GatewayClient interface {
	MessageSender
	SessionAPI
}
