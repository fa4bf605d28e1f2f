package service

import (
	"context"
	"time"

	"mandatoja/internal/models"
	"mandatoja/pkg/whatsapp/types"
)

// Storage is the persistence contract the dispatch worker depends on. The
// hash operations must be atomic at the storage layer (insert-if-absent),
// since the hash table is shared with concurrent external workers.
type Storage interface {
	GetScheduledMessagesForSending(ctx context.Context) ([]models.ScheduledMessage, error)
	GetInstance(ctx context.Context, id int64) (*models.ProviderInstance, error)
	MarkMessageAsSent(ctx context.Context, id int64) error
	CheckMessageHash(ctx context.Context, hash string) (bool, error)
	SaveMessageHash(ctx context.Context, messageID int64, hash string) error
	RemoveMessageHash(ctx context.Context, messageID int64) error
}

// ClientResolver hands out the gateway client owning an instance's session.
type ClientResolver interface {
	ClientFor(instance models.ProviderInstance) types.GatewayClient
}

// Deliverer sends one logical message through a provider client.
type Deliverer interface {
	Deliver(ctx context.Context, sender types.MessageSender, phoneNumber, text string) error
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
