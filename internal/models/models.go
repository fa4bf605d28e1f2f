package models

import (
	"errors"
	"time"
)

// ErrHashAlreadyReserved is returned by the storage layer when a content hash
// was already reserved, by this process or a concurrent one.
var ErrHashAlreadyReserved = errors.New("message hash already reserved")

// ProviderInstance is one configured WhatsApp gateway session. Instances are
// created and edited by the configuration tooling; the dispatch subsystem
// treats them as read-only. An inactive instance suppresses dispatch for its
// messages.
type ProviderInstance struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	BaseURL     string    `db:"base_url"`
	APIKey      string    `db:"api_key"`
	SessionName string    `db:"session_name"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ScheduledMessage is one unit of outbound work, created upstream by the
// response generation pipeline. The sent flag is monotonic: once set it never
// reverts.
type ScheduledMessage struct {
	ID                int64      `db:"id"`
	InstanceID        int64      `db:"instance_id"`
	PhoneNumber       string     `db:"phone_number"`
	ResponseText      string     `db:"response_text"`
	ScheduledSendTime time.Time  `db:"scheduled_send_time"`
	Sent              bool       `db:"sent"`
	SentAt            *time.Time `db:"sent_at"`
	CreatedAt         time.Time  `db:"created_at"`
}

// Due reports whether the message is eligible for dispatch at the given time.
func (m *ScheduledMessage) Due(now time.Time) bool {
	return !m.Sent && !m.ScheduledSendTime.After(now)
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
