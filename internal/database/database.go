package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mandatoja/internal/migrations"
	"mandatoja/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) SaveInstance(ctx context.Context, instance *models.ProviderInstance) error {
	encryptedAPIKey, err := d.encryptor.EncryptIfEnabled(instance.APIKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt API key: %w", err)
	}

	query := `
		INSERT INTO provider_instances (name, base_url, api_key, session_name, active)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := d.db.ExecContext(ctx, query,
		instance.Name,
		instance.BaseURL,
		encryptedAPIKey,
		instance.SessionName,
		instance.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get instance id: %w", err)
	}
	instance.ID = id
	return nil
}

// GetInstance returns nil without error when no instance exists for the id.
func (d *Database) GetInstance(ctx context.Context, id int64) (*models.ProviderInstance, error) {
	query := `
		SELECT id, name, base_url, api_key, session_name, active, created_at, updated_at
		FROM provider_instances
		WHERE id = ?
	`

	var encryptedAPIKey string
	instance := &models.ProviderInstance{}

	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&instance.ID,
		&instance.Name,
		&instance.BaseURL,
		&encryptedAPIKey,
		&instance.SessionName,
		&instance.Active,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	instance.APIKey, err = d.encryptor.DecryptIfEnabled(encryptedAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt API key: %w", err)
	}

	return instance, nil
}

func (d *Database) SetInstanceActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE provider_instances SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, query, active, id); err != nil {
		return fmt.Errorf("failed to update instance: %w", err)
	}
	return nil
}

func (d *Database) CreateScheduledMessage(ctx context.Context, msg *models.ScheduledMessage) error {
	encryptedPhone, err := d.encryptor.EncryptIfEnabled(msg.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to encrypt phone number: %w", err)
	}

	query := `
		INSERT INTO scheduled_messages (instance_id, phone_number, response_text, scheduled_send_time)
		VALUES (?, ?, ?, ?)
	`

	result, err := d.db.ExecContext(ctx, query,
		msg.InstanceID,
		encryptedPhone,
		msg.ResponseText,
		msg.ScheduledSendTime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduled message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get message id: %w", err)
	}
	msg.ID = id
	return nil
}

// GetScheduledMessagesForSending returns unsent messages whose scheduled send
// time has elapsed, in scheduled order.
func (d *Database) GetScheduledMessagesForSending(ctx context.Context) ([]models.ScheduledMessage, error) {
	query := `
		SELECT id, instance_id, phone_number, response_text, scheduled_send_time, sent, sent_at, created_at
		FROM scheduled_messages
		WHERE sent = 0 AND scheduled_send_time <= ?
		ORDER BY scheduled_send_time ASC
	`

	rows, err := d.db.QueryContext(ctx, query, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query due messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ScheduledMessage
	for rows.Next() {
		var msg models.ScheduledMessage
		var encryptedPhone string
		if err := rows.Scan(
			&msg.ID,
			&msg.InstanceID,
			&encryptedPhone,
			&msg.ResponseText,
			&msg.ScheduledSendTime,
			&msg.Sent,
			&msg.SentAt,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		msg.PhoneNumber, err = d.encryptor.DecryptIfEnabled(encryptedPhone)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt phone number: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func (d *Database) GetScheduledMessage(ctx context.Context, id int64) (*models.ScheduledMessage, error) {
	query := `
		SELECT id, instance_id, phone_number, response_text, scheduled_send_time, sent, sent_at, created_at
		FROM scheduled_messages
		WHERE id = ?
	`

	var msg models.ScheduledMessage
	var encryptedPhone string
	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.InstanceID,
		&encryptedPhone,
		&msg.ResponseText,
		&msg.ScheduledSendTime,
		&msg.Sent,
		&msg.SentAt,
		&msg.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled message: %w", err)
	}

	msg.PhoneNumber, err = d.encryptor.DecryptIfEnabled(encryptedPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt phone number: %w", err)
	}
	return &msg, nil
}

// MarkMessageAsSent sets the sent flag. The transition is monotonic: a row
// already marked sent is left untouched, so calling twice is safe.
func (d *Database) MarkMessageAsSent(ctx context.Context, id int64) error {
	query := `UPDATE scheduled_messages SET sent = 1, sent_at = ? WHERE id = ? AND sent = 0`
	if _, err := d.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to mark message as sent: %w", err)
	}
	return nil
}

func (d *Database) CheckMessageHash(ctx context.Context, hash string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM message_hashes WHERE hash = ?)`
	var exists bool
	if err := d.db.QueryRowContext(ctx, query, hash).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check message hash: %w", err)
	}
	return exists, nil
}

// SaveMessageHash reserves a content hash via insert-if-absent. The unique
// index on hash is what arbitrates between concurrent reservers; losing the
// race surfaces as ErrHashAlreadyReserved.
func (d *Database) SaveMessageHash(ctx context.Context, messageID int64, hash string) error {
	query := `INSERT OR IGNORE INTO message_hashes (message_id, hash) VALUES (?, ?)`
	result, err := d.db.ExecContext(ctx, query, messageID, hash)
	if err != nil {
		return fmt.Errorf("failed to save message hash: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrHashAlreadyReserved
	}
	return nil
}

func (d *Database) RemoveMessageHash(ctx context.Context, messageID int64) error {
	query := `DELETE FROM message_hashes WHERE message_id = ?`
	if _, err := d.db.ExecContext(ctx, query, messageID); err != nil {
		return fmt.Errorf("failed to remove message hash: %w", err)
	}
	return nil
}
