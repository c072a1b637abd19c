package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"zapdispatch/internal/models"
)

// InsertMessages bulk-inserts message rows and returns the generated ids in
// insertion order.
func (d *Database) InsertMessages(ctx context.Context, rows []models.MessageInsert) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (batch_id, source_list_id, recipient, status, body, scheduled_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		encryptedRecipient, err := d.encryptor.EncryptIfEnabled(row.Recipient)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt recipient: %w", err)
		}

		result, err := stmt.ExecContext(ctx,
			row.BatchID, row.SourceListID, encryptedRecipient,
			models.MessageStatusQueued, row.Body, row.ScheduledAt.UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to insert message: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get message id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message insert: %w", err)
	}

	return ids, nil
}

const messageColumns = `id, batch_id, source_list_id, recipient, status, last_error,
	       body, created_at, scheduled_at, sent_at`

func (d *Database) scanMessage(scan func(dest ...any) error) (*models.Message, error) {
	msg := &models.Message{}
	var encryptedRecipient string

	err := scan(
		&msg.ID,
		&msg.BatchID,
		&msg.SourceListID,
		&encryptedRecipient,
		&msg.Status,
		&msg.LastError,
		&msg.Body,
		&msg.CreatedAt,
		&msg.ScheduledAt,
		&msg.SentAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Recipient, err = d.encryptor.DecryptIfEnabled(encryptedRecipient)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt recipient: %w", err)
	}

	return msg, nil
}

// GetMessagesByIDs loads the given messages ordered by their currently
// assigned scheduled time ascending.
func (d *Database) GetMessagesByIDs(ctx context.Context, ids []int64) ([]*models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	query := fmt.Sprintf(`
		SELECT %s
		FROM messages
		WHERE id IN (%s)
		ORDER BY scheduled_at ASC, id ASC
	`, messageColumns, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := d.scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

// SelectDueMessages selects up to limit non-terminal messages of the batch
// whose scheduled time has passed the cutoff, earliest first.
func (d *Database) SelectDueMessages(ctx context.Context, batchID int64, cutoff time.Time, limit int) ([]*models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM messages
		WHERE batch_id = ?
		  AND status IN (?, ?)
		  AND scheduled_at <= ?
		ORDER BY scheduled_at ASC, id ASC
		LIMIT ?
	`, messageColumns)

	rows, err := d.db.QueryContext(ctx, query,
		batchID, models.MessageStatusQueued, models.MessageStatusSending, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := d.scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due messages: %w", err)
	}

	return messages, nil
}

// ClaimMessage conditionally transitions a message to sending, clearing any
// prior error. The guard only matches non-terminal rows, so a message another
// drain already finished can never be reclaimed. Returns whether this caller
// won the claim.
func (d *Database) ClaimMessage(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE messages
		SET status = ?, last_error = NULL
		WHERE id = ? AND status IN (?, ?)
	`

	var result sql.Result
	err := retryWrite(ctx, "claim message", func() error {
		var execErr error
		result, execErr = d.db.ExecContext(ctx, query,
			models.MessageStatusSending, id,
			models.MessageStatusQueued, models.MessageStatusSending)
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("failed to claim message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows == 1, nil
}

func (d *Database) MarkMessageSent(ctx context.Context, id int64, sentAt time.Time) error {
	query := `
		UPDATE messages
		SET status = ?, last_error = NULL, sent_at = ?
		WHERE id = ?
	`

	var result sql.Result
	err := retryWrite(ctx, "mark message sent", func() error {
		var execErr error
		result, execErr = d.db.ExecContext(ctx, query, models.MessageStatusSent, sentAt.UTC(), id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no message found with ID: %d", id)
	}

	return nil
}

func (d *Database) MarkMessageFailed(ctx context.Context, id int64, lastError string) error {
	query := `
		UPDATE messages
		SET status = ?, last_error = ?
		WHERE id = ?
	`

	var result sql.Result
	err := retryWrite(ctx, "mark message failed", func() error {
		var execErr error
		result, execErr = d.db.ExecContext(ctx, query, models.MessageStatusError, lastError, id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no message found with ID: %d", id)
	}

	return nil
}

func (d *Database) UpdateScheduledAt(ctx context.Context, id int64, scheduledAt time.Time) error {
	query := `UPDATE messages SET scheduled_at = ? WHERE id = ?`

	var result sql.Result
	err := retryWrite(ctx, "update scheduled time", func() error {
		var execErr error
		result, execErr = d.db.ExecContext(ctx, query, scheduledAt.UTC(), id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to update scheduled time: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no message found with ID: %d", id)
	}

	return nil
}

// CountMessagesByStatus returns the per-status message counts for a batch.
func (d *Database) CountMessagesByStatus(ctx context.Context, batchID int64) (map[models.MessageStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM messages
		WHERE batch_id = ?
		GROUP BY status
	`

	rows, err := d.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.MessageStatus]int)
	for rows.Next() {
		var status models.MessageStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counts: %w", err)
	}

	return counts, nil
}

// GetRecentErrors returns the most recently errored messages of a batch for
// diagnostics, newest first.
func (d *Database) GetRecentErrors(ctx context.Context, batchID int64, limit int) ([]*models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM messages
		WHERE batch_id = ? AND last_error IS NOT NULL
		ORDER BY id DESC
		LIMIT ?
	`, messageColumns)

	rows, err := d.db.QueryContext(ctx, query, batchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent errors: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := d.scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan errored message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate errored messages: %w", err)
	}

	return messages, nil
}
