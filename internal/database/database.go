package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"zapdispatch/internal/migrations"
	"zapdispatch/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath, encryptionSecret string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
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

	encryptor, err := NewEncryptor(encryptionSecret)
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

// CreateBatch persists a batch header. Storage deployments predating the
// optional source-list columns reject the full insert with a schema-shape
// error; that triggers exactly one retry with the mandatory column subset.
func (d *Database) CreateBatch(ctx context.Context, batch *models.Batch) (int64, error) {
	query := `
		INSERT INTO batches (instance, source_kind, source_list_id, source_list_name, status)
		VALUES (?, ?, ?, ?, ?)
	`

	var result sql.Result
	err := retryWrite(ctx, "create batch", func() error {
		var execErr error
		result, execErr = d.db.ExecContext(ctx, query,
			batch.Instance, batch.SourceKind, batch.SourceListID, batch.SourceListName, batch.Status)
		return execErr
	})
	if err != nil {
		if !isSchemaShapeError(err) {
			return 0, fmt.Errorf("failed to create batch: %w", err)
		}

		fallback := `INSERT INTO batches (instance, source_kind, status) VALUES (?, ?, ?)`
		err = retryWrite(ctx, "create batch (minimal columns)", func() error {
			var execErr error
			result, execErr = d.db.ExecContext(ctx, fallback, batch.Instance, batch.SourceKind, batch.Status)
			return execErr
		})
		if err != nil {
			return 0, fmt.Errorf("failed to create batch with minimal columns: %w", err)
		}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get batch id: %w", err)
	}

	return id, nil
}

func (d *Database) GetBatch(ctx context.Context, id int64) (*models.Batch, error) {
	query := `
		SELECT id, instance, source_kind, source_list_id, source_list_name, status,
		       created_at, updated_at
		FROM batches
		WHERE id = ?
	`

	batch := &models.Batch{}
	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID,
		&batch.Instance,
		&batch.SourceKind,
		&batch.SourceListID,
		&batch.SourceListName,
		&batch.Status,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	return batch, nil
}

func (d *Database) UpdateBatchStatus(ctx context.Context, id int64, status models.BatchStatus) error {
	query := `UPDATE batches SET status = ? WHERE id = ?`

	var result sql.Result
	err := retryWrite(ctx, "update batch status", func() error {
		var execErr error
		result, execErr = d.db.ExecContext(ctx, query, status, id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to update batch status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no batch found with ID: %d", id)
	}

	return nil
}

// CleanupOldBatches removes batches older than the retention period along
// with their messages.
func (d *Database) CleanupOldBatches(retentionDays int) error {
	messagesQuery := `
		DELETE FROM messages
		WHERE batch_id IN (
			SELECT id FROM batches
			WHERE created_at < datetime('now', '-' || ? || ' days')
		)
	`
	if err := retryWrite(context.Background(), "cleanup old messages", func() error {
		_, err := d.db.Exec(messagesQuery, retentionDays)
		return err
	}); err != nil {
		return fmt.Errorf("failed to cleanup old messages: %w", err)
	}

	batchesQuery := `
		DELETE FROM batches
		WHERE created_at < datetime('now', '-' || ? || ' days')
	`
	if err := retryWrite(context.Background(), "cleanup old batches", func() error {
		_, err := d.db.Exec(batchesQuery, retentionDays)
		return err
	}); err != nil {
		return fmt.Errorf("failed to cleanup old batches: %w", err)
	}

	return nil
}

// isSchemaShapeError reports whether the insert failed because the table is
// missing optional columns rather than for an operational reason.
func isSchemaShapeError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no such column") ||
		strings.Contains(errStr, "has no column named") ||
		strings.Contains(errStr, "table batches has no column")
}
