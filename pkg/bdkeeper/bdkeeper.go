// Package bdkeeper is the on-device store. It owns the SQLite database
// holding every entity table plus the sync queue, so an offline write
// and its replay record always commit together.
package bdkeeper

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type Keeper struct {
	db *sql.DB
}

func NewKeeper(db *sql.DB) *Keeper {
	return &Keeper{db: db}
}

// Open opens the database file and applies pending migrations.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RunMigrations brings the schema up to date using the embedded goose
// migrations.
func RunMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for collaborators sharing the same
// database file, such as the sync queue.
func (k *Keeper) DB() *sql.DB { return k.db }

// WithinTx runs fn inside a transaction: commit on nil, rollback on
// error or panic.
func (k *Keeper) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			if commitErr := tx.Commit(); commitErr != nil {
				err = fmt.Errorf("failed to commit transaction: %w", commitErr)
			}
		}
	}()

	err = fn(ctx, tx)
	return err
}

func (k *Keeper) insertTx(tx *sql.Tx, table, id, tenantID string, payload []byte, createdAt time.Time) error {
	_, err := tx.Exec(
		fmt.Sprintf("INSERT INTO %s(id, tenant_id, payload, created_at) VALUES(?, ?, ?, ?)", table),
		id, tenantID, string(payload), createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func (k *Keeper) updateTx(tx *sql.Tx, table, id, tenantID string, payload []byte) (int64, error) {
	res, err := tx.Exec(
		fmt.Sprintf("UPDATE %s SET payload = ? WHERE id = ? AND tenant_id = ?", table),
		string(payload), id, tenantID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", table, err)
	}
	return res.RowsAffected()
}

func (k *Keeper) deleteTx(tx *sql.Tx, table, id, tenantID string) (int64, error) {
	res, err := tx.Exec(
		fmt.Sprintf("DELETE FROM %s WHERE id = ? AND tenant_id = ?", table),
		id, tenantID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return res.RowsAffected()
}

func (k *Keeper) getByID(ctx context.Context, table, id, tenantID string) ([]byte, bool, error) {
	var payload string
	err := k.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT payload FROM %s WHERE id = ? AND tenant_id = ?", table),
		id, tenantID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return []byte(payload), true, nil
}

func (k *Keeper) list(ctx context.Context, table, tenantID string) ([][]byte, error) {
	rows, err := k.db.QueryContext(ctx,
		fmt.Sprintf("SELECT payload FROM %s WHERE tenant_id = ? ORDER BY created_at ASC, id ASC", table),
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	var payloads [][]byte
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		payloads = append(payloads, []byte(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows encountered an error: %w", table, err)
	}
	return payloads, nil
}

func (k *Keeper) apply(ctx context.Context, table, id, tenantID string, payload []byte, createdAt time.Time) error {
	_, err := k.db.ExecContext(ctx,
		fmt.Sprintf("INSERT OR REPLACE INTO %s(id, tenant_id, payload, created_at) VALUES(?, ?, ?, ?)", table),
		id, tenantID, string(payload), createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to apply %s row: %w", table, err)
	}
	return nil
}
