// Package syncqueue persists mutations performed while the server was
// unreachable and replays them once connectivity returns.
package syncqueue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wurt83ow/poskeeper-client/pkg/models"
)

// Replayer re-applies one queued operation against the remote store.
// Replay is at-least-once: an insert whose id already exists remotely
// must be treated as an update, not an error.
type Replayer interface {
	Replay(ctx context.Context, op models.SyncOperation) error
}

// Queue is a durable FIFO over the sync_queue table. It shares the
// local database with the entity tables so a write and its queue entry
// can commit in one transaction.
type Queue struct {
	db  *sql.DB
	log *logrus.Logger
}

func New(db *sql.DB, log *logrus.Logger) *Queue {
	return &Queue{db: db, log: log}
}

// AppendTx records op inside an already-open transaction. This is how
// local fallback writes pair the entity mutation with its replay record
// so a crash between the two cannot lose either.
func (q *Queue) AppendTx(tx *sql.Tx, op models.SyncOperation) error {
	_, err := tx.Exec(
		`INSERT INTO sync_queue(table_name, entry_id, tenant_id, operation, payload, enqueued_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		op.TableName, op.EntryID, op.TenantID, op.Operation, string(op.Payload), op.EnqueuedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append sync operation: %w", err)
	}
	return nil
}

// Enqueue records op in its own transaction.
func (q *Queue) Enqueue(ctx context.Context, op models.SyncOperation) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin enqueue transaction: %w", err)
	}
	if err := q.AppendTx(tx, op); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Pending returns every queued operation in enqueue order. Global FIFO
// preserves causal ordering across entities sharing foreign keys, e.g. a
// material syncs before a recipe referencing it.
func (q *Queue) Pending(ctx context.Context) ([]models.SyncOperation, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, table_name, entry_id, tenant_id, operation, payload, enqueued_at
		 FROM sync_queue ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync queue: %w", err)
	}
	defer rows.Close()

	var ops []models.SyncOperation
	for rows.Next() {
		var op models.SyncOperation
		var payload, enqueued string
		if err := rows.Scan(&op.ID, &op.TableName, &op.EntryID, &op.TenantID, &op.Operation, &payload, &enqueued); err != nil {
			return nil, fmt.Errorf("failed to scan sync operation: %w", err)
		}
		op.Payload = []byte(payload)
		if ts, err := time.Parse(time.RFC3339Nano, enqueued); err == nil {
			op.EnqueuedAt = ts
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sync queue rows encountered an error: %w", err)
	}
	return ops, nil
}

// Len returns the number of pending operations.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync queue: %w", err)
	}
	return n, nil
}

func (q *Queue) remove(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove sync operation %d: %w", id, err)
	}
	return nil
}

// Drain replays pending operations in enqueue order using the replayer
// registered for each table. A failed replay blocks the remaining
// operations of the same entity so they are never applied out of order;
// independent entities keep draining.
func (q *Queue) Drain(ctx context.Context, replayers map[string]Replayer) (models.DrainReport, error) {
	var report models.DrainReport

	ops, err := q.Pending(ctx)
	if err != nil {
		return report, err
	}

	blocked := make(map[string]bool)
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		lane := op.TableName + "/" + op.EntryID
		if blocked[lane] {
			report.Failed++
			continue
		}

		replayer, ok := replayers[op.TableName]
		if !ok {
			q.log.WithField("table", op.TableName).Error("no replayer registered for table")
			blocked[lane] = true
			report.Failed++
			continue
		}

		if err := replayer.Replay(ctx, op); err != nil {
			q.log.WithFields(logrus.Fields{
				"table":     op.TableName,
				"entry_id":  op.EntryID,
				"operation": op.Operation,
			}).WithError(err).Warn("replay failed, keeping operation for next drain")
			blocked[lane] = true
			report.Failed++
			continue
		}

		if err := q.remove(ctx, op.ID); err != nil {
			return report, err
		}
		report.Succeeded++
	}

	if report.Succeeded > 0 || report.Failed > 0 {
		q.log.WithFields(logrus.Fields{
			"succeeded": report.Succeeded,
			"failed":    report.Failed,
		}).Info("sync queue drained")
	}
	return report, nil
}
