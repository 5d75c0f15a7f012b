package bdkeeper

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wurt83ow/poskeeper-client/pkg/errs"
	"github.com/wurt83ow/poskeeper-client/pkg/models"
	"github.com/wurt83ow/poskeeper-client/pkg/syncqueue"
)

// Store is the typed view over one entity table. The Logged variants
// pair the write with a sync-queue record in a single transaction and
// exist for the offline-fallback path only.
type Store[T models.Entity] struct {
	keeper *Keeper
	queue  *syncqueue.Queue
}

func NewStore[T models.Entity](keeper *Keeper, queue *syncqueue.Queue) *Store[T] {
	return &Store[T]{keeper: keeper, queue: queue}
}

func tableOf[T models.Entity]() string {
	var zero T
	return zero.Table()
}

func (s *Store[T]) Create(ctx context.Context, entity T) (T, error) {
	payload, err := json.Marshal(entity)
	if err != nil {
		return entity, fmt.Errorf("failed to marshal %s: %w", entity.Table(), err)
	}
	err = s.keeper.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.keeper.insertTx(tx, entity.Table(), entity.EntityID(), entity.EntityTenant(), payload, time.Now())
	})
	return entity, err
}

func (s *Store[T]) Update(ctx context.Context, entity T) (T, error) {
	payload, err := json.Marshal(entity)
	if err != nil {
		return entity, fmt.Errorf("failed to marshal %s: %w", entity.Table(), err)
	}
	err = s.keeper.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		affected, err := s.keeper.updateTx(tx, entity.Table(), entity.EntityID(), entity.EntityTenant(), payload)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
	return entity, err
}

func (s *Store[T]) Delete(ctx context.Context, id, tenantID string) (bool, error) {
	var deleted bool
	err := s.keeper.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		affected, err := s.keeper.deleteTx(tx, tableOf[T](), id, tenantID)
		if err != nil {
			return err
		}
		deleted = affected > 0
		return nil
	})
	return deleted, err
}

func (s *Store[T]) GetByID(ctx context.Context, id, tenantID string) (T, bool, error) {
	var out T
	payload, found, err := s.keeper.getByID(ctx, tableOf[T](), id, tenantID)
	if err != nil || !found {
		return out, false, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, false, fmt.Errorf("failed to unmarshal %s record: %w", tableOf[T](), err)
	}
	return out, true, nil
}

func (s *Store[T]) List(ctx context.Context, tenantID string) ([]T, error) {
	payloads, err := s.keeper.list(ctx, tableOf[T](), tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(payloads))
	for _, payload := range payloads {
		var entity T
		if err := json.Unmarshal(payload, &entity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s record: %w", tableOf[T](), err)
		}
		out = append(out, entity)
	}
	return out, nil
}

// Apply upserts a record obtained from the remote store. It refreshes
// the local copy without touching the sync queue.
func (s *Store[T]) Apply(ctx context.Context, entity T) error {
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", entity.Table(), err)
	}
	return s.keeper.apply(ctx, entity.Table(), entity.EntityID(), entity.EntityTenant(), payload, time.Now())
}

// Remove drops a record mirrored from the remote store, without queue
// involvement.
func (s *Store[T]) Remove(ctx context.Context, id, tenantID string) error {
	return s.keeper.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := s.keeper.deleteTx(tx, tableOf[T](), id, tenantID)
		return err
	})
}

// CreateLogged inserts the entity and appends the matching sync
// operation in one transaction. A crash can lose both or neither, never
// the pairing.
func (s *Store[T]) CreateLogged(ctx context.Context, entity T) (T, error) {
	payload, err := json.Marshal(entity)
	if err != nil {
		return entity, fmt.Errorf("failed to marshal %s: %w", entity.Table(), err)
	}
	err = s.keeper.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.keeper.insertTx(tx, entity.Table(), entity.EntityID(), entity.EntityTenant(), payload, time.Now()); err != nil {
			return err
		}
		return s.queue.AppendTx(tx, models.SyncOperation{
			TableName:  entity.Table(),
			EntryID:    entity.EntityID(),
			TenantID:   entity.EntityTenant(),
			Operation:  models.OpInsert,
			Payload:    payload,
			EnqueuedAt: time.Now(),
		})
	})
	return entity, err
}

// UpdateLogged mutates the entity and appends the matching sync
// operation in one transaction.
func (s *Store[T]) UpdateLogged(ctx context.Context, entity T) (T, error) {
	payload, err := json.Marshal(entity)
	if err != nil {
		return entity, fmt.Errorf("failed to marshal %s: %w", entity.Table(), err)
	}
	err = s.keeper.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		affected, err := s.keeper.updateTx(tx, entity.Table(), entity.EntityID(), entity.EntityTenant(), payload)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errs.ErrNotFound
		}
		return s.queue.AppendTx(tx, models.SyncOperation{
			TableName:  entity.Table(),
			EntryID:    entity.EntityID(),
			TenantID:   entity.EntityTenant(),
			Operation:  models.OpUpdate,
			Payload:    payload,
			EnqueuedAt: time.Now(),
		})
	})
	return entity, err
}

// DeleteLogged removes the record and appends the matching sync
// operation in one transaction.
func (s *Store[T]) DeleteLogged(ctx context.Context, id, tenantID string) (bool, error) {
	payload, err := json.Marshal(map[string]string{"id": id, "tenant_id": tenantID})
	if err != nil {
		return false, err
	}
	var deleted bool
	err = s.keeper.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		affected, err := s.keeper.deleteTx(tx, tableOf[T](), id, tenantID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errs.ErrNotFound
		}
		deleted = true
		return s.queue.AppendTx(tx, models.SyncOperation{
			TableName:  tableOf[T](),
			EntryID:    id,
			TenantID:   tenantID,
			Operation:  models.OpDelete,
			Payload:    payload,
			EnqueuedAt: time.Now(),
		})
	})
	return deleted, err
}
