package gksync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wurt83ow/poskeeper-client/pkg/errs"
	"github.com/wurt83ow/poskeeper-client/pkg/models"
)

// Store is the typed remote adapter for one entity table. It doubles as
// the queue replayer for that table.
type Store[T models.Entity] struct {
	client *Client
}

func NewStore[T models.Entity](client *Client) *Store[T] {
	return &Store[T]{client: client}
}

func tableOf[T models.Entity]() string {
	var zero T
	return zero.Table()
}

func (s *Store[T]) Create(ctx context.Context, entity T) (T, error) {
	var out T
	resp, err := s.client.do(ctx, http.MethodPost, "/api/"+entity.Table(), nil, entity)
	if err != nil {
		return out, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		defer resp.Body.Close()
		return out, statusError(resp, "create "+entity.Table())
	}
	if err := decode(resp, &out); err != nil {
		return out, errs.Transient("create "+entity.Table(), err)
	}
	return out, nil
}

// Update issues a PUT. The server treats PUT as upsert, which is what
// makes queue replay of client-generated ids idempotent.
func (s *Store[T]) Update(ctx context.Context, entity T) (T, error) {
	var out T
	resp, err := s.client.do(ctx, http.MethodPut, "/api/"+entity.Table()+"/"+entity.EntityID(), nil, entity)
	if err != nil {
		return out, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		defer resp.Body.Close()
		return out, statusError(resp, "update "+entity.Table())
	}
	if err := decode(resp, &out); err != nil {
		return out, errs.Transient("update "+entity.Table(), err)
	}
	return out, nil
}

func (s *Store[T]) Delete(ctx context.Context, id, tenantID string) (bool, error) {
	query := url.Values{"tenant_id": {tenantID}}
	resp, err := s.client.do(ctx, http.MethodDelete, "/api/"+tableOf[T]()+"/"+id, query, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return false, statusError(resp, "delete "+tableOf[T]())
	}
	return true, nil
}

func (s *Store[T]) GetByID(ctx context.Context, id, tenantID string) (T, bool, error) {
	var out T
	query := url.Values{"tenant_id": {tenantID}}
	resp, err := s.client.do(ctx, http.MethodGet, "/api/"+tableOf[T]()+"/"+id, query, nil)
	if err != nil {
		return out, false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return out, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return out, false, statusError(resp, "get "+tableOf[T]())
	}
	if err := decode(resp, &out); err != nil {
		return out, false, errs.Transient("get "+tableOf[T](), err)
	}
	return out, true, nil
}

func (s *Store[T]) List(ctx context.Context, tenantID string) ([]T, error) {
	query := url.Values{"tenant_id": {tenantID}}
	resp, err := s.client.do(ctx, http.MethodGet, "/api/"+tableOf[T](), query, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp, "list "+tableOf[T]())
	}
	var out []T
	if err := decode(resp, &out); err != nil {
		return nil, errs.Transient("list "+tableOf[T](), err)
	}
	return out, nil
}

// Replay re-applies a queued offline mutation. Inserts and updates both
// go through PUT so a record that already reached the server, possibly
// out of order, converges instead of erroring.
func (s *Store[T]) Replay(ctx context.Context, op models.SyncOperation) error {
	switch op.Operation {
	case models.OpInsert, models.OpUpdate:
		var entity T
		if err := json.Unmarshal(op.Payload, &entity); err != nil {
			return fmt.Errorf("failed to unmarshal queued %s payload: %w", op.TableName, err)
		}
		_, err := s.Update(ctx, entity)
		return err
	case models.OpDelete:
		_, err := s.Delete(ctx, op.EntryID, op.TenantID)
		if errors.Is(err, errs.ErrNotFound) {
			// Already gone remotely; the delete converged.
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown sync operation type %q", op.Operation)
	}
}
