// Package dualstore implements the remote-first-with-local-fallback
// policy used uniformly for every entity type. One Router is
// instantiated per entity; the control flow lives here exactly once.
package dualstore

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/wurt83ow/poskeeper-client/pkg/appcontext"
	"github.com/wurt83ow/poskeeper-client/pkg/errs"
	"github.com/wurt83ow/poskeeper-client/pkg/models"
	"github.com/wurt83ow/poskeeper-client/pkg/netwatch"
	"github.com/wurt83ow/poskeeper-client/pkg/storage"
)

// Store is the uniform CRUD capability both adapters provide.
type Store[T models.Entity] interface {
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id, tenantID string) (bool, error)
	GetByID(ctx context.Context, id, tenantID string) (T, bool, error)
	List(ctx context.Context, tenantID string) ([]T, error)
}

// LocalStore adds the offline-fallback surface: Logged writes pair the
// mutation with a sync-queue record in one transaction, Apply/Remove
// mirror remote results without queue involvement.
type LocalStore[T models.Entity] interface {
	Store[T]
	Apply(ctx context.Context, entity T) error
	Remove(ctx context.Context, id, tenantID string) error
	CreateLogged(ctx context.Context, entity T) (T, error)
	UpdateLogged(ctx context.Context, entity T) (T, error)
	DeleteLogged(ctx context.Context, id, tenantID string) (bool, error)
}

// Filter narrows List results after they are fetched from whichever
// store served the read.
type Filter[T models.Entity] func(T) bool

// Router decides, per operation, which store serves it and what happens
// on failure. Writes go remote-first with local fallback plus a queued
// replay; reads are remote-preferred with local fallback and never
// enqueue anything.
type Router[T models.Entity] struct {
	remote        Store[T]
	local         LocalStore[T]
	checker       netwatch.Checker
	validate      *validator.Validate
	cache         *storage.Cache[T]
	log           *logrus.Logger
	remoteEnabled bool
	checks        []func(T) error
}

func NewRouter[T models.Entity](remote Store[T], local LocalStore[T], checker netwatch.Checker,
	validate *validator.Validate, log *logrus.Logger, remoteEnabled bool) *Router[T] {
	return &Router[T]{
		remote:        remote,
		local:         local,
		checker:       checker,
		validate:      validate,
		cache:         storage.NewCache[T](),
		log:           log,
		remoteEnabled: remoteEnabled,
	}
}

// WithCheck registers an entity-level rule evaluated before either store
// is attempted, on top of the struct tags.
func (r *Router[T]) WithCheck(fn func(T) error) *Router[T] {
	r.checks = append(r.checks, fn)
	return r
}

// Subscribe registers a callback for cache change events.
func (r *Router[T]) Subscribe(fn func(storage.Event[T])) {
	r.cache.Subscribe(fn)
}

// Cached returns the cached copy of a record, if any.
func (r *Router[T]) Cached(id string) (T, bool) {
	return r.cache.Get(id)
}

func (r *Router[T]) remoteAvailable(ctx context.Context) bool {
	return r.remoteEnabled && r.checker.IsOnline(ctx)
}

// authorize rejects the operation when the session tenant is missing or
// does not own the targeted record. Mismatches are fatal: retrying a
// logically unauthorized operation on the other store cannot fix it.
func (r *Router[T]) authorize(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return errs.Validation("missing tenant id")
	}
	sessionTenant, _ := appcontext.Session(ctx)
	if sessionTenant == "" {
		return errs.Authorization("no tenant in session")
	}
	if sessionTenant != tenantID && !appcontext.IsAdmin(ctx) {
		return errs.Authorization("record tenant does not match session tenant")
	}
	return nil
}

func (r *Router[T]) check(ctx context.Context, entity T) error {
	if entity.EntityID() == "" {
		return errs.Validation("missing record id")
	}
	if err := r.validate.StructCtx(ctx, entity); err != nil {
		return errs.ValidationWrap("invalid "+entity.Table()+" record", err)
	}
	for _, fn := range r.checks {
		if err := fn(entity); err != nil {
			return err
		}
	}
	return nil
}

// Create persists a new record. Exactly one of two outcomes happens: the
// write lands remotely with no queue entry, or it lands locally together
// with one queued insert.
func (r *Router[T]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := r.authorize(ctx, entity.EntityTenant()); err != nil {
		return zero, err
	}
	if err := r.check(ctx, entity); err != nil {
		return zero, err
	}

	if r.remoteAvailable(ctx) {
		res, err := r.remote.Create(ctx, entity)
		if err == nil {
			r.mirror(ctx, res)
			r.cache.Put(res)
			return res, nil
		}
		if errs.IsFatal(err) {
			return zero, err
		}
		r.log.WithField("table", entity.Table()).WithError(err).
			Warn("remote create failed, will sync later")
	}

	res, err := r.local.CreateLogged(ctx, entity)
	if err != nil {
		return zero, errs.Persistence("create "+entity.Table(), err)
	}
	r.cache.Put(res)
	return res, nil
}

// Update mutates an existing record under the same policy as Create.
func (r *Router[T]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := r.authorize(ctx, entity.EntityTenant()); err != nil {
		return zero, err
	}
	if err := r.check(ctx, entity); err != nil {
		return zero, err
	}

	if r.remoteAvailable(ctx) {
		res, err := r.remote.Update(ctx, entity)
		if err == nil {
			r.mirror(ctx, res)
			r.cache.Put(res)
			return res, nil
		}
		if errs.IsFatal(err) {
			return zero, err
		}
		r.log.WithField("table", entity.Table()).WithError(err).
			Warn("remote update failed, will sync later")
	}

	res, err := r.local.UpdateLogged(ctx, entity)
	if err != nil {
		return zero, errs.Persistence("update "+entity.Table(), err)
	}
	r.cache.Put(res)
	return res, nil
}

// Delete removes a record. tenantID must match the session tenant.
func (r *Router[T]) Delete(ctx context.Context, id, tenantID string) (bool, error) {
	if err := r.authorize(ctx, tenantID); err != nil {
		return false, err
	}
	if id == "" {
		return false, errs.Validation("missing record id")
	}

	if r.remoteAvailable(ctx) {
		deleted, err := r.remote.Delete(ctx, id, tenantID)
		if err == nil {
			if rerr := r.local.Remove(ctx, id, tenantID); rerr != nil {
				r.log.WithError(rerr).Warn("failed to drop local copy after remote delete")
			}
			r.cache.Remove(id)
			return deleted, nil
		}
		if errs.IsFatal(err) {
			return false, err
		}
		r.log.WithError(err).Warn("remote delete failed, will sync later")
	}

	deleted, err := r.local.DeleteLogged(ctx, id, tenantID)
	if err != nil {
		return false, errs.Persistence("delete", err)
	}
	r.cache.Remove(id)
	return deleted, nil
}

// GetByID reads remote-preferred with local fallback. Reads only choose
// a data source; they never enqueue sync operations.
func (r *Router[T]) GetByID(ctx context.Context, id string) (T, bool, error) {
	var zero T
	sessionTenant, _ := appcontext.Session(ctx)
	if sessionTenant == "" {
		return zero, false, errs.Authorization("no tenant in session")
	}

	if r.remoteAvailable(ctx) {
		res, found, err := r.remote.GetByID(ctx, id, sessionTenant)
		if err == nil {
			if found {
				r.mirror(ctx, res)
				r.cache.Put(res)
			}
			return res, found, nil
		}
		if errs.IsFatal(err) {
			return zero, false, err
		}
		r.log.WithError(err).Debug("remote read failed, serving local data")
	}

	res, found, err := r.local.GetByID(ctx, id, sessionTenant)
	if err != nil {
		return zero, false, errs.Persistence("get", err)
	}
	if found {
		r.cache.Put(res)
	}
	return res, found, nil
}

// List reads the session tenant's records, remote-preferred with local
// fallback, applying the given filters to whichever result set served.
func (r *Router[T]) List(ctx context.Context, filters ...Filter[T]) ([]T, error) {
	sessionTenant, _ := appcontext.Session(ctx)
	if sessionTenant == "" {
		return nil, errs.Authorization("no tenant in session")
	}

	if r.remoteAvailable(ctx) {
		items, err := r.remote.List(ctx, sessionTenant)
		if err == nil {
			for _, item := range items {
				r.mirror(ctx, item)
			}
			return applyFilters(items, filters), nil
		}
		if errs.IsFatal(err) {
			return nil, err
		}
		r.log.WithError(err).Debug("remote list failed, serving local data")
	}

	items, err := r.local.List(ctx, sessionTenant)
	if err != nil {
		return nil, errs.Persistence("list", err)
	}
	return applyFilters(items, filters), nil
}

// mirror refreshes the local copy after a successful remote operation.
// Best effort: a failed mirror only degrades offline reads.
func (r *Router[T]) mirror(ctx context.Context, entity T) {
	if err := r.local.Apply(ctx, entity); err != nil {
		r.log.WithField("table", entity.Table()).WithError(err).
			Warn("failed to mirror remote record locally")
	}
}

func applyFilters[T models.Entity](items []T, filters []Filter[T]) []T {
	if len(filters) == 0 {
		return items
	}
	out := make([]T, 0, len(items))
next:
	for _, item := range items {
		for _, keep := range filters {
			if !keep(item) {
				continue next
			}
		}
		out = append(out, item)
	}
	return out
}
