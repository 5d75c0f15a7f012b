package dualstore_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wurt83ow/poskeeper-client/pkg/appcontext"
	"github.com/wurt83ow/poskeeper-client/pkg/bdkeeper"
	"github.com/wurt83ow/poskeeper-client/pkg/dualstore"
	"github.com/wurt83ow/poskeeper-client/pkg/errs"
	"github.com/wurt83ow/poskeeper-client/pkg/gksync"
	"github.com/wurt83ow/poskeeper-client/pkg/logger"
	"github.com/wurt83ow/poskeeper-client/pkg/models"
	"github.com/wurt83ow/poskeeper-client/pkg/syncqueue"
)

type stubChecker struct{ online bool }

func (c stubChecker) IsOnline(context.Context) bool { return c.online }

type env struct {
	router *dualstore.Router[models.Product]
	local  *bdkeeper.Store[models.Product]
	remote *gksync.Store[models.Product]
	queue  *syncqueue.Queue
	db     *sql.DB
	calls  *atomic.Int64
}

// newEnv wires a router over a real sqlite local store and an httptest
// remote, the same composition the application uses.
func newEnv(t *testing.T, handler http.Handler, online bool) env {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, bdkeeper.RunMigrations(db))

	var calls atomic.Int64
	counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler.ServeHTTP(w, r)
	})
	srv := httptest.NewServer(counted)
	t.Cleanup(srv.Close)

	log := logger.NewLogger("error")
	queue := syncqueue.New(db, log)
	local := bdkeeper.NewStore[models.Product](bdkeeper.NewKeeper(db), queue)
	remote := gksync.NewStore[models.Product](gksync.NewClient(srv.URL, 2*time.Second))
	router := dualstore.NewRouter[models.Product](remote, local, stubChecker{online: online},
		validator.New(), log, true)
	return env{router: router, local: local, remote: remote, queue: queue, db: db, calls: &calls}
}

func echoOK(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&body)
	if len(body) == 0 {
		body = json.RawMessage(`[]`)
	}
	_, _ = w.Write(body)
}

func sessionCtx() context.Context {
	return appcontext.WithSession(context.Background(), "tenant-1", "user-1")
}

func sampleProduct(id string) models.Product {
	return models.Product{
		ID:       id,
		TenantID: "tenant-1",
		Name:     "americano",
		Active:   true,
	}
}

func TestCreateRemoteSuccessLeavesQueueEmpty(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(echoOK), true)
	ctx := sessionCtx()

	created, err := e.router.Create(ctx, sampleProduct("p1"))
	require.NoError(t, err)
	assert.Equal(t, "p1", created.ID)

	n, err := e.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "a remote success must not enqueue anything")

	// The remote result is mirrored locally for offline reads.
	_, found, err := e.local.GetByID(ctx, "p1", "tenant-1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCreateFallsBackOnServerError(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}), true)
	ctx := sessionCtx()

	product := sampleProduct("p1")
	created, err := e.router.Create(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, "p1", created.ID)

	_, found, err := e.local.GetByID(ctx, "p1", "tenant-1")
	require.NoError(t, err)
	assert.True(t, found)

	ops, err := e.queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1, "fallback must pair the write with exactly one queue entry")
	assert.Equal(t, "products", ops[0].TableName)
	assert.Equal(t, "p1", ops[0].EntryID)
	assert.Equal(t, models.OpInsert, ops[0].Operation)

	want, err := json.Marshal(product)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(ops[0].Payload))
}

func TestCreateOfflineNeverTouchesRemote(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(echoOK), false)
	ctx := sessionCtx()

	_, err := e.router.Create(ctx, sampleProduct("p1"))
	require.NoError(t, err)

	assert.Zero(t, e.calls.Load(), "offline writes must not hit the server")
	n, err := e.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// A remote rejection for a logically invalid or unauthorized request is
// final. Retrying it against the local store could never make it valid.
func TestCreateRemoteRejectionIsNotRetriedLocally(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tenant suspended", http.StatusForbidden)
	}), true)
	ctx := sessionCtx()

	_, err := e.router.Create(ctx, sampleProduct("p1"))
	var ae *errs.AuthorizationError
	require.True(t, errors.As(err, &ae))

	_, found, lerr := e.local.GetByID(ctx, "p1", "tenant-1")
	require.NoError(t, lerr)
	assert.False(t, found, "a rejected write must not land locally")

	n, err := e.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateValidationShortCircuits(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(echoOK), true)
	ctx := sessionCtx()

	invalid := sampleProduct("p1")
	invalid.Name = ""
	_, err := e.router.Create(ctx, invalid)
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Zero(t, e.calls.Load(), "invalid records must be rejected before any store is tried")

	missingID := sampleProduct("")
	_, err = e.router.Create(ctx, missingID)
	require.True(t, errors.As(err, &ve))
}

func TestCreateRejectsForeignTenant(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(echoOK), true)
	ctx := sessionCtx()

	foreign := sampleProduct("p1")
	foreign.TenantID = "tenant-2"
	_, err := e.router.Create(ctx, foreign)
	var ae *errs.AuthorizationError
	require.True(t, errors.As(err, &ae))
	assert.Zero(t, e.calls.Load())
}

func TestCreateAdminMayCrossTenants(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(echoOK), true)
	ctx := appcontext.WithAdmin(sessionCtx())

	foreign := sampleProduct("p1")
	foreign.TenantID = "tenant-2"
	_, err := e.router.Create(ctx, foreign)
	assert.NoError(t, err)
}

func TestCreateBothStoresFailing(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}), true)
	ctx := sessionCtx()

	_, err := e.db.Exec(`DROP TABLE products`)
	require.NoError(t, err)

	_, err = e.router.Create(ctx, sampleProduct("p1"))
	var pe *errs.PersistenceError
	require.True(t, errors.As(err, &pe), "local failure is terminal and takes precedence")
}

func TestCustomCheckRunsBeforeStores(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(echoOK), true)
	e.router.WithCheck(func(p models.Product) error {
		if p.Price.IsNegative() {
			return errs.Validation("product price must not be negative")
		}
		return nil
	})
	ctx := sessionCtx()

	bad := sampleProduct("p1")
	bad.Price = decimal.NewFromInt(-1)
	_, err := e.router.Create(ctx, bad)
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Zero(t, e.calls.Load())
}

func TestUpdateFallsBackAndEnqueuesUpdate(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}), true)
	ctx := sessionCtx()

	require.NoError(t, e.local.Apply(ctx, sampleProduct("p1")))

	changed := sampleProduct("p1")
	changed.Name = "espresso"
	_, err := e.router.Update(ctx, changed)
	require.NoError(t, err)

	ops, err := e.queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpUpdate, ops[0].Operation)
}

func TestDeleteOfflineEnqueuesDelete(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(echoOK), false)
	ctx := sessionCtx()

	require.NoError(t, e.local.Apply(ctx, sampleProduct("p1")))

	deleted, err := e.router.Delete(ctx, "p1", "tenant-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	ops, err := e.queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpDelete, ops[0].Operation)
	assert.Equal(t, "p1", ops[0].EntryID)
}

func TestReadsServeLocalOfflineWithoutEnqueueing(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(echoOK), false)
	ctx := sessionCtx()

	require.NoError(t, e.local.Apply(ctx, sampleProduct("p1")))

	got, found, err := e.router.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "americano", got.Name)

	items, err := e.router.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	n, err := e.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "reads must never enqueue sync operations")
	assert.Zero(t, e.calls.Load())
}

func TestListAppliesFilters(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(echoOK), false)
	ctx := sessionCtx()

	active := sampleProduct("p1")
	retired := sampleProduct("p2")
	retired.Active = false
	require.NoError(t, e.local.Apply(ctx, active))
	require.NoError(t, e.local.Apply(ctx, retired))

	items, err := e.router.List(ctx, func(p models.Product) bool { return p.Active })
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ID)
}

// Offline writes drain back to the server once connectivity returns,
// after which the queue is empty and a second drain is a no-op.
func TestOfflineWritesDrainWhenBackOnline(t *testing.T) {
	var puts atomic.Int64
	e := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts.Add(1)
		}
		echoOK(w, r)
	}), false)
	ctx := sessionCtx()

	_, err := e.router.Create(ctx, sampleProduct("p1"))
	require.NoError(t, err)
	_, err = e.router.Update(ctx, sampleProduct("p1"))
	require.NoError(t, err)

	report, err := e.queue.Drain(ctx, map[string]syncqueue.Replayer{"products": e.remote})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, int64(2), puts.Load())

	n, err := e.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
