package netwatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wurt83ow/poskeeper-client/pkg/logger"
)

func TestHTTPCheckerOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			t.Errorf("unexpected probe path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL, time.Second, true, logger.NewLogger("error"))
	if !checker.IsOnline(context.Background()) {
		t.Error("expected online verdict for healthy server")
	}
}

func TestHTTPCheckerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL, time.Second, true, logger.NewLogger("error"))
	if checker.IsOnline(context.Background()) {
		t.Error("expected offline verdict for 500 from ping")
	}
}

func TestHTTPCheckerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	checker := NewHTTPChecker(srv.URL, 200*time.Millisecond, true, logger.NewLogger("error"))
	if checker.IsOnline(context.Background()) {
		t.Error("expected offline verdict when the server is unreachable")
	}
}

type flipChecker struct {
	online atomic.Bool
}

func (f *flipChecker) IsOnline(context.Context) bool { return f.online.Load() }

func TestWatcherFiresOnTransition(t *testing.T) {
	checker := &flipChecker{}
	var fired atomic.Int32

	w := NewWatcher(checker, 10*time.Millisecond, func(context.Context) {
		fired.Add(1)
	}, logger.NewLogger("error"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("callback fired while offline")
	}

	checker.online.Store(true)
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("expected exactly one callback after transition, got %d", fired.Load())
	}

	cancel()
	<-done
}
