// Package netwatch answers the single question the router needs before
// attempting a remote operation: is the server currently reachable?
package netwatch

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Checker reports remote reachability. Implementations must normalize
// whatever their probe returns into one boolean; the ambiguity of a
// failed probe stays behind this boundary.
type Checker interface {
	IsOnline(ctx context.Context) bool
}

// HTTPChecker probes the server's ping endpoint with a short timeout.
type HTTPChecker struct {
	pingURL string
	client  *http.Client
	// assumeOnline is the verdict when the probe itself errors. True
	// means the router will attempt remote and rely on its own fallback.
	assumeOnline bool
	log          *logrus.Logger
}

func NewHTTPChecker(serverURL string, timeout time.Duration, assumeOnline bool, log *logrus.Logger) *HTTPChecker {
	return &HTTPChecker{
		pingURL:      serverURL + "/ping",
		client:       &http.Client{Timeout: timeout},
		assumeOnline: assumeOnline,
		log:          log,
	}
}

func (c *HTTPChecker) IsOnline(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pingURL, nil)
	if err != nil {
		c.log.WithError(err).Warn("connectivity probe could not be built")
		return c.assumeOnline
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}

// Watcher polls a Checker and fires a callback on the offline-to-online
// transition, which is the moment the sync queue should be drained.
type Watcher struct {
	checker  Checker
	interval time.Duration
	onOnline func(ctx context.Context)
	log      *logrus.Logger

	mu       sync.Mutex
	lastSeen bool
}

func NewWatcher(checker Checker, interval time.Duration, onOnline func(ctx context.Context), log *logrus.Logger) *Watcher {
	return &Watcher{
		checker:  checker,
		interval: interval,
		onOnline: onOnline,
		log:      log,
	}
}

// Run blocks until ctx is canceled. The first online observation also
// fires the callback, so operations queued across restarts get replayed
// without waiting for a connectivity flap.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.observe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) observe(ctx context.Context) {
	online := w.checker.IsOnline(ctx)

	w.mu.Lock()
	transition := online && !w.lastSeen
	w.lastSeen = online
	w.mu.Unlock()

	if transition {
		w.log.Info("connectivity restored, replaying pending operations")
		w.onOnline(ctx)
	}
}
