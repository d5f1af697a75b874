package core

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/stratumdb/stratum/internal/logger"
)

const healthPingTimeout = 5 * time.Second

// healthChecker pings the database on an interval so dead connections
// surface before the next real query hits them. Enabled through
// WithHealthCheck.
type healthChecker struct {
	db       *sql.DB
	log      logger.Logger
	database string
	interval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup

	mu       sync.RWMutex
	lastErr  error
	lastPing time.Time
}

func newHealthChecker(db *sql.DB, log logger.Logger, database string, interval time.Duration) *healthChecker {
	return &healthChecker{
		db:       db,
		log:      log,
		database: database,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// start pings once immediately so the state is meaningful right away,
// then keeps pinging on the interval.
func (h *healthChecker) start() {
	h.ping()
	h.wg.Add(1)
	go h.run()
}

func (h *healthChecker) run() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.ping()
		case <-h.stop:
			return
		}
	}
}

func (h *healthChecker) ping() {
	ctx, cancel := context.WithTimeout(context.Background(), healthPingTimeout)
	defer cancel()
	err := h.db.PingContext(ctx)

	h.mu.Lock()
	h.lastErr = err
	h.lastPing = time.Now()
	h.mu.Unlock()

	if err != nil {
		h.log.Warn("health check failed", "database", h.database, "error", err)
	}
}

func (h *healthChecker) shutdown() {
	close(h.stop)
	h.wg.Wait()
}

func (h *healthChecker) healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr == nil
}

func (h *healthChecker) lastError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

func (h *healthChecker) lastCheck() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastPing
}

func (w *Wrapper) startHealthCheck() {
	if w.healthInterval <= 0 {
		return
	}
	w.health = newHealthChecker(w.sqlDB, w.log, w.database, w.healthInterval)
	w.health.start()
}

// Healthy reports connection health. With a background checker running
// it returns the last known state; otherwise it pings on the spot.
func (w *Wrapper) Healthy() bool {
	if w.closed.Load() {
		return false
	}
	if w.health != nil {
		return w.health.healthy()
	}
	ctx, cancel := context.WithTimeout(w.callCtx(nil), healthPingTimeout)
	defer cancel()
	return w.sqlDB.PingContext(ctx) == nil
}

// LastHealthError returns the most recent background health check error,
// nil when healthy or when no checker is running.
func (w *Wrapper) LastHealthError() error {
	if w.health == nil {
		return nil
	}
	return w.health.lastError()
}

// LastHealthCheck returns when the background checker last pinged, the
// zero time when no checker is running.
func (w *Wrapper) LastHealthCheck() time.Time {
	if w.health == nil {
		return time.Time{}
	}
	return w.health.lastCheck()
}
