package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the price data service.
type Metrics struct {
	// Cache layer
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheCoalesced prometheus.Counter
	CacheEvictions prometheus.Counter
	LoaderDur      prometheus.Histogram

	// Snapshot persistence
	SnapshotPersistDur prometheus.Histogram
	SnapshotErrors     prometheus.Counter
	SnapshotRestored   prometheus.Gauge

	// Price store
	QueryDur  *prometheus.HistogramVec // labels: query
	QueryErrs *prometheus.CounterVec   // labels: query

	// Redis circuit breaker
	SnapshotBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	SnapshotBreakerTrips prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fruverd_cache_hits_total",
			Help: "Cache lookups served from a valid resolved entry",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fruverd_cache_misses_total",
			Help: "Cache lookups that invoked the loader",
		}),
		CacheCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fruverd_cache_coalesced_total",
			Help: "Cache lookups that joined an in-flight loader",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fruverd_cache_evictions_total",
			Help: "Entries evicted (lazy expiry, failed loaders, invalidation)",
		}),
		LoaderDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fruverd_loader_duration_seconds",
			Help:    "Cache loader (remote fetch) latency",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotPersistDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fruverd_snapshot_persist_duration_seconds",
			Help:    "Durable snapshot write latency",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fruverd_snapshot_errors_total",
			Help: "Durable snapshot write/read failures (absorbed)",
		}),
		SnapshotRestored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fruverd_snapshot_restored_entries",
			Help: "Entries restored from the durable snapshot at startup",
		}),
		QueryDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fruverd_store_query_duration_seconds",
			Help:    "Price store query latency (by query name)",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		QueryErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fruverd_store_query_errors_total",
			Help: "Price store query failures (by query name)",
		}, []string{"query"}),
		SnapshotBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fruverd_snapshot_circuit_breaker_state",
			Help: "Snapshot store circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		SnapshotBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fruverd_snapshot_circuit_breaker_trips_total",
			Help: "Times the snapshot store circuit breaker tripped open",
		}),
	}

	prometheus.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.CacheCoalesced,
		m.CacheEvictions,
		m.LoaderDur,
		m.SnapshotPersistDur,
		m.SnapshotErrors,
		m.SnapshotRestored,
		m.QueryDur,
		m.QueryErrs,
		m.SnapshotBreakerState,
		m.SnapshotBreakerTrips,
	)

	return m
}

// HealthStatus represents the service health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool `json:"redis_connected"`
	SQLiteOK       bool `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

// SetRedisConnected records the initial Redis connectivity state.
func (h *HealthStatus) SetRedisConnected(ok bool) {
	h.mu.Lock()
	h.RedisConnected = ok
	h.mu.Unlock()
}

// SetSQLiteOK records the initial price database state.
func (h *HealthStatus) SetSQLiteOK(ok bool) {
	h.mu.Lock()
	h.SQLiteOK = ok
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the price database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Redis down only degrades persistence; SQLite down means no data at all.
	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected {
		overallStatus = "degraded"
	}
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("[health] encode error: %v", err)
	}
}

// Serve starts the Prometheus metrics + health endpoint.
// Blocks; run in a goroutine.
func Serve(addr string, health *HealthStatus) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if health != nil {
		mux.Handle("/healthz", health)
	}

	log.Printf("[metrics] serving on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("[metrics] server error: %v", err)
	}
}
