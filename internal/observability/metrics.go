package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/marketplace-backend/internal/platform/envutil"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

type Metrics struct {
	httpRequests *CounterVec
	httpLatency  *HistogramVec
	httpInflight *GaugeVec

	aggOps       *CounterVec
	aggLatency   *HistogramVec
	aggConflicts *CounterVec
	aggRetries   *CounterVec
	aggPartial   *CounterVec

	violations *GaugeVec
	checkRuns  *CounterVec

	dbPool    *GaugeVec
	redisUp   *GaugeVec
	redisPing *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	d := envutil.Duration("METRICS_SCRAPE_INTERVAL", 10*time.Second)
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Init builds the process-wide registry when METRICS_ENABLED is set and
// returns nil otherwise. Every method is nil-safe.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// NewMetrics returns a fresh registry, independent of Init.
func NewMetrics() *Metrics {
	opBuckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	return &Metrics{
		httpRequests: NewCounterVec("mp_http_requests_total", "HTTP requests by method/route/status.", []string{"method", "route", "status"}),
		httpLatency: NewHistogramVec(
			"mp_http_request_duration_seconds",
			"HTTP request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			opBuckets,
		),
		httpInflight: NewGaugeVec("mp_http_inflight_requests", "In-flight HTTP requests.", nil),

		aggOps: NewCounterVec("mp_aggregate_operations_total", "Coordinator operations by op/status.", []string{"op", "status"}),
		aggLatency: NewHistogramVec(
			"mp_aggregate_operation_duration_seconds",
			"Coordinator operation latency in seconds by op/status.",
			[]string{"op", "status"},
			opBuckets,
		),
		aggConflicts: NewCounterVec("mp_aggregate_conflicts_total", "Operations that ended in a version conflict.", []string{"op"}),
		aggRetries:   NewCounterVec("mp_aggregate_retries_total", "Guarded account saves retried after a conflict.", []string{"op"}),
		aggPartial:   NewCounterVec("mp_aggregate_partial_failures_total", "Step sequences that committed a prefix and then failed.", []string{"op", "step"}),

		violations: NewGaugeVec("mp_consistency_violations", "Violations found by the most recent consistency check.", []string{"kind"}),
		checkRuns:  NewCounterVec("mp_consistency_check_runs_total", "Consistency check runs by trigger/status.", []string{"trigger", "status"}),

		dbPool:    NewGaugeVec("mp_db_pool", "Database connection pool stats.", []string{"stat"}),
		redisUp:   NewGaugeVec("mp_redis_up", "Redis reachability (1 up, 0 down).", nil),
		redisPing: NewGaugeVec("mp_redis_ping_seconds", "Redis ping latency in seconds.", nil),
	}
}

func (m *Metrics) ObserveHTTP(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	m.httpRequests.Inc(method, route, status)
	m.httpLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) HTTPInflightInc() {
	if m == nil {
		return
	}
	m.httpInflight.Add(1)
}

func (m *Metrics) HTTPInflightDec() {
	if m == nil {
		return
	}
	m.httpInflight.Add(-1)
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggOps.Inc(op, status)
	m.aggLatency.Observe(dur.Seconds(), op, status)
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggConflicts.Inc(op)
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggRetries.Inc(op)
}

func (m *Metrics) IncAggregatePartialFailure(op, step string) {
	if m == nil {
		return
	}
	m.aggPartial.Inc(op, step)
}

func (m *Metrics) SetConsistencyViolations(kind string, count int) {
	if m == nil {
		return
	}
	m.violations.Set(float64(count), kind)
}

func (m *Metrics) IncCheckRun(trigger, status string) {
	if m == nil {
		return
	}
	m.checkRuns.Inc(trigger, status)
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.httpRequests, m.httpLatency, m.httpInflight,
		m.aggOps, m.aggLatency, m.aggConflicts, m.aggRetries, m.aggPartial,
		m.violations, m.checkRuns,
		m.dbPool, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

// StartDBCollector samples the connection pool until ctx ends.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go tick(ctx, scrapeInterval(), func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: db stats unavailable", "error", err)
			}
			return
		}
		stats := sqlDB.Stats()
		m.dbPool.Set(float64(stats.OpenConnections), "open_connections")
		m.dbPool.Set(float64(stats.InUse), "in_use")
		m.dbPool.Set(float64(stats.Idle), "idle")
		m.dbPool.Set(float64(stats.WaitCount), "wait_count")
		m.dbPool.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
		m.dbPool.Set(float64(stats.MaxOpenConnections), "max_open_connections")
	})
}

// StartRedisCollector pings rdb until ctx ends.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client) {
	if m == nil || rdb == nil {
		return
	}
	go tick(ctx, scrapeInterval(), func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

func tick(ctx context.Context, every time.Duration, fn func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
