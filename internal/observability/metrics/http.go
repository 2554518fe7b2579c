// Package metrics exposes Prometheus collectors for the API server, the job
// processor and the claim host.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	xerrors "PQ-Bitcoin/internal/errors"
	"PQ-Bitcoin/internal/host"
	"PQ-Bitcoin/internal/task"
)

const namespace = "pqclaim"

// Collector 持有一组独立注册的指标，避免测试之间互相污染全局注册表。
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpErrors   *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	claims *prometheus.CounterVec
}

var (
	_ task.Observer      = (*Collector)(nil)
	_ host.ClaimObserver = (*Collector)(nil)
)

// New 创建 Collector 并注册 Go 运行时与进程指标。
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"handler", "method", "code"}),
		httpErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "Total number of HTTP requests that returned a 5xx status.",
		}, []string{"handler", "method"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"handler", "method"}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proof_jobs_total",
			Help:      "Proof jobs processed, by outcome.",
		}, []string{"program", "mode", "outcome"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proof_job_duration_seconds",
			Help:      "Time spent executing or proving a job.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"program", "mode"}),
		claims: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Claims evaluated by the guest programs.",
		}, []string{"program", "result", "code"}),
	}
}

// Registry 返回底层注册表。
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func (c *Collector) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= http.StatusInternalServerError {
		c.httpErrors.WithLabelValues(handler, method).Inc()
	}
	c.httpLatency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveJob 实现 task.Observer。
func (c *Collector) ObserveJob(program string, mode task.Mode, outcome task.Outcome, elapsed time.Duration) {
	c.jobs.WithLabelValues(program, string(mode), string(outcome)).Inc()
	c.jobDuration.WithLabelValues(program, string(mode)).Observe(elapsed.Seconds())
}

// ObserveClaim 实现 host.ClaimObserver。
func (c *Collector) ObserveClaim(program string, accepted bool, code xerrors.Code) {
	result := "rejected"
	if accepted {
		result = "accepted"
		code = "none"
	}
	c.claims.WithLabelValues(program, result, string(code)).Inc()
}

// Middleware 包装 handler 并记录请求指标。name 作为 handler 标签，避免路径参数导致标签爆炸。
func (c *Collector) Middleware(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		c.ObserveHTTPRequest(name, r.Method, rec.status, time.Since(start))
	})
}

// Handler returns an HTTP handler that exposes metrics in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// StartServer 在独立端口暴露指标，阻塞直到 ctx 取消或监听失败。
func (c *Collector) StartServer(ctx context.Context, addr, path string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
