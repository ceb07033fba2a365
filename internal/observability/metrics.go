package observability

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/bundler/internal/compiler"
)

// Metrics bridges compiler lifecycle hooks into a Prometheus registry.
type Metrics struct {
	registry *prom.Registry

	buildsTotal       prom.Counter
	buildsFailedTotal prom.Counter
	buildDuration     prom.Histogram
	assetsEmitted     prom.Counter

	activeBuilds int32
}

// NewMetrics creates a registry with build counters and the base process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry:          prom.NewRegistry(),
		buildsTotal:       prom.NewCounter(prom.CounterOpts{Namespace: "bundler", Name: "builds_total", Help: "Total completed builds"}),
		buildsFailedTotal: prom.NewCounter(prom.CounterOpts{Namespace: "bundler", Name: "builds_failed_total", Help: "Total failed builds"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "bundler",
			Name:      "build_duration_seconds",
			Help:      "Wall-clock duration of completed builds",
			Buckets:   prom.DefBuckets,
		}),
		assetsEmitted: prom.NewCounter(prom.CounterOpts{Namespace: "bundler", Name: "assets_emitted_total", Help: "Total assets written to the output directory"}),
	}
	activeGauge := prom.NewGaugeFunc(prom.GaugeOpts{Namespace: "bundler", Name: "active_builds", Help: "Builds currently running"}, func() float64 {
		return float64(atomic.LoadInt32(&m.activeBuilds))
	})
	m.registry.MustRegister(m.buildsTotal, m.buildsFailedTotal, m.buildDuration, m.assetsEmitted, activeGauge)
	m.registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return m
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prom.Registry { return m.registry }

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentCompiler taps build lifecycle hooks so every run is counted.
// The done hook also fires between additional passes; those interim reports
// carry the NeedAdditionalPass flag and are skipped so the duration and
// asset observations describe the run's final pass. The in-flight flag
// keeps each run at exactly one observation.
func (m *Metrics) InstrumentCompiler(c *compiler.Compiler) {
	var inFlight int32
	start := func(ctx context.Context, _ *compiler.Compiler) error {
		if atomic.CompareAndSwapInt32(&inFlight, 0, 1) {
			atomic.AddInt32(&m.activeBuilds, 1)
		}
		return nil
	}
	c.Hooks.BeforeRun.MustTap("metrics", start)
	c.Hooks.WatchRun.MustTap("metrics", start)
	c.Hooks.Done.MustTap("metrics", func(ctx context.Context, stats *compiler.Stats) error {
		if stats.Compilation.NeedAdditionalPass {
			return nil
		}
		if !atomic.CompareAndSwapInt32(&inFlight, 1, 0) {
			return nil
		}
		atomic.AddInt32(&m.activeBuilds, -1)
		m.buildsTotal.Inc()
		m.buildDuration.Observe(stats.Duration().Seconds())
		for _, name := range stats.Compilation.AssetNames() {
			if asset, ok := stats.Compilation.Asset(name); ok && asset.Emitted {
				m.assetsEmitted.Inc()
			}
		}
		return nil
	})
	c.Hooks.Failed.MustTap("metrics", func(ctx context.Context, _ error) error {
		if !atomic.CompareAndSwapInt32(&inFlight, 1, 0) {
			return nil
		}
		atomic.AddInt32(&m.activeBuilds, -1)
		m.buildsFailedTotal.Inc()
		return nil
	})
}

// Serve starts a metrics HTTP server on addr. It returns the server so the
// caller can shut it down.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
