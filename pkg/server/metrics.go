package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the game server.
type Metrics struct {
	game *Game

	playersConnected prometheus.Gauge
	objectsTotal     prometheus.Gauge
	connectionsTotal prometheus.Counter
	commandsTotal    prometheus.Counter
	softcodeAborts   prometheus.Counter
	lockDenials      prometheus.Counter
	evalSteps        prometheus.Histogram
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the game.
func NewMetrics(game *Game) *Metrics {
	m := &Metrics{
		game: game,
		playersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webmush_players_connected",
			Help: "Number of currently connected players.",
		}),
		objectsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webmush_objects_total",
			Help: "Total number of live objects in the database.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webmush_connections_total",
			Help: "Total connections since server start.",
		}),
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webmush_commands_processed_total",
			Help: "Total commands processed since server start.",
		}),
		softcodeAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webmush_softcode_aborts_total",
			Help: "Softcode evaluations aborted by a recursion or invocation budget.",
		}),
		lockDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webmush_lock_denials_total",
			Help: "Lock checks that denied the acting object.",
		}),
		evalSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webmush_eval_invocations",
			Help:    "Function invocations per softcode evaluation.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webmush_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webmush_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webmush_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	prometheus.MustRegister(
		m.playersConnected,
		m.objectsTotal,
		m.connectionsTotal,
		m.commandsTotal,
		m.softcodeAborts,
		m.lockDenials,
		m.evalSteps,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)
	return m
}

// ConnectionOpened counts a new connection.
func (m *Metrics) ConnectionOpened() {
	m.connectionsTotal.Inc()
}

// CommandProcessed counts a dispatched command.
func (m *Metrics) CommandProcessed() {
	m.commandsTotal.Inc()
}

// EvalFinished records the invocation cost of one evaluation.
func (m *Metrics) EvalFinished(steps int) {
	m.evalSteps.Observe(float64(steps))
}

// SoftcodeAborted counts an evaluation cut off by a budget.
func (m *Metrics) SoftcodeAborted() {
	m.softcodeAborts.Inc()
}

// LockDenied counts a failed lock check.
func (m *Metrics) LockDenied() {
	m.lockDenials.Inc()
}

// Update refreshes the gauges from current game state.
func (m *Metrics) Update() {
	m.playersConnected.Set(float64(m.game.ConnectionCount()))
	m.objectsTotal.Set(float64(m.game.DB.Size()))
	m.uptimeSeconds.Set(time.Since(m.game.StartTime()).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that refreshes gauges before serving.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		promhttp.Handler().ServeHTTP(w, r)
	})
}
