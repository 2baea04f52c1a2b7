package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crystal-mush/swordsanddeath/pkg/events"
)

// Metrics holds Prometheus metric descriptors for the game server.
// It subscribes to the event bus for game event counts.
type Metrics struct {
	conns     *ConnManager
	startTime time.Time
	registry  *prometheus.Registry

	sessionsActive   *prometheus.GaugeVec
	connectionsTotal *prometheus.CounterVec
	handshakesTotal  *prometheus.CounterVec
	commandsTotal    *prometheus.CounterVec
	gameEventsTotal  *prometheus.CounterVec
	expGainedTotal   prometheus.Counter
	keepaliveLatency prometheus.Histogram
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates the server metrics in their own registry.
func NewMetrics(conns *ConnManager, startTime time.Time) *Metrics {
	m := &Metrics{
		conns:     conns,
		startTime: startTime,
		registry:  prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "snd_sessions_active",
			Help: "Number of logged in sessions by transport.",
		}, []string{"transport"}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snd_connections_total",
			Help: "Total connections since server start.",
		}, []string{"transport"}),
		handshakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snd_handshakes_total",
			Help: "Handshakes by result.",
		}, []string{"result"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snd_commands_total",
			Help: "Client commands processed by command.",
		}, []string{"command"}),
		gameEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snd_game_events_total",
			Help: "Resolved game events by type.",
		}, []string{"type"}),
		expGainedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snd_exp_gained_total",
			Help: "Experience handed out since server start.",
		}),
		keepaliveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "snd_keepalive_latency_seconds",
			Help:    "Keepalive latency as reported by the session.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snd_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snd_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snd_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.sessionsActive,
		m.connectionsTotal,
		m.handshakesTotal,
		m.commandsTotal,
		m.gameEventsTotal,
		m.expGainedTotal,
		m.keepaliveLatency,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)

	return m
}

// Receive implements events.Subscriber.
func (m *Metrics) Receive(ev events.Event) {
	m.gameEventsTotal.WithLabelValues(ev.Type.String()).Inc()
	switch ev.Type {
	case events.EvExpGain:
		m.expGainedTotal.Add(float64(ev.Amount))
	case events.EvKeepAlive:
		m.keepaliveLatency.Observe(float64(ev.Amount))
	}
}

// Closed implements events.Subscriber.
func (m *Metrics) Closed() bool { return false }

var _ events.Subscriber = (*Metrics)(nil)

// ConnectionOpened counts a new connection. The counting methods are no-ops
// on a nil *Metrics.
func (m *Metrics) ConnectionOpened(t TransportType) {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues(t.String()).Inc()
}

// Handshake counts a finished handshake.
func (m *Metrics) Handshake(result string) {
	if m == nil {
		return
	}
	m.handshakesTotal.WithLabelValues(result).Inc()
}

// Command counts a processed client command.
func (m *Metrics) Command(name string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(name).Inc()
}

// Update refreshes all gauge metrics from current server state.
func (m *Metrics) Update() {
	for t, n := range m.conns.CountPlaying() {
		m.sessionsActive.WithLabelValues(t.String()).Set(float64(n))
	}

	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		h.ServeHTTP(w, r)
	})
}
