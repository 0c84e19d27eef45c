// Package metrics exposes the hub's Prometheus series and a gopsutil-backed
// system sampler for the /health endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	connectionsTotal   prometheus.Counter
	connectionsActive  prometheus.Gauge
	connectionDuration prometheus.Histogram
	connectionsErrors  prometheus.Counter

	messagesReceived prometheus.Counter
	messagesSent     prometheus.Counter
	messageSize      prometheus.Histogram

	roomsActive      prometheus.Gauge
	roomsCreatedTotal prometheus.Counter
	roomsClosedTotal  prometheus.Counter

	clipMutationsTotal *prometheus.CounterVec
	batchFlushSize     prometheus.Histogram
	constraintRejects  *prometheus.CounterVec

	chatMessagesTotal  prometheus.Counter
	chatRateLimited    prometheus.Counter
	voteKicksStarted   prometheus.Counter
	voteKicksSucceeded prometheus.Counter

	persistenceSyncsTotal   prometheus.Counter
	persistenceSyncFailures prometheus.Counter
	persistenceSyncLatency  prometheus.Histogram

	errorsTotal   prometheus.Counter
	errorsByType  *prometheus.CounterVec
	lastErrorTime prometheus.Gauge

	natsConnectionStatus prometheus.Gauge

	startTime time.Time
	mu        sync.RWMutex
	clients   int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_connections_total",
			Help: "Total number of WebSocket connections attempted",
		}),
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "editmash_connections_active",
			Help: "Number of currently active WebSocket connections",
		}),
		connectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "editmash_connection_duration_seconds",
			Help:    "Duration of WebSocket connections",
			Buckets: prometheus.DefBuckets,
		}),
		connectionsErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_connection_errors_total",
			Help: "Total number of WebSocket connection errors",
		}),

		messagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_messages_received_total",
			Help: "Total number of messages received from clients",
		}),
		messagesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_messages_sent_total",
			Help: "Total number of messages sent to clients",
		}),
		messageSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "editmash_message_size_bytes",
			Help:    "Size of WebSocket messages in bytes",
			Buckets: []float64{100, 500, 1000, 2000, 5000, 10000, 50000},
		}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "editmash_rooms_active",
			Help: "Number of currently open match rooms",
		}),
		roomsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_rooms_created_total",
			Help: "Total number of match rooms created",
		}),
		roomsClosedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_rooms_closed_total",
			Help: "Total number of match rooms closed",
		}),

		clipMutationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "editmash_clip_mutations_total",
			Help: "Total clip mutations by kind (add, update, remove, split)",
		}, []string{"kind"}),
		batchFlushSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "editmash_batch_flush_size",
			Help:    "Number of clip deltas per batched flush",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		constraintRejects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "editmash_constraint_rejects_total",
			Help: "Clip mutations rejected by the constraint validator, by reason",
		}, []string{"reason"}),

		chatMessagesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_chat_messages_total",
			Help: "Total chat messages broadcast",
		}),
		chatRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_chat_rate_limited_total",
			Help: "Total chat messages dropped for rate limiting",
		}),
		voteKicksStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_vote_kicks_started_total",
			Help: "Total vote-kicks initiated",
		}),
		voteKicksSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_vote_kicks_succeeded_total",
			Help: "Total vote-kicks that reached threshold",
		}),

		persistenceSyncsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_persistence_syncs_total",
			Help: "Total timeline syncs pushed to the external app",
		}),
		persistenceSyncFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_persistence_sync_failures_total",
			Help: "Total timeline sync failures",
		}),
		persistenceSyncLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "editmash_persistence_sync_latency_seconds",
			Help:    "Latency of timeline sync PATCH requests",
			Buckets: prometheus.DefBuckets,
		}),

		errorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "editmash_errors_total",
			Help: "Total number of errors",
		}),
		errorsByType: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "editmash_errors_by_type_total",
			Help: "Total number of errors by type",
		}, []string{"type"}),
		lastErrorTime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "editmash_last_error_timestamp",
			Help: "Timestamp of the last error",
		}),

		natsConnectionStatus: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "editmash_eventbus_connection_status",
			Help: "Event bus connection status (1=connected, 0=disconnected)",
		}),
	}
}

func (m *Metrics) IncrementConnections() {
	m.connectionsTotal.Inc()
	m.mu.Lock()
	m.clients++
	m.mu.Unlock()
	m.connectionsActive.Inc()
}

func (m *Metrics) DecrementConnections(duration time.Duration) {
	m.mu.Lock()
	m.clients--
	m.mu.Unlock()
	m.connectionsActive.Dec()
	m.connectionDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordConnectionError() {
	m.connectionsErrors.Inc()
	m.RecordError("connection")
}

func (m *Metrics) IncrementMessagesReceived(size int) {
	m.messagesReceived.Inc()
	m.messageSize.Observe(float64(size))
}

func (m *Metrics) IncrementMessagesSent() { m.messagesSent.Inc() }

func (m *Metrics) RoomOpened() {
	m.roomsCreatedTotal.Inc()
	m.roomsActive.Inc()
}

func (m *Metrics) RoomClosed() {
	m.roomsClosedTotal.Inc()
	m.roomsActive.Dec()
}

func (m *Metrics) RecordClipMutation(kind string) { m.clipMutationsTotal.WithLabelValues(kind).Inc() }

func (m *Metrics) RecordBatchFlush(size int) { m.batchFlushSize.Observe(float64(size)) }

func (m *Metrics) RecordConstraintReject(reason string) {
	m.constraintRejects.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordChatMessage()  { m.chatMessagesTotal.Inc() }
func (m *Metrics) RecordChatRateLimit() { m.chatRateLimited.Inc() }
func (m *Metrics) RecordVoteKickStarted()   { m.voteKicksStarted.Inc() }
func (m *Metrics) RecordVoteKickSucceeded() { m.voteKicksSucceeded.Inc() }

func (m *Metrics) RecordPersistenceSync(d time.Duration, err error) {
	m.persistenceSyncsTotal.Inc()
	m.persistenceSyncLatency.Observe(d.Seconds())
	if err != nil {
		m.persistenceSyncFailures.Inc()
	}
}

func (m *Metrics) RecordError(errorType string) {
	m.errorsTotal.Inc()
	m.errorsByType.WithLabelValues(errorType).Inc()
	m.lastErrorTime.SetToCurrentTime()
}

func (m *Metrics) SetEventBusConnected(connected bool) {
	if connected {
		m.natsConnectionStatus.Set(1)
	} else {
		m.natsConnectionStatus.Set(0)
	}
}

func (m *Metrics) ActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clients
}

func (m *Metrics) Uptime() time.Duration { return time.Since(m.startTime) }
