package metrics

import (
	"testing"
	"time"
)

// NewMetrics registers its collectors against the default Prometheus
// registry via promauto, so the whole package is exercised through a single
// instance here to avoid duplicate-registration panics across test functions.
func TestMetrics(t *testing.T) {
	m := NewMetrics()

	m.IncrementConnections()
	m.IncrementConnections()
	if got := m.ActiveConnections(); got != 2 {
		t.Fatalf("active connections = %d, want 2", got)
	}

	m.DecrementConnections(500 * time.Millisecond)
	if got := m.ActiveConnections(); got != 1 {
		t.Fatalf("active connections = %d, want 1", got)
	}

	m.RecordConnectionError()
	m.IncrementMessagesReceived(128)
	m.IncrementMessagesSent()

	m.RoomOpened()
	m.RoomClosed()

	m.RecordClipMutation("add")
	m.RecordBatchFlush(3)
	m.RecordConstraintReject("duration_too_short")

	m.RecordChatMessage()
	m.RecordChatRateLimit()
	m.RecordVoteKickStarted()
	m.RecordVoteKickSucceeded()

	m.RecordPersistenceSync(10*time.Millisecond, nil)
	m.RecordPersistenceSync(10*time.Millisecond, errTest)

	m.RecordError("decode")
	m.SetEventBusConnected(true)
	m.SetEventBusConnected(false)

	if m.Uptime() <= 0 {
		t.Fatal("expected non-zero uptime")
	}
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
