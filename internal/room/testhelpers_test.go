package room

import (
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/outpoot/editmash-hub/internal/metrics"
	"github.com/outpoot/editmash-hub/internal/transport"
	"github.com/outpoot/editmash-hub/internal/wire"
)

// sharedMetrics avoids panicking on duplicate Prometheus registration from
// repeated metrics.NewMetrics() calls within this package's test binary.
var sharedMetrics = metrics.NewMetrics()

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(*transport.Client, wire.Envelope) {}
func (noopDispatcher) HandleDisconnect(*transport.Client)        {}

// newTestClient upgrades a real WebSocket connection and returns the
// server-side transport.Client plus a reader that drains frames it sends,
// since the room package broadcasts through transport.Client concretely
// rather than through an interface.
func newTestClient(t *testing.T) (*transport.Client, *clientReader) {
	upgrader := transport.Upgrader(4096, 4096, false)
	serverCh := make(chan *transport.Client, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := transport.NewClient(conn, noopDispatcher{}, sharedMetrics, discardLogger(), transport.Options{})
		serverCh <- c
		go c.WritePump()
		c.ReadPump()
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	dialerConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { dialerConn.Close() })

	c := <-serverCh
	reader := &clientReader{conn: dialerConn}
	go reader.loop()
	return c, reader
}

// clientReader drains frames sent to a dialed connection so room broadcasts
// don't block on a full send channel, and lets tests assert on what arrived.
type clientReader struct {
	conn *websocket.Conn
	mu   sync.Mutex
	envs []wire.Envelope
}

func (r *clientReader) loop() {
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := wire.Decode(data)
		if err != nil {
			continue
		}
		r.mu.Lock()
		r.envs = append(r.envs, env)
		r.mu.Unlock()
	}
}

func (r *clientReader) snapshot() []wire.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wire.Envelope, len(r.envs))
	copy(out, r.envs)
	return out
}

func (r *clientReader) waitForType(t *testing.T, msgType wire.MessageType, timeout time.Duration) wire.Envelope {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, env := range r.snapshot() {
			if env.Type == msgType {
				return env
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for envelope type %s", msgType)
	return wire.Envelope{}
}

func discardLogger() *log.Logger {
	return log.New(discardWriter{}, "", 0)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// fakeExternal is a minimal, deterministic in-memory ExternalClient.
type fakeExternal struct {
	mu         sync.Mutex
	configs    map[string]wire.MatchConfig
	timelines  map[string]wire.Timeline
	patches    []patchedTimeline
	joins      []string
	leaves     []string
	configErr  error
	timelineErr error
}

type patchedTimeline struct {
	matchID   string
	timeline  wire.Timeline
	editCount uint64
}

func newFakeExternal() *fakeExternal {
	return &fakeExternal{
		configs:   make(map[string]wire.MatchConfig),
		timelines: make(map[string]wire.Timeline),
	}
}

func (f *fakeExternal) FetchConfig(matchID string) (wire.MatchConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configErr != nil {
		return wire.MatchConfig{}, f.configErr
	}
	return f.configs[matchID], nil
}

func (f *fakeExternal) FetchTimeline(matchID string) (wire.Timeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timelineErr != nil {
		return wire.Timeline{}, f.timelineErr
	}
	return f.timelines[matchID], nil
}

func (f *fakeExternal) PatchTimeline(matchID string, timeline wire.Timeline, editCount uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patchedTimeline{matchID, timeline, editCount})
	return nil
}

func (f *fakeExternal) NotifyJoin(matchID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, matchID+"/"+userID)
	return nil
}

func (f *fakeExternal) NotifyLeave(matchID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, matchID+"/"+userID)
	return nil
}

func testOptions() Options {
	return Options{
		BatchWindow:         20 * time.Millisecond,
		PersistenceDebounce: 50 * time.Millisecond,
		ChatHistorySize:     50,
	}
}
