package room

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/outpoot/editmash-hub/internal/wire"
)

func TestPersistenceDebouncerFiresAfterWindow(t *testing.T) {
	var fired int32
	d := newPersistenceDebouncer(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	d.touch()
	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
}

func TestPersistenceDebouncerTouchResetsTimer(t *testing.T) {
	var fired int32
	d := newPersistenceDebouncer(40*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	d.touch()
	time.Sleep(20 * time.Millisecond)
	d.touch() // resets before the first window would have elapsed
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("expected touch to have reset the timer before it fired")
	}
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("fired = %d, want 1 after the reset window elapses", fired)
	}
}

func TestPersistenceDebouncerCancelSuppressesFire(t *testing.T) {
	var fired int32
	d := newPersistenceDebouncer(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	d.touch()
	d.cancel()
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("expected cancel to suppress the pending fire")
	}
}

func TestRoomFiresRequestTimelineSyncAfterMutation(t *testing.T) {
	r, _ := newTestRoomWithTrack()

	conn, reader := newTestClient(t)
	r.Join(conn, "u1", "alice", "", "")

	clip := wire.Clip{ID: "c1", Kind: wire.KindVideo, StartTime: 0, Duration: 5}
	r.HandleClipAdded(conn, wire.ClipAddedPayload{MatchID: "m1", TrackID: "t1", Clip: clip, AddedBy: "u1"})

	reader.waitForType(t, wire.TypeRequestTimelineSync, time.Second)
}
