package room

import (
	"testing"
	"time"

	"github.com/outpoot/editmash-hub/internal/wire"
)

func TestManagerJoinCreatesRoomLazily(t *testing.T) {
	ext := newFakeExternal()
	ext.timelines["m1"] = wire.Timeline{Duration: 30}
	mgr := NewManager(ext, sharedMetrics, discardLogger(), testOptions())

	conn, reader := newTestClient(t)
	if err := mgr.Join(conn, "m1", "u1", "alice", "", ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if mgr.RoomCount() != 1 {
		t.Fatalf("room count = %d, want 1", mgr.RoomCount())
	}
	reader.waitForType(t, wire.TypePlayerCount, time.Second)

	if len(ext.joins) != 1 || ext.joins[0] != "m1/u1" {
		t.Fatalf("joins = %v", ext.joins)
	}
}

func TestManagerJoinPropagatesTimelineFetchError(t *testing.T) {
	ext := newFakeExternal()
	ext.timelineErr = errBoom
	mgr := NewManager(ext, sharedMetrics, discardLogger(), testOptions())

	conn, _ := newTestClient(t)
	if err := mgr.Join(conn, "m1", "u1", "alice", "", ""); err == nil {
		t.Fatal("expected a timeline fetch failure to prevent the join")
	}
	if mgr.RoomCount() != 0 {
		t.Fatalf("expected no room to be created on fetch failure, got %d", mgr.RoomCount())
	}
}

func TestManagerJoinEvictsSameUserFromPriorMatch(t *testing.T) {
	ext := newFakeExternal()
	ext.timelines["m1"] = wire.Timeline{Duration: 30}
	ext.timelines["m2"] = wire.Timeline{Duration: 30}
	mgr := NewManager(ext, sharedMetrics, discardLogger(), testOptions())

	conn1, _ := newTestClient(t)
	if err := mgr.Join(conn1, "m1", "u1", "alice", "", ""); err != nil {
		t.Fatalf("join m1: %v", err)
	}

	conn2, _ := newTestClient(t)
	if err := mgr.Join(conn2, "m2", "u1", "alice", "", ""); err != nil {
		t.Fatalf("join m2: %v", err)
	}

	r1, ok := mgr.Get("m1")
	if !ok {
		t.Fatal("expected match m1's room to still exist")
	}
	deadline := time.Now().Add(time.Second)
	for r1.hasMember(conn1.ID()) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r1.hasMember(conn1.ID()) {
		t.Fatal("expected the same user's earlier connection to be evicted from m1")
	}
}

func TestManagerLeaveClosesEmptyRoom(t *testing.T) {
	ext := newFakeExternal()
	ext.timelines["m1"] = wire.Timeline{Duration: 30}
	mgr := NewManager(ext, sharedMetrics, discardLogger(), testOptions())

	conn, _ := newTestClient(t)
	if err := mgr.Join(conn, "m1", "u1", "alice", "", ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	mgr.Leave(conn)

	deadline := time.Now().Add(time.Second)
	for mgr.RoomCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mgr.RoomCount() != 0 {
		t.Fatalf("expected the room to close once empty, count = %d", mgr.RoomCount())
	}
	if len(ext.leaves) != 1 || ext.leaves[0] != "m1/u1" {
		t.Fatalf("leaves = %v", ext.leaves)
	}
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
