package room

import (
	"testing"
	"time"

	"github.com/outpoot/editmash-hub/internal/wire"
)

func newTestRoomWithTrack() (*Room, *fakeExternal) {
	ext := newFakeExternal()
	ext.configs["m1"] = wire.MatchConfig{ClipSizeMax: 3600}
	timeline := wire.Timeline{
		Duration: 60,
		Tracks:   []wire.Track{{ID: "t1", Type: wire.TrackVideo}},
	}
	r := newRoom("m1", timeline, ext, sharedMetrics, discardLogger(), testOptions(), nil)
	return r, ext
}

func TestHandleClipAddedBroadcastsToOthers(t *testing.T) {
	r, _ := newTestRoomWithTrack()

	conn1, _ := newTestClient(t)
	r.Join(conn1, "u1", "alice", "", "")
	conn2, reader2 := newTestClient(t)
	r.Join(conn2, "u2", "bob", "", "")

	clip := wire.Clip{ID: "c1", Kind: wire.KindVideo, StartTime: 0, Duration: 5}
	r.HandleClipAdded(conn1, wire.ClipAddedPayload{MatchID: "m1", TrackID: "t1", Clip: clip, AddedBy: "u1"})

	env := reader2.waitForType(t, wire.TypeClipAdded, time.Second)
	var payload wire.ClipAddedPayload
	if err := wire.DecodePayload(env, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Clip.ID != "c1" {
		t.Fatalf("clip id = %q", payload.Clip.ID)
	}

	if _, _, ok := r.timeline.findClip("c1"); !ok {
		t.Fatal("expected the clip to be in the cache after add")
	}
}

func TestHandleClipAddedRejectsTrackTypeMismatch(t *testing.T) {
	r, _ := newTestRoomWithTrack()

	conn, reader := newTestClient(t)
	r.Join(conn, "u1", "alice", "", "")

	clip := wire.Clip{ID: "c1", Kind: wire.KindAudio, StartTime: 0, Duration: 5}
	r.HandleClipAdded(conn, wire.ClipAddedPayload{MatchID: "m1", TrackID: "t1", Clip: clip, AddedBy: "u1"})

	env := reader.waitForType(t, wire.TypeError, time.Second)
	var payload wire.ErrorPayload
	wire.DecodePayload(env, &payload)
	if payload.Code != wire.ErrTrackTypeMismatch {
		t.Fatalf("code = %q, want %q", payload.Code, wire.ErrTrackTypeMismatch)
	}
}

func TestHandleClipUpdatedRoutesThroughBatcherAndAppliesImmediately(t *testing.T) {
	r, _ := newTestRoomWithTrack()

	conn1, _ := newTestClient(t)
	r.Join(conn1, "u1", "alice", "", "")
	conn2, reader2 := newTestClient(t)
	r.Join(conn2, "u2", "bob", "", "")

	clip := wire.Clip{ID: "c1", Kind: wire.KindVideo, StartTime: 0, Duration: 5}
	r.HandleClipAdded(conn1, wire.ClipAddedPayload{MatchID: "m1", TrackID: "t1", Clip: clip, AddedBy: "u1"})
	reader2.waitForType(t, wire.TypeClipAdded, time.Second)

	newStart := 2.0
	r.HandleClipUpdated(conn1, wire.ClipUpdatedPayload{
		MatchID: "m1", TrackID: "t1", ClipID: "c1",
		Updates: wire.ClipUpdateSet{StartTime: &newStart}, UpdatedBy: "u1",
	})

	_, _, ok := r.timeline.findClip("c1")
	if !ok {
		t.Fatal("expected clip still present after update")
	}
	ti, ci, _ := r.timeline.findClip("c1")
	if r.timeline.timeline.Tracks[ti].Clips[ci].StartTime != newStart {
		t.Fatalf("expected the cache to be mutated synchronously, got start=%v", r.timeline.timeline.Tracks[ti].Clips[ci].StartTime)
	}

	// The fan-out is coalesced by the sender's batcher, so it arrives as a
	// ClipBatchUpdate after the batch window elapses, not immediately.
	env := reader2.waitForType(t, wire.TypeClipBatchUpdate, time.Second)
	var payload wire.ClipBatchUpdatePayload
	if err := wire.DecodePayload(env, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Updates) != 1 {
		t.Fatalf("updates = %+v", payload.Updates)
	}
}

func TestHandleClipRemovedReleasesAllocatorID(t *testing.T) {
	r, _ := newTestRoomWithTrack()

	conn, _ := newTestClient(t)
	r.Join(conn, "u1", "alice", "", "")

	clip := wire.Clip{ID: "c1", Kind: wire.KindVideo, StartTime: 0, Duration: 5}
	r.HandleClipAdded(conn, wire.ClipAddedPayload{MatchID: "m1", TrackID: "t1", Clip: clip, AddedBy: "u1"})
	r.HandleClipRemoved(conn, wire.ClipRemovedPayload{MatchID: "m1", TrackID: "t1", ClipID: "c1", RemovedBy: "u1"})

	if _, _, ok := r.timeline.findClip("c1"); ok {
		t.Fatal("expected the clip to be gone after remove")
	}
	if _, ok := r.allocator.lookupShort("c1"); ok {
		t.Fatal("expected the allocator mapping to be released")
	}
}

func TestHandleClipAddedEnforcesFetchedMinDuration(t *testing.T) {
	r, ext := newTestRoomWithTrack()
	ext.configs["m1"] = wire.MatchConfig{ClipSizeMin: 0.5, ClipSizeMax: 3600}

	conn, reader := newTestClient(t)
	r.Join(conn, "u1", "alice", "", "")

	clip := wire.Clip{ID: "c1", Kind: wire.KindVideo, StartTime: 0, Duration: 0.2}
	r.HandleClipAdded(conn, wire.ClipAddedPayload{MatchID: "m1", TrackID: "t1", Clip: clip, AddedBy: "u1"})

	env := reader.waitForType(t, wire.TypeError, time.Second)
	var payload wire.ErrorPayload
	wire.DecodePayload(env, &payload)
	if payload.Code != wire.ErrConstraintViolation {
		t.Fatalf("code = %q, want %q", payload.Code, wire.ErrConstraintViolation)
	}
	if _, _, ok := r.timeline.findClip("c1"); ok {
		t.Fatal("expected the undersized clip to be rejected, not cached")
	}
}

func TestHandleClipUpdatedRejectsOutOfBoundsStartTime(t *testing.T) {
	r, _ := newTestRoomWithTrack()

	conn, reader := newTestClient(t)
	r.Join(conn, "u1", "alice", "", "")

	clip := wire.Clip{ID: "c1", Kind: wire.KindVideo, StartTime: 0, Duration: 5}
	r.HandleClipAdded(conn, wire.ClipAddedPayload{MatchID: "m1", TrackID: "t1", Clip: clip, AddedBy: "u1"})
	reader.waitForType(t, wire.TypePlayerCount, time.Second)

	negativeStart := -1.0
	r.HandleClipUpdated(conn, wire.ClipUpdatedPayload{
		MatchID: "m1", TrackID: "t1", ClipID: "c1",
		Updates: wire.ClipUpdateSet{StartTime: &negativeStart}, UpdatedBy: "u1",
	})

	env := reader.waitForType(t, wire.TypeError, time.Second)
	var payload wire.ErrorPayload
	wire.DecodePayload(env, &payload)
	if payload.Code != wire.ErrConstraintViolation {
		t.Fatalf("code = %q, want %q", payload.Code, wire.ErrConstraintViolation)
	}
	_, ci, _ := r.timeline.findClip("c1")
	if r.timeline.timeline.Tracks[0].Clips[ci].StartTime != 0 {
		t.Fatal("expected the out-of-bounds update to be rejected, leaving startTime unchanged")
	}
}

func TestHandleClipRemovedHonorsZoneFilter(t *testing.T) {
	r, _ := newTestRoomWithTrack()

	adder, _ := newTestClient(t)
	r.Join(adder, "u1", "alice", "", "")
	observer, observerReader := newTestClient(t)
	r.Join(observer, "u2", "bob", "", "")

	clip := wire.Clip{ID: "c1", Kind: wire.KindVideo, StartTime: 2, Duration: 1}
	r.HandleClipAdded(adder, wire.ClipAddedPayload{MatchID: "m1", TrackID: "t1", Clip: clip, AddedBy: "u1"})
	observerReader.waitForType(t, wire.TypeClipAdded, time.Second)

	// Subscribe the observer to a zone far from the clip; the remove should
	// not reach it.
	r.HandleZoneSubscribe(observer, wire.ZoneSubscribePayload{MatchID: "m1", StartTime: 50, EndTime: 55})
	observerReader.waitForType(t, wire.TypeZoneClips, time.Second)

	r.HandleClipRemoved(adder, wire.ClipRemovedPayload{MatchID: "m1", TrackID: "t1", ClipID: "c1", RemovedBy: "u1"})

	time.Sleep(50 * time.Millisecond)
	for _, env := range observerReader.snapshot() {
		if env.Type == wire.TypeClipRemoved {
			t.Fatal("expected ClipRemoved to be filtered out for an observer subscribed to a distant zone")
		}
	}
}

func TestHandleClipSplitHonorsZoneFilter(t *testing.T) {
	r, _ := newTestRoomWithTrack()

	splitter, _ := newTestClient(t)
	r.Join(splitter, "u1", "alice", "", "")
	observer, observerReader := newTestClient(t)
	r.Join(observer, "u2", "bob", "", "")

	clip := wire.Clip{ID: "c1", Kind: wire.KindVideo, StartTime: 2, Duration: 4}
	r.HandleClipAdded(splitter, wire.ClipAddedPayload{MatchID: "m1", TrackID: "t1", Clip: clip, AddedBy: "u1"})
	observerReader.waitForType(t, wire.TypeClipAdded, time.Second)

	r.HandleZoneSubscribe(observer, wire.ZoneSubscribePayload{MatchID: "m1", StartTime: 50, EndTime: 55})
	observerReader.waitForType(t, wire.TypeZoneClips, time.Second)

	original := wire.Clip{ID: "c1", Kind: wire.KindVideo, StartTime: 2, Duration: 2}
	newHalf := wire.Clip{ID: "c2", Kind: wire.KindVideo, StartTime: 4, Duration: 2}
	r.HandleClipSplit(splitter, wire.ClipSplitPayload{MatchID: "m1", TrackID: "t1", OriginalClip: original, NewClip: newHalf, SplitBy: "u1"})

	time.Sleep(50 * time.Millisecond)
	for _, env := range observerReader.snapshot() {
		if env.Type == wire.TypeClipSplit {
			t.Fatal("expected ClipSplit to be filtered out for an observer subscribed to a distant zone")
		}
	}
}
