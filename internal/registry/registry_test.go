package registry

import "testing"

type fakeConn struct {
	id      string
	userID  string
	evicted bool
}

func (f *fakeConn) ID() string     { return f.id }
func (f *fakeConn) UserID() string { return f.userID }
func (f *fakeConn) EvictForReconnect() {
	f.evicted = true
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	c := &fakeConn{id: "c1", userID: "u1"}

	r.Register(c)
	got, ok := r.Get("c1")
	if !ok || got != c {
		t.Fatal("expected to find the registered connection")
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1", r.Count())
	}
}

func TestRegisterEvictsPriorConnectionForSameUser(t *testing.T) {
	r := New()
	old := &fakeConn{id: "c1", userID: "u1"}
	r.Register(old)

	next := &fakeConn{id: "c2", userID: "u1"}
	evicted := r.Register(next)

	if len(evicted) != 1 || evicted[0] != old {
		t.Fatalf("expected old connection to be returned as evicted, got %+v", evicted)
	}
	if !old.evicted {
		t.Fatal("expected Register to call EvictForReconnect on the displaced connection")
	}
	if _, ok := r.Get("c1"); !ok {
		t.Fatal("expected old connection id to remain registered until explicitly unregistered")
	}
	if r.Count() != 2 {
		t.Fatalf("count = %d, want 2 (registry only removes on Unregister)", r.Count())
	}
}

func TestUnregisterRemovesBothIndexes(t *testing.T) {
	r := New()
	c := &fakeConn{id: "c1", userID: "u1"}
	r.Register(c)
	r.Unregister(c)

	if _, ok := r.Get("c1"); ok {
		t.Fatal("expected connection to be gone after unregister")
	}
	if conns := r.ConnectionsForUser("u1"); len(conns) != 0 {
		t.Fatalf("expected no connections for u1, got %d", len(conns))
	}
}

func TestConnectionsForUserFiltersByUser(t *testing.T) {
	r := New()
	c1 := &fakeConn{id: "c1", userID: "u1"}
	c2 := &fakeConn{id: "c2", userID: "u2"}
	r.Register(c1)
	r.Register(c2)

	if conns := r.ConnectionsForUser("u1"); len(conns) != 1 || conns[0] != c1 {
		t.Fatalf("expected exactly c1 for u1, got %+v", conns)
	}
}
