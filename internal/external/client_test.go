package external

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/outpoot/editmash-hub/internal/wire"
)

func TestFetchConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/matches/m1" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Fatalf("missing bearer auth header: %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"config": wire.MatchConfig{ClipSizeMin: 1, ClipSizeMax: 30, MaxClipsPerUser: 10},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", 5*time.Second)
	cfg, err := c.FetchConfig("m1")
	if err != nil {
		t.Fatalf("fetch config: %v", err)
	}
	if cfg.MaxClipsPerUser != 10 {
		t.Fatalf("maxClipsPerUser = %v, want 10", cfg.MaxClipsPerUser)
	}
}

func TestFetchConfigNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.FetchConfig("missing"); err == nil {
		t.Fatal("expected a non-200 status to produce an error")
	}
}

func TestFetchTimeline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"timeline": wire.Timeline{Duration: 60, Tracks: []wire.Track{{ID: "t1", Type: wire.TrackVideo}}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	tl, err := c.FetchTimeline("m1")
	if err != nil {
		t.Fatalf("fetch timeline: %v", err)
	}
	if tl.Duration != 60 || len(tl.Tracks) != 1 {
		t.Fatalf("timeline = %+v", tl)
	}
}

func TestPatchTimeline(t *testing.T) {
	var gotBody struct {
		Timeline  wire.Timeline `json:"timeline"`
		EditCount uint64        `json:"editCount"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Fatalf("method = %s, want PATCH", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	tl := wire.Timeline{Duration: 30}
	if err := c.PatchTimeline("m1", tl, 7); err != nil {
		t.Fatalf("patch timeline: %v", err)
	}
	if gotBody.EditCount != 7 || gotBody.Timeline.Duration != 30 {
		t.Fatalf("got body = %+v", gotBody)
	}
}

func TestNotifyJoinAndLeave(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if err := c.NotifyJoin("m1", "u1"); err != nil {
		t.Fatalf("notify join: %v", err)
	}
	if err := c.NotifyLeave("m1", "u1"); err != nil {
		t.Fatalf("notify leave: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/api/matches/m1/join" || paths[1] != "/api/matches/m1/leave" {
		t.Fatalf("paths = %v", paths)
	}
}

func TestFetchLobbies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"lobbies": []wire.LobbySummary{{ID: "l1", Name: "Room 1", Status: "open", PlayerCount: 2}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	lobbies, err := c.FetchLobbies()
	if err != nil {
		t.Fatalf("fetch lobbies: %v", err)
	}
	if len(lobbies) != 1 || lobbies[0].ID != "l1" {
		t.Fatalf("lobbies = %+v", lobbies)
	}
}
