package room

import (
	"fmt"
	"log"
	"sync"

	"github.com/outpoot/editmash-hub/internal/metrics"
	"github.com/outpoot/editmash-hub/internal/transport"
)

// Manager owns every open match room, keyed by matchId. A room is created
// lazily on first join and torn down when its last member leaves.
type Manager struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	external ExternalClient
	metrics  *metrics.Metrics
	logger   *log.Logger
	opts     Options

	// connMatch tracks which matchId each connection currently belongs to;
	// Join scans it to evict the same user's connections from other matches.
	connMatch map[string]string
}

func NewManager(external ExternalClient, m *metrics.Metrics, logger *log.Logger, opts Options) *Manager {
	return &Manager{
		rooms:     make(map[string]*Room),
		external:  external,
		metrics:   m,
		logger:    logger,
		opts:      opts,
		connMatch: make(map[string]string),
	}
}

// roomFor returns the existing room for matchID, or lazily creates one by
// fetching the match's current timeline from the external app.
func (mgr *Manager) roomFor(matchID string) (*Room, error) {
	mgr.mu.Lock()
	if r, ok := mgr.rooms[matchID]; ok {
		mgr.mu.Unlock()
		return r, nil
	}
	mgr.mu.Unlock()

	timeline, err := mgr.external.FetchTimeline(matchID)
	if err != nil {
		return nil, fmt.Errorf("fetch timeline for %s: %w", matchID, err)
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if r, ok := mgr.rooms[matchID]; ok {
		return r, nil
	}
	r := newRoom(matchID, timeline, mgr.external, mgr.metrics, mgr.logger, mgr.opts, mgr.onRoomEmpty)
	mgr.rooms[matchID] = r
	mgr.metrics.RoomOpened()
	return r, nil
}

func (mgr *Manager) onRoomEmpty(matchID string) {
	mgr.mu.Lock()
	delete(mgr.rooms, matchID)
	mgr.mu.Unlock()
	mgr.metrics.RoomClosed()
}

// Get returns the room for matchID if it is currently open.
func (mgr *Manager) Get(matchID string) (*Room, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	r, ok := mgr.rooms[matchID]
	return r, ok
}

// Join finds or lazily creates the room for matchID, evicts any other
// connection of this user from whichever match it currently occupies,
// and joins conn to it.
func (mgr *Manager) Join(conn *transport.Client, matchID, userID, username, userImage, highlightColor string) error {
	r, err := mgr.roomFor(matchID)
	if err != nil {
		return err
	}

	mgr.mu.Lock()
	if prevMatch, ok := mgr.connMatch[conn.ID()]; ok && prevMatch != matchID {
		if prevRoom, ok := mgr.rooms[prevMatch]; ok {
			prevRoom.evictMember(conn.ID())
		}
	}
	for connID, otherMatch := range mgr.connMatch {
		if connID == conn.ID() {
			continue
		}
		or, ok := mgr.rooms[otherMatch]
		if !ok {
			continue
		}
		if existingUserID, ok := or.memberUserID(connID); ok && existingUserID == userID {
			or.evictMember(connID)
			delete(mgr.connMatch, connID)
		}
	}
	mgr.connMatch[conn.ID()] = matchID
	mgr.mu.Unlock()

	return r.Join(conn, userID, username, userImage, highlightColor)
}

// Leave removes conn from whatever match it is tracked under.
func (mgr *Manager) Leave(conn *transport.Client) {
	mgr.mu.Lock()
	matchID, ok := mgr.connMatch[conn.ID()]
	delete(mgr.connMatch, conn.ID())
	mgr.mu.Unlock()
	if !ok {
		return
	}
	if r, ok := mgr.Get(matchID); ok {
		r.Leave(conn)
	}
}

func (mgr *Manager) RoomCount() int {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return len(mgr.rooms)
}
