// Package room implements the match room: the per-match membership set,
// cached timeline, clip-ID allocator, constraint validation, delta
// batching, zone filtering, persistence debouncing, and chat/vote-kick.
package room

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/outpoot/editmash-hub/internal/metrics"
	"github.com/outpoot/editmash-hub/internal/transport"
	"github.com/outpoot/editmash-hub/internal/wire"
)

// ExternalClient is the subset of the external app's HTTP surface the room
// needs: config fetch (lazy, cached), timeline fetch, join/leave
// notifications and the debounced persistence push.
// The room package depends only on this interface so it stays testable
// without a live HTTP backend.
type ExternalClient interface {
	FetchConfig(matchID string) (wire.MatchConfig, error)
	FetchTimeline(matchID string) (wire.Timeline, error)
	PatchTimeline(matchID string, timeline wire.Timeline, editCount uint64) error
	NotifyJoin(matchID, userID string) error
	NotifyLeave(matchID, userID string) error
}

// member is one connection's membership in a room.
type member struct {
	conn           *transport.Client
	userID         string
	username       string
	userImage      string
	highlightColor string
	rateLimiter    *chatRateLimiter
	batcher        *batcher
}

// Options carries the config.RoomConfig tunables the room package reads,
// so it need not import config directly. The zone buffer, chat rate limit,
// chat cooldown and vote-kick expiry are package constants instead.
type Options struct {
	BatchWindow         time.Duration
	PersistenceDebounce time.Duration
	ChatHistorySize     int
}

// Room is one match's live collaboration state.
type Room struct {
	mu sync.Mutex

	matchID string
	opts    Options

	timeline  *timelineCache
	config    wire.MatchConfig
	hasConfig bool

	allocator       *clipIDAllocator
	playerClipCount map[string]int

	chat        *chatHistory
	bannedUsers map[string]bool
	activeVote  *VoteKick

	editCount uint64

	members map[string]*member // connID -> member
	zones   map[string]zone    // connID -> zone, absent = full timeline

	debouncer *persistenceDebouncer

	external ExternalClient
	metrics  *metrics.Metrics
	logger   *log.Logger

	onEmpty func(matchID string)
	closed  bool
}

func newRoom(matchID string, timeline wire.Timeline, external ExternalClient, m *metrics.Metrics, logger *log.Logger, opts Options, onEmpty func(string)) *Room {
	r := &Room{
		matchID:         matchID,
		opts:            opts,
		timeline:        newTimelineCache(timeline),
		allocator:       newClipIDAllocator(),
		playerClipCount: make(map[string]int),
		chat:            newChatHistory(opts.ChatHistorySize),
		bannedUsers:     make(map[string]bool),
		members:         make(map[string]*member),
		zones:           make(map[string]zone),
		external:        external,
		metrics:         m,
		logger:          logger,
		onEmpty:         onEmpty,
	}
	r.debouncer = newPersistenceDebouncer(opts.PersistenceDebounce, r.firePersistenceSync)
	return r
}

func (r *Room) sendTo(m *member, payload []byte) {
	m.conn.SendEnvelope(payload)
	r.metrics.IncrementMessagesSent()
}

func (r *Room) sendError(m *member, code, message string) {
	r.sendTo(m, wire.EncodeError(code, message))
}

// broadcast fans a pre-encoded frame out to every member except exclude
// (pass "" to include everyone). Must be called with r.mu held to take
// the membership snapshot, but the actual writes happen on each
// connection's own buffered channel so this does not block on I/O.
func (r *Room) broadcast(payload []byte, exclude string) {
	for connID, m := range r.members {
		if connID == exclude {
			continue
		}
		r.sendTo(m, payload)
	}
}

// broadcastZoneFiltered is broadcast restricted to members whose zone
// overlaps clip's extent. ClipBatchUpdate never goes through this path.
func (r *Room) broadcastZoneFiltered(clip wire.Clip, payload []byte, exclude string) {
	for connID, m := range r.members {
		if connID == exclude {
			continue
		}
		if z, ok := r.zones[connID]; ok && !z.overlaps(clip) {
			continue
		}
		r.sendTo(m, payload)
	}
}

func (r *Room) uniquePlayerUsernames(exclude string) map[string]string {
	out := make(map[string]string)
	for connID, m := range r.members {
		if connID == exclude {
			continue
		}
		out[m.userID] = m.username
	}
	return out
}

func (r *Room) uniquePlayerCount() int {
	seen := make(map[string]bool)
	for _, m := range r.members {
		seen[m.userID] = true
	}
	return len(seen)
}

// Join adds conn to the room under userId/username/userImage/highlightColor.
// Returns an error (already reported to the connection) if the user is
// banned.
func (r *Room) Join(conn *transport.Client, userID, username, userImage, highlightColor string) error {
	r.mu.Lock()
	if r.bannedUsers[userID] {
		r.mu.Unlock()
		r.sendError(&member{conn: conn}, wire.ErrVoteKicked, "you have been removed from this match")
		return fmt.Errorf("user %s is banned from match %s", userID, r.matchID)
	}

	m := &member{
		conn:           conn,
		userID:         userID,
		username:       username,
		userImage:      userImage,
		highlightColor: highlightColor,
		rateLimiter:    newChatRateLimiter(),
	}
	m.batcher = newBatcher(r.opts.BatchWindow, func(deltas []wire.ClipDelta) {
		r.flushBatch(conn.ID(), deltas)
	})
	r.members[conn.ID()] = m

	history := r.chat.snapshot()
	count := len(r.members)
	r.mu.Unlock()

	conn.BindUser(userID, username)

	for _, entry := range history {
		r.sendTo(m, mustEncode(wire.TypeChatBroadcast, wire.ChatBroadcastPayload{
			MatchID: r.matchID, MessageID: entry.MessageID, UserID: entry.UserID, Username: entry.Username,
			UserImage: entry.UserImage, HighlightColor: entry.HighlightColor, Message: entry.Message, Timestamp: entry.Timestamp,
		}))
	}

	r.sendTo(m, mustEncode(wire.TypePlayerCount, wire.PlayerCountPayload{MatchID: r.matchID, Count: count}))

	r.mu.Lock()
	payload := mustEncode(wire.TypePlayerJoined, wire.PlayerJoinedPayload{
		MatchID: r.matchID, UserID: userID, Username: username, UserImage: userImage, HighlightColor: highlightColor,
	})
	r.broadcast(payload, conn.ID())
	r.mu.Unlock()

	if err := r.external.NotifyJoin(r.matchID, userID); err != nil {
		r.logger.Printf("room %s: notify join for %s failed: %v", r.matchID, userID, err)
	}
	return nil
}

// Leave removes conn from the room, broadcasting PlayerLeft, and reports
// whether the room is now empty.
func (r *Room) Leave(conn *transport.Client) (empty bool) {
	r.mu.Lock()
	m, ok := r.members[conn.ID()]
	if !ok {
		r.mu.Unlock()
		return len(r.members) == 0
	}
	delete(r.members, conn.ID())
	delete(r.zones, conn.ID())
	m.batcher.cancel()

	payload := mustEncode(wire.TypePlayerLeft, wire.PlayerLeftPayload{MatchID: r.matchID, UserID: m.userID})
	r.broadcast(payload, "")
	empty = len(r.members) == 0
	if empty {
		r.debouncer.cancel()
		r.closed = true
	}
	r.mu.Unlock()

	if err := r.external.NotifyLeave(r.matchID, m.userID); err != nil {
		r.logger.Printf("room %s: notify leave for %s failed: %v", r.matchID, m.userID, err)
	}
	if empty && r.onEmpty != nil {
		r.onEmpty(r.matchID)
	}
	return empty
}

// evictMember is used by the manager when the same user joins a different
// match room while already present here.
func (r *Room) evictMember(connID string) {
	r.mu.Lock()
	m, ok := r.members[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, connID)
	delete(r.zones, connID)
	m.batcher.cancel()
	payload := mustEncode(wire.TypePlayerLeft, wire.PlayerLeftPayload{MatchID: r.matchID, UserID: m.userID})
	r.broadcast(payload, "")
	r.mu.Unlock()
}

func (r *Room) hasMember(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[connID]
	return ok
}

// memberUserID returns the application userId bound to connID, if it is
// currently a member of this room.
func (r *Room) memberUserID(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[connID]
	if !ok {
		return "", false
	}
	return m.userID, true
}

// ensureConfig returns the match's constraint config, fetching it from the
// external app on first use and caching it for the room's lifetime. Must be
// called with r.mu NOT held: the HTTP round trip happens with the lock
// released, per the room's lock/HTTP-release discipline, and the cache is
// only touched while briefly reacquiring it.
func (r *Room) ensureConfig() wire.MatchConfig {
	r.mu.Lock()
	if r.hasConfig {
		cfg := r.config
		r.mu.Unlock()
		return cfg
	}
	r.mu.Unlock()

	cfg, err := r.external.FetchConfig(r.matchID)
	if err != nil {
		// Degrade to permissive validation rather than stall a live match:
		// the spec treats an unreachable config source as "accept and
		// keep going" since a down app must not freeze an active match.
		r.logger.Printf("room %s: config fetch failed, validation degraded: %v", r.matchID, err)
		return permissiveConfig()
	}

	r.mu.Lock()
	r.config = cfg
	r.hasConfig = true
	r.mu.Unlock()
	return cfg
}

func permissiveConfig() wire.MatchConfig {
	return wire.MatchConfig{
		ClipSizeMin: 0,
		ClipSizeMax: 1 << 20,
		AudioMaxDb:  1 << 10,
	}
}

func mustEncode(t wire.MessageType, payload interface{}) []byte {
	b, err := wire.Encode(t, payload)
	if err != nil {
		b, _ = wire.Encode(wire.TypeError, wire.ErrorPayload{Code: wire.ErrInvalidPayload, Message: err.Error()})
	}
	return b
}

func (r *Room) firePersistenceSync() {
	r.mu.Lock()
	if r.closed || len(r.members) == 0 {
		r.mu.Unlock()
		return
	}
	var target *member
	for _, m := range r.members {
		target = m
		break
	}
	r.mu.Unlock()

	r.sendTo(target, mustEncode(wire.TypeRequestTimelineSync, wire.RequestTimelineSyncPayload{MatchID: r.matchID}))
}

// HandleTimelineSync applies the client-supplied authoritative timeline
// (the reply to RequestTimelineSync) and pushes it to the external app.
func (r *Room) HandleTimelineSync(payload wire.TimelineSyncPayload) {
	r.mu.Lock()
	r.timeline.replace(payload.Timeline)
	editCount := r.editCount
	r.mu.Unlock()

	start := time.Now()
	err := r.external.PatchTimeline(r.matchID, payload.Timeline, editCount)
	r.metrics.RecordPersistenceSync(time.Since(start), err)
	if err != nil {
		r.logger.Printf("room %s: timeline patch failed, will retry on next debounce: %v", r.matchID, err)
	}
}
