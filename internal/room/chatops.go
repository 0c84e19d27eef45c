package room

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/outpoot/editmash-hub/internal/transport"
	"github.com/outpoot/editmash-hub/internal/wire"
)

// flushBatch is the batcher's onFlush callback: it broadcasts the
// coalesced deltas of one connection's batch window as a single
// ClipBatchUpdate to everyone else.
func (r *Room) flushBatch(connID string, deltas []wire.ClipDelta) {
	r.mu.Lock()
	m, ok := r.members[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.metrics.RecordBatchFlush(len(deltas))
	payload := mustEncode(wire.TypeClipBatchUpdate, wire.ClipBatchUpdatePayload{
		MatchID: r.matchID, Updates: deltas, UpdatedBy: m.userID,
	})
	r.broadcast(payload, connID)
	r.mu.Unlock()
}

// HandleChatMessage sanitizes, rate-limits, and either treats the message
// as a !kick command, a vote, or a normal broadcast chat message.
func (r *Room) HandleChatMessage(conn *transport.Client, raw string) {
	r.mu.Lock()
	m, ok := r.members[conn.ID()]
	if !ok {
		r.mu.Unlock()
		r.sendError(&member{conn: conn}, wire.ErrNotInMatch, "join the match before sending chat")
		return
	}

	msg, ok := sanitizeChatMessage(raw)
	if !ok {
		r.mu.Unlock()
		return
	}
	if !m.rateLimiter.allow(time.Now()) {
		r.mu.Unlock()
		r.metrics.RecordChatRateLimit()
		r.sendError(m, wire.ErrRateLimited, "you are sending messages too quickly")
		return
	}

	if query, isKick := parseKickCommand(msg); isKick {
		r.handleKickCommandLocked(conn.ID(), m, query)
		r.mu.Unlock()
		return
	}

	if isVoteAffirmative(msg) && r.activeVote != nil {
		r.handleVoteLocked(m)
		r.mu.Unlock()
		return
	}

	r.metrics.RecordChatMessage()
	entry := ChatEntry{
		MessageID: uuid.NewString(), UserID: m.userID, Username: m.username,
		UserImage: m.userImage, HighlightColor: m.highlightColor, Message: msg, Timestamp: time.Now().UnixMilli(),
	}
	r.chat.push(entry)
	payload := mustEncode(wire.TypeChatBroadcast, wire.ChatBroadcastPayload{
		MatchID: r.matchID, MessageID: entry.MessageID, UserID: entry.UserID, Username: entry.Username,
		UserImage: entry.UserImage, HighlightColor: entry.HighlightColor, Message: entry.Message, Timestamp: entry.Timestamp,
	})
	r.broadcast(payload, "")
	r.mu.Unlock()
}

func (r *Room) systemBroadcastLocked(message string) {
	entry := systemChatEntry(uuid.NewString(), message)
	r.chat.push(entry)
	payload := mustEncode(wire.TypeChatBroadcast, wire.ChatBroadcastPayload{
		MatchID: r.matchID, MessageID: entry.MessageID, UserID: entry.UserID, Username: entry.Username,
		Message: entry.Message, Timestamp: entry.Timestamp,
	})
	r.broadcast(payload, "")
}

// handleKickCommandLocked resolves the !kick target and either arms a new
// vote or executes immediately when only one vote is needed.
func (r *Room) handleKickCommandLocked(initiatorConnID string, initiator *member, query string) {
	if r.activeVote != nil {
		r.sendTo(initiator, mustEncode(wire.TypeChatBroadcast, wire.ChatBroadcastPayload{
			MatchID: r.matchID, MessageID: uuid.NewString(), UserID: systemUserID, Username: "system",
			Message: "a vote-kick is already in progress", Timestamp: time.Now().UnixMilli(),
		}))
		return
	}

	candidates := r.uniquePlayerUsernames(initiatorConnID)
	targetUserID, count := fuzzyMatchUsername(query, candidates)
	if count != 1 {
		r.systemBroadcastLocked(kickAmbiguousMessage(query, count))
		return
	}

	vote := newVoteKick(uuid.NewString(), targetUserID, candidates[targetUserID], initiator.userID, r.uniquePlayerCount())
	vote.addVote(initiator.userID)
	r.metrics.RecordVoteKickStarted()

	if vote.reachedThreshold() {
		r.executeVoteKickLocked(vote)
		return
	}

	r.activeVote = vote
	voteID := vote.ID
	vote.expiry = time.AfterFunc(voteKickExpiry, func() { r.onVoteExpiry(voteID) })
	r.systemBroadcastLocked(vote.TargetUsername + " is up for a vote-kick. Type 'y' or 'yes' to vote, needed: " + strconv.Itoa(vote.Needed))
}

func (r *Room) handleVoteLocked(voter *member) {
	vote := r.activeVote
	if vote == nil {
		return
	}
	if voter.userID == vote.TargetUserID {
		r.sendTo(voter, mustEncode(wire.TypeChatBroadcast, wire.ChatBroadcastPayload{
			MatchID: r.matchID, MessageID: uuid.NewString(), UserID: systemUserID, Username: "system",
			Message: "you cannot vote on your own kick", Timestamp: time.Now().UnixMilli(),
		}))
		return
	}
	if !vote.addVote(voter.userID) {
		return
	}
	if vote.reachedThreshold() {
		r.executeVoteKickLocked(vote)
	}
}

func (r *Room) executeVoteKickLocked(vote *VoteKick) {
	if vote.expiry != nil {
		vote.expiry.Stop()
	}
	r.bannedUsers[vote.TargetUserID] = true
	r.activeVote = nil
	r.metrics.RecordVoteKickSucceeded()
	r.systemBroadcastLocked(vote.TargetUsername + " was voted out of the match")

	for connID, m := range r.members {
		if m.userID != vote.TargetUserID {
			continue
		}
		r.sendError(m, wire.ErrVoteKicked, "you were voted out of this match")
		m.conn.Close()
		delete(r.members, connID)
		delete(r.zones, connID)
		m.batcher.cancel()
	}
}

// onVoteExpiry clears an active vote if it is still the one identified by
// voteID; idempotent against a vote that already resolved.
func (r *Room) onVoteExpiry(voteID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeVote == nil || r.activeVote.ID != voteID {
		return
	}
	target := r.activeVote.TargetUsername
	r.activeVote = nil
	r.systemBroadcastLocked("the vote-kick against " + target + " expired without reaching the threshold")
}
