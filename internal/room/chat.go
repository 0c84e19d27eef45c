package room

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

const (
	chatHistoryCap      = 100
	chatRateLimitCount  = 5
	chatRateLimitWindow = 10 * time.Second
	chatCooldown        = 1 * time.Second
	chatMaxBytes        = 200
	voteKickExpiry       = 30 * time.Second
	systemUserID         = "system"
)

// ChatEntry is one retained message, user-authored or system-authored.
type ChatEntry struct {
	MessageID      string
	UserID         string
	Username       string
	UserImage      string
	HighlightColor string
	Message        string
	Timestamp      int64
}

// chatHistory is a fixed-capacity backlog. It is a plain mutex-guarded
// slice rather than a lock-free ring: chat history has many readers
// (every late joiner) rather than the single-consumer shape a lock-free
// ring is built for.
type chatHistory struct {
	mu      sync.RWMutex
	entries []ChatEntry
	cap     int
}

func newChatHistory(capacity int) *chatHistory {
	if capacity <= 0 {
		capacity = chatHistoryCap
	}
	return &chatHistory{cap: capacity}
}

func (h *chatHistory) push(e ChatEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if len(h.entries) > h.cap {
		h.entries = h.entries[len(h.entries)-h.cap:]
	}
}

func (h *chatHistory) snapshot() []ChatEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ChatEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// chatRateLimiter enforces a sliding-window message cap plus a minimum
// gap between consecutive messages, per connection.
type chatRateLimiter struct {
	mu       sync.Mutex
	times    []time.Time
	lastSent time.Time
}

func newChatRateLimiter() *chatRateLimiter { return &chatRateLimiter{} }

// allow reports whether a message sent at now should be accepted, and
// records it if so.
func (r *chatRateLimiter) allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastSent.IsZero() && now.Sub(r.lastSent) < chatCooldown {
		return false
	}

	cutoff := now.Add(-chatRateLimitWindow)
	kept := r.times[:0]
	for _, t := range r.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.times = kept

	if len(r.times) >= chatRateLimitCount {
		return false
	}

	r.times = append(r.times, now)
	r.lastSent = now
	return true
}

// sanitizeChatMessage trims, truncates, and rejects an outgoing message
// before it is ever appended to history.
func sanitizeChatMessage(raw string) (string, bool) {
	msg := strings.TrimSpace(raw)
	if msg == "" {
		return "", false
	}
	if len(msg) > chatMaxBytes {
		msg = msg[:chatMaxBytes]
	}
	return msg, true
}

func isVoteAffirmative(msg string) bool {
	lower := strings.ToLower(strings.TrimSpace(msg))
	return lower == "y" || lower == "yes"
}

func parseKickCommand(msg string) (query string, ok bool) {
	const prefix = "!kick "
	if !strings.HasPrefix(strings.ToLower(msg), prefix) {
		return "", false
	}
	return strings.TrimSpace(msg[len(prefix):]), true
}

// VoteKick is the state of one in-flight kick vote.
type VoteKick struct {
	ID              string
	TargetUserID    string
	TargetUsername  string
	InitiatorUserID string
	VotesFor        map[string]bool
	Needed          int
	StartedAt       time.Time
	expiry          *time.Timer
}

func newVoteKick(id, targetUserID, targetUsername, initiatorUserID string, uniquePlayers int) *VoteKick {
	needed := int(math.Ceil(float64(uniquePlayers-1) * 0.5))
	if needed < 1 {
		needed = 1
	}
	return &VoteKick{
		ID:              id,
		TargetUserID:    targetUserID,
		TargetUsername:  targetUsername,
		InitiatorUserID: initiatorUserID,
		VotesFor:        make(map[string]bool),
		Needed:          needed,
		StartedAt:       time.Now(),
	}
}

func (v *VoteKick) addVote(userID string) bool {
	if userID == v.TargetUserID {
		return false
	}
	v.VotesFor[userID] = true
	return true
}

func (v *VoteKick) reachedThreshold() bool { return len(v.VotesFor) >= v.Needed }

// fuzzyMatchUsername implements the exact -> prefix -> substring cascade
// the kick command uses to resolve a partial name into exactly one user.
func fuzzyMatchUsername(query string, candidates map[string]string) (userID string, matchCount int) {
	q := strings.ToLower(query)

	var exact, prefix, substr []string
	for id, name := range candidates {
		lname := strings.ToLower(name)
		switch {
		case lname == q:
			exact = append(exact, id)
		case strings.HasPrefix(lname, q):
			prefix = append(prefix, id)
		case strings.Contains(lname, q):
			substr = append(substr, id)
		}
	}

	for _, tier := range [][]string{exact, prefix, substr} {
		if len(tier) > 0 {
			if len(tier) == 1 {
				return tier[0], 1
			}
			return "", len(tier)
		}
	}
	return "", 0
}

func systemChatEntry(messageID, message string) ChatEntry {
	return ChatEntry{
		MessageID: messageID,
		UserID:    systemUserID,
		Username:  "system",
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}

func kickAmbiguousMessage(query string, count int) string {
	if count == 0 {
		return fmt.Sprintf("no user matching %q was found", query)
	}
	return fmt.Sprintf("%d users match %q, be more specific", count, query)
}
