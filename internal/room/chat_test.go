package room

import (
	"testing"
	"time"
)

func TestChatHistoryCapsAtCapacity(t *testing.T) {
	h := newChatHistory(3)
	for i := 0; i < 5; i++ {
		h.push(ChatEntry{MessageID: string(rune('a' + i))})
	}
	entries := h.snapshot()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].MessageID != "c" {
		t.Fatalf("expected oldest entries evicted first, got %q", entries[0].MessageID)
	}
}

func TestChatRateLimiterCooldown(t *testing.T) {
	r := newChatRateLimiter()
	now := time.Now()

	if !r.allow(now) {
		t.Fatal("expected first message to be allowed")
	}
	if r.allow(now.Add(100 * time.Millisecond)) {
		t.Fatal("expected message within cooldown to be rejected")
	}
	if !r.allow(now.Add(chatCooldown + time.Millisecond)) {
		t.Fatal("expected message after cooldown to be allowed")
	}
}

func TestChatRateLimiterSlidingWindowCap(t *testing.T) {
	r := newChatRateLimiter()
	base := time.Now()

	allowed := 0
	for i := 0; i < chatRateLimitCount+2; i++ {
		t := base.Add(time.Duration(i) * (chatCooldown + time.Millisecond))
		if r.allow(t) {
			allowed++
		}
	}
	if allowed != chatRateLimitCount {
		t.Fatalf("expected exactly %d messages allowed within the window, got %d", chatRateLimitCount, allowed)
	}
}

func TestSanitizeChatMessageTruncatesAndTrims(t *testing.T) {
	long := make([]byte, chatMaxBytes+50)
	for i := range long {
		long[i] = 'x'
	}
	out, ok := sanitizeChatMessage("  " + string(long) + "  ")
	if !ok {
		t.Fatal("expected non-empty message to be accepted")
	}
	if len(out) != chatMaxBytes {
		t.Fatalf("expected truncation to %d bytes, got %d", chatMaxBytes, len(out))
	}
}

func TestSanitizeChatMessageRejectsBlank(t *testing.T) {
	if _, ok := sanitizeChatMessage("   "); ok {
		t.Fatal("expected whitespace-only message to be rejected")
	}
}

func TestParseKickCommand(t *testing.T) {
	query, ok := parseKickCommand("!kick   alice")
	if !ok || query != "alice" {
		t.Fatalf("query = %q, ok = %v", query, ok)
	}
	if _, ok := parseKickCommand("hello"); ok {
		t.Fatal("expected non-command message to not match")
	}
}

func TestFuzzyMatchUsernameCascade(t *testing.T) {
	candidates := map[string]string{"u1": "alice", "u2": "alicia", "u3": "bob"}

	if id, count := fuzzyMatchUsername("alice", candidates); count != 1 || id != "u1" {
		t.Fatalf("expected exact match to win, got id=%q count=%d", id, count)
	}
	if _, count := fuzzyMatchUsername("ali", candidates); count != 2 {
		t.Fatalf("expected ambiguous prefix match, got count=%d", count)
	}
	if id, count := fuzzyMatchUsername("bo", candidates); count != 1 || id != "u3" {
		t.Fatalf("expected prefix match to resolve uniquely, got id=%q count=%d", id, count)
	}
	if _, count := fuzzyMatchUsername("zzz", candidates); count != 0 {
		t.Fatalf("expected no match, got count=%d", count)
	}
}

func TestVoteKickThreshold(t *testing.T) {
	v := newVoteKick("vote-1", "target", "targetName", "initiator", 5)
	if v.Needed != 2 {
		t.Fatalf("needed = %d, want 2 for 5 unique players", v.Needed)
	}

	v.addVote("initiator")
	if v.reachedThreshold() {
		t.Fatal("expected threshold not reached after one vote")
	}
	v.addVote("voter2")
	if !v.reachedThreshold() {
		t.Fatal("expected threshold reached after two votes")
	}
}

func TestVoteKickCannotSelfExempt(t *testing.T) {
	v := newVoteKick("vote-1", "target", "targetName", "initiator", 3)
	if v.addVote("target") {
		t.Fatal("expected the kick target's own vote to be rejected")
	}
}
