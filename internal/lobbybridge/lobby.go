// Package lobbybridge implements the thin lobby subscription adjunct: a
// connection subscribes to the lobby list, is sent the current snapshot,
// and is re-sent a fresh one whenever the admin /notify/lobbies endpoint
// fires. No filtering is performed.
package lobbybridge

import (
	"log"
	"sync"

	"github.com/outpoot/editmash-hub/internal/eventbus"
	"github.com/outpoot/editmash-hub/internal/transport"
	"github.com/outpoot/editmash-hub/internal/wire"
)

// LobbyFetcher retrieves the current lobby list from the external app.
type LobbyFetcher interface {
	FetchLobbies() ([]wire.LobbySummary, error)
}

// Bridge tracks the set of connections subscribed to lobby updates.
type Bridge struct {
	mu      sync.Mutex
	subs    map[string]*transport.Client
	fetcher LobbyFetcher
	bus     *eventbus.Client
	logger  *log.Logger
}

func NewBridge(fetcher LobbyFetcher, bus *eventbus.Client, logger *log.Logger) *Bridge {
	b := &Bridge{subs: make(map[string]*transport.Client), fetcher: fetcher, bus: bus, logger: logger}
	if bus != nil {
		if err := bus.Subscribe(eventbus.SubjectLobbiesUpdated, func([]byte) { b.refreshAndBroadcast() }); err != nil {
			logger.Printf("lobbybridge: subscribe failed: %v", err)
		}
	}
	return b
}

// Subscribe adds conn to the subscriber set and replies with the current
// snapshot.
func (b *Bridge) Subscribe(conn *transport.Client) {
	b.mu.Lock()
	b.subs[conn.ID()] = conn
	b.mu.Unlock()

	lobbies, err := b.fetcher.FetchLobbies()
	if err != nil {
		b.logger.Printf("lobbybridge: fetch on subscribe failed: %v", err)
		return
	}
	conn.SendEnvelope(mustEncode(lobbies))
}

func (b *Bridge) Unsubscribe(conn *transport.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, conn.ID())
}

// RemoveConnection is called on disconnect regardless of subscription
// state; a no-op if conn was never subscribed.
func (b *Bridge) RemoveConnection(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, connID)
}

func (b *Bridge) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Notify re-fetches the lobby list and broadcasts it, then publishes
// SubjectLobbiesUpdated when an event bus is configured; the bridge's own
// subscription to that subject re-fetches and broadcasts again.
func (b *Bridge) Notify() {
	b.refreshAndBroadcast()
	if b.bus != nil {
		if err := b.bus.PublishJSON(eventbus.SubjectLobbiesUpdated, struct{}{}); err != nil {
			b.logger.Printf("lobbybridge: publish failed: %v", err)
		}
	}
}

func (b *Bridge) refreshAndBroadcast() {
	lobbies, err := b.fetcher.FetchLobbies()
	if err != nil {
		b.logger.Printf("lobbybridge: refresh failed: %v", err)
		return
	}
	payload := mustEncode(lobbies)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.subs {
		conn.SendEnvelope(payload)
	}
}

func mustEncode(lobbies []wire.LobbySummary) []byte {
	b, err := wire.Encode(wire.TypeLobbiesUpdate, wire.LobbiesUpdatePayload{Lobbies: lobbies})
	if err != nil {
		b, _ = wire.Encode(wire.TypeError, wire.ErrorPayload{Code: wire.ErrInvalidPayload, Message: err.Error()})
	}
	return b
}
