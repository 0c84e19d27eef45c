package room

import (
	"sync"
	"time"

	"github.com/outpoot/editmash-hub/internal/wire"
)

const batchWindow = 50 * time.Millisecond

// pendingDelta is the merged-so-far state for one clip within a sender's
// current coalescing window. Merging is last-write-wins per field.
type pendingDelta struct {
	shortID    uint32
	trackID    string
	startTime  *float64
	duration   *float64
	sourceIn   *float64
	properties *wire.ClipProperties
	newTrackID *string
}

func (p *pendingDelta) merge(shortID uint32, trackID string, startTime, duration, sourceIn *float64, properties *wire.ClipProperties, newTrackID *string) {
	p.shortID = shortID
	p.trackID = trackID
	if startTime != nil {
		p.startTime = startTime
	}
	if duration != nil {
		p.duration = duration
	}
	if sourceIn != nil {
		p.sourceIn = sourceIn
	}
	if properties != nil {
		if p.properties == nil {
			p.properties = properties
		} else {
			merged := p.properties.Merge(*properties)
			p.properties = &merged
		}
	}
	if newTrackID != nil {
		p.newTrackID = newTrackID
	}
}

func (p *pendingDelta) toDelta() wire.ClipDelta {
	return wire.ClipDelta{
		ShortID:    p.shortID,
		StartTime:  p.startTime,
		Duration:   p.duration,
		SourceIn:   p.sourceIn,
		Properties: p.properties,
		NewTrackID: p.newTrackID,
	}
}

// batcher coalesces one connection's clip updates into a single
// ClipBatchUpdate fired window milliseconds after the first update in a
// quiet period. It is a bandwidth optimization only — the cache has
// already applied every update by the time it fires.
type batcher struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*pendingDelta // clipID -> merged delta
	timer   *time.Timer
	onFlush func(deltas []wire.ClipDelta)
}

func newBatcher(window time.Duration, onFlush func(deltas []wire.ClipDelta)) *batcher {
	if window <= 0 {
		window = batchWindow
	}
	return &batcher{window: window, pending: make(map[string]*pendingDelta), onFlush: onFlush}
}

// add merges one clip's delta in and arms the flush timer if it is not
// already running.
func (b *batcher) add(clipID string, shortID uint32, trackID string, startTime, duration, sourceIn *float64, properties *wire.ClipProperties, newTrackID *string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.pending[clipID]
	if !ok {
		entry = &pendingDelta{}
		b.pending[clipID] = entry
	}
	entry.merge(shortID, trackID, startTime, duration, sourceIn, properties, newTrackID)

	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
}

func (b *batcher) flush() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.timer = nil
		b.mu.Unlock()
		return
	}
	deltas := make([]wire.ClipDelta, 0, len(b.pending))
	for _, p := range b.pending {
		deltas = append(deltas, p.toDelta())
	}
	b.pending = make(map[string]*pendingDelta)
	b.timer = nil
	b.mu.Unlock()

	b.onFlush(deltas)
}

// cancel discards any buffered updates without emitting them; used when
// the connection drops or the match closes.
func (b *batcher) cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.pending = make(map[string]*pendingDelta)
}
