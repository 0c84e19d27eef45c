package room

import "github.com/outpoot/editmash-hub/internal/wire"

// clipIDAllocator is the per-match bijection between client-generated full
// string clip IDs and the 32-bit short IDs the server mints so later
// updates can reference a clip in 4 bytes instead of ~32. Short IDs are
// never reused within a match, even after the clip is removed.
type clipIDAllocator struct {
	fullToShort map[string]uint32
	shortToFull map[uint32]shortIDEntry
	nextShort   uint32
}

type shortIDEntry struct {
	fullID  string
	trackID string
	kind    wire.ClipKind
}

func newClipIDAllocator() *clipIDAllocator {
	return &clipIDAllocator{
		fullToShort: make(map[string]uint32),
		shortToFull: make(map[uint32]shortIDEntry),
		nextShort:   1,
	}
}

// allocate returns the existing short ID for fullID, minting one on first
// sight. The bool return reports whether a new mapping was created, so
// callers know whether a ClipIdMapping broadcast is owed.
func (a *clipIDAllocator) allocate(fullID, trackID string, kind wire.ClipKind) (uint32, bool) {
	if short, ok := a.fullToShort[fullID]; ok {
		return short, false
	}
	short := a.nextShort
	a.nextShort++
	a.fullToShort[fullID] = short
	a.shortToFull[short] = shortIDEntry{fullID: fullID, trackID: trackID, kind: kind}
	return short, true
}

func (a *clipIDAllocator) lookupShort(fullID string) (uint32, bool) {
	short, ok := a.fullToShort[fullID]
	return short, ok
}

func (a *clipIDAllocator) lookupFull(short uint32) (fullID, trackID string, kind wire.ClipKind, ok bool) {
	entry, ok := a.shortToFull[short]
	return entry.fullID, entry.trackID, entry.kind, ok
}

// retrack updates the cached track for a clip that moved, without changing
// its short/full ID binding.
func (a *clipIDAllocator) retrack(short uint32, newTrackID string) {
	if entry, ok := a.shortToFull[short]; ok {
		entry.trackID = newTrackID
		a.shortToFull[short] = entry
	}
}

// release drops the mapping for a removed clip. The short ID itself is
// never handed out again since nextShort only moves forward.
func (a *clipIDAllocator) release(fullID string) {
	if short, ok := a.fullToShort[fullID]; ok {
		delete(a.fullToShort, fullID)
		delete(a.shortToFull, short)
	}
}

func (a *clipIDAllocator) mapping(short uint32) wire.ClipIDMapping {
	entry := a.shortToFull[short]
	return wire.ClipIDMapping{ShortID: short, FullID: entry.fullID, TrackID: entry.trackID, Kind: entry.kind}
}
