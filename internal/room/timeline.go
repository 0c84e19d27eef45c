package room

import "github.com/outpoot/editmash-hub/internal/wire"

// timelineCache is the in-memory authoritative timeline for one match. It
// is not safe for concurrent use on its own — callers hold the owning
// room's mutex for every operation.
type timelineCache struct {
	timeline wire.Timeline
}

func newTimelineCache(t wire.Timeline) *timelineCache {
	return &timelineCache{timeline: t}
}

func (c *timelineCache) trackByID(trackID string) *wire.Track {
	for i := range c.timeline.Tracks {
		if c.timeline.Tracks[i].ID == trackID {
			return &c.timeline.Tracks[i]
		}
	}
	return nil
}

// addClip appends clip to trackID, idempotent if a clip with the same ID
// is already present on that track.
func (c *timelineCache) addClip(trackID string, clip wire.Clip) bool {
	track := c.trackByID(trackID)
	if track == nil {
		return false
	}
	for _, existing := range track.Clips {
		if existing.ID == clip.ID {
			return true
		}
	}
	track.Clips = append(track.Clips, clip)
	return true
}

// findClip searches every track for clipID, returning the owning track's
// index and the clip's index within it.
func (c *timelineCache) findClip(clipID string) (trackIdx, clipIdx int, ok bool) {
	for ti := range c.timeline.Tracks {
		for ci := range c.timeline.Tracks[ti].Clips {
			if c.timeline.Tracks[ti].Clips[ci].ID == clipID {
				return ti, ci, true
			}
		}
	}
	return 0, 0, false
}

// updateClip applies partial changes to clipID, moving it to newTrackID
// first if that differs from its current track.
func (c *timelineCache) updateClip(clipID, newTrackID string, changes wire.ClipUpdateSet) (wire.Clip, bool) {
	ti, ci, ok := c.findClip(clipID)
	if !ok {
		return wire.Clip{}, false
	}
	clip := c.timeline.Tracks[ti].Clips[ci]

	if newTrackID != "" && newTrackID != c.timeline.Tracks[ti].ID {
		c.timeline.Tracks[ti].Clips = append(c.timeline.Tracks[ti].Clips[:ci], c.timeline.Tracks[ti].Clips[ci+1:]...)
		applyClipUpdateSet(&clip, changes)
		c.addClip(newTrackID, clip)
		return clip, true
	}

	applyClipUpdateSet(&clip, changes)
	c.timeline.Tracks[ti].Clips[ci] = clip
	return clip, true
}

func applyClipUpdateSet(clip *wire.Clip, changes wire.ClipUpdateSet) {
	if changes.StartTime != nil {
		clip.StartTime = *changes.StartTime
	}
	if changes.Duration != nil {
		clip.Duration = *changes.Duration
	}
	if changes.SourceIn != nil {
		clip.SourceIn = *changes.SourceIn
	}
	if changes.Properties != nil {
		clip.Properties = clip.Properties.Merge(*changes.Properties)
	}
}

// applyDelta applies a ClipDelta (the ClipBatchUpdate shape) to the clip
// clipID, addressed by full ID rather than short ID — callers resolve the
// short ID first via the allocator.
func (c *timelineCache) applyDelta(clipID, newTrackID string, delta wire.ClipDelta) (wire.Clip, bool) {
	set := wire.ClipUpdateSet{
		StartTime:  delta.StartTime,
		Duration:   delta.Duration,
		SourceIn:   delta.SourceIn,
		Properties: delta.Properties,
	}
	return c.updateClip(clipID, newTrackID, set)
}

// removeClip deletes clipID from whichever track holds it.
func (c *timelineCache) removeClip(clipID string) (wire.Clip, bool) {
	ti, ci, ok := c.findClip(clipID)
	if !ok {
		return wire.Clip{}, false
	}
	clip := c.timeline.Tracks[ti].Clips[ci]
	c.timeline.Tracks[ti].Clips = append(c.timeline.Tracks[ti].Clips[:ci], c.timeline.Tracks[ti].Clips[ci+1:]...)
	return clip, true
}

// split replaces the original clip in place with its mutated (shortened)
// form and appends the new second half to the same track.
func (c *timelineCache) split(trackID string, mutatedOriginal, newClip wire.Clip) bool {
	track := c.trackByID(trackID)
	if track == nil {
		return false
	}
	for i := range track.Clips {
		if track.Clips[i].ID == mutatedOriginal.ID {
			track.Clips[i] = mutatedOriginal
			track.Clips = append(track.Clips, newClip)
			return true
		}
	}
	return false
}

// zoneClips returns, per track, only the clips overlapping [start,end].
func (c *timelineCache) zoneClips(start, end float64) []wire.Track {
	out := make([]wire.Track, 0, len(c.timeline.Tracks))
	for _, track := range c.timeline.Tracks {
		filtered := wire.Track{ID: track.ID, Type: track.Type}
		for _, clip := range track.Clips {
			if clipOverlaps(clip, start, end) {
				filtered.Clips = append(filtered.Clips, clip)
			}
		}
		out = append(out, filtered)
	}
	return out
}

func clipOverlaps(clip wire.Clip, start, end float64) bool {
	return clip.EndTime() >= start && clip.StartTime <= end
}

func (c *timelineCache) replace(t wire.Timeline) { c.timeline = t }

func (c *timelineCache) snapshot() wire.Timeline { return c.timeline }

func (c *timelineCache) duration() float64 { return c.timeline.Duration }
