package room

import (
	"github.com/outpoot/editmash-hub/internal/transport"
	"github.com/outpoot/editmash-hub/internal/wire"
)

// HandleClipAdded runs the add-clip protocol: membership, track-type
// check, validation, cache mutation, ID minting, counters, fan-out, and
// scheduling a persistence sync.
func (r *Room) HandleClipAdded(conn *transport.Client, p wire.ClipAddedPayload) {
	cfg := r.ensureConfig()

	r.mu.Lock()
	m, ok := r.members[conn.ID()]
	if !ok {
		r.mu.Unlock()
		r.sendError(&member{conn: conn}, wire.ErrNotInMatch, "join the match before sending clip events")
		return
	}

	track := r.timeline.trackByID(p.TrackID)
	if track == nil || trackTypeMismatch(p.Clip.Kind, track.Type) != "" {
		r.mu.Unlock()
		r.sendError(m, wire.ErrTrackTypeMismatch, "clip kind does not match the target track type")
		return
	}

	res := validateClip(validationInput{
		Clip: p.Clip, Config: cfg, TimelineDur: r.timeline.duration(),
		TrackType: track.Type, PlayerClipCount: r.playerClipCount[m.userID], IsNewClip: true,
	})
	if !res.Valid {
		r.mu.Unlock()
		r.metrics.RecordConstraintReject("clip_added")
		r.sendError(m, wire.ErrConstraintViolation, res.Reason)
		return
	}

	r.timeline.addClip(p.TrackID, p.Clip)
	short, minted := r.allocator.allocate(p.Clip.ID, p.TrackID, p.Clip.Kind)
	r.playerClipCount[m.userID]++
	r.editCount++
	r.metrics.RecordClipMutation("add")

	mapping := r.allocator.mapping(short)
	var mappingPayload []byte
	if minted {
		mappingPayload = mustEncode(wire.TypeClipIdMapping, wire.ClipIDMappingPayload{MatchID: r.matchID, Mappings: []wire.ClipIDMapping{mapping}})
	}
	addedPayload := mustEncode(wire.TypeClipAdded, p)

	if mappingPayload != nil {
		r.broadcast(mappingPayload, "")
	}
	r.broadcastZoneFiltered(p.Clip, addedPayload, conn.ID())
	r.mu.Unlock()

	r.debouncer.touch()
}

// HandleClipUpdated runs the update protocol, including the cross-track
// move case. The mutation is applied to the cache immediately, but the
// fan-out to other members is handed to the sender's batcher rather than
// broadcast inline, coalescing a drag's worth of updates into one
// ClipBatchUpdate sent one batch window after the first of them.
func (r *Room) HandleClipUpdated(conn *transport.Client, p wire.ClipUpdatedPayload) {
	cfg := r.ensureConfig()

	r.mu.Lock()
	m, ok := r.members[conn.ID()]
	if !ok {
		r.mu.Unlock()
		r.sendError(&member{conn: conn}, wire.ErrNotInMatch, "join the match before sending clip events")
		return
	}

	targetTrackID := p.TrackID
	if p.Updates.NewTrackID != nil {
		targetTrackID = *p.Updates.NewTrackID
	}
	track := r.timeline.trackByID(targetTrackID)
	if track == nil {
		r.mu.Unlock()
		r.sendError(m, wire.ErrTrackTypeMismatch, "unknown target track")
		return
	}

	if _, _, ok := r.timeline.findClip(p.ClipID); ok {
		preview := r.previewUpdatedClip(p.ClipID, p.Updates)
		res := validateClip(validationInput{
			Clip: preview, Config: cfg, TimelineDur: r.timeline.duration(), TrackType: track.Type,
		})
		if !res.Valid {
			r.mu.Unlock()
			r.metrics.RecordConstraintReject("clip_updated")
			r.sendError(m, wire.ErrConstraintViolation, res.Reason)
			return
		}
	}

	newTrackID := ""
	if p.Updates.NewTrackID != nil {
		newTrackID = *p.Updates.NewTrackID
	}
	clip, ok := r.timeline.updateClip(p.ClipID, newTrackID, p.Updates)
	if !ok {
		r.mu.Unlock()
		return
	}
	if newTrackID != "" {
		if short, ok := r.allocator.lookupShort(p.ClipID); ok {
			r.allocator.retrack(short, newTrackID)
		}
	}
	r.editCount++
	r.metrics.RecordClipMutation("update")

	short, minted := r.allocator.allocate(p.ClipID, targetTrackID, clip.Kind)
	if minted {
		mapping := r.allocator.mapping(short)
		r.broadcast(mustEncode(wire.TypeClipIdMapping, wire.ClipIDMappingPayload{MatchID: r.matchID, Mappings: []wire.ClipIDMapping{mapping}}), "")
	}
	m.batcher.add(p.ClipID, short, targetTrackID, p.Updates.StartTime, p.Updates.Duration, p.Updates.SourceIn, p.Updates.Properties, p.Updates.NewTrackID)
	r.mu.Unlock()

	r.debouncer.touch()
}

func (r *Room) previewUpdatedClip(clipID string, changes wire.ClipUpdateSet) wire.Clip {
	_, _, ok := r.timeline.findClip(clipID)
	if !ok {
		return wire.Clip{}
	}
	ti, ci, _ := r.timeline.findClip(clipID)
	clip := r.timeline.timeline.Tracks[ti].Clips[ci]
	applyClipUpdateSet(&clip, changes)
	return clip
}

// HandleClipRemoved runs the remove protocol.
func (r *Room) HandleClipRemoved(conn *transport.Client, p wire.ClipRemovedPayload) {
	r.mu.Lock()
	m, ok := r.members[conn.ID()]
	if !ok {
		r.mu.Unlock()
		r.sendError(&member{conn: conn}, wire.ErrNotInMatch, "join the match before sending clip events")
		return
	}

	removedClip, ok := r.timeline.removeClip(p.ClipID)
	if !ok {
		r.mu.Unlock()
		return
	}
	r.allocator.release(p.ClipID)

	if r.playerClipCount[m.userID] > 0 {
		r.playerClipCount[m.userID]--
	}
	r.editCount++
	r.metrics.RecordClipMutation("remove")

	payload := mustEncode(wire.TypeClipRemoved, p)
	r.broadcastZoneFiltered(removedClip, payload, conn.ID())
	r.mu.Unlock()

	r.debouncer.touch()
}

// HandleClipSplit validates and applies both halves of a split under one
// pass, per validateClipSplit.
func (r *Room) HandleClipSplit(conn *transport.Client, p wire.ClipSplitPayload) {
	cfg := r.ensureConfig()

	r.mu.Lock()
	m, ok := r.members[conn.ID()]
	if !ok {
		r.mu.Unlock()
		r.sendError(&member{conn: conn}, wire.ErrNotInMatch, "join the match before sending clip events")
		return
	}

	track := r.timeline.trackByID(p.TrackID)
	if track == nil {
		r.mu.Unlock()
		r.sendError(m, wire.ErrTrackTypeMismatch, "unknown target track")
		return
	}

	res := validateClipSplit(p.OriginalClip, p.NewClip, cfg, r.timeline.duration(), track.Type, r.playerClipCount[m.userID])
	if !res.Valid {
		r.mu.Unlock()
		r.metrics.RecordConstraintReject("clip_split")
		r.sendError(m, wire.ErrConstraintViolation, res.Reason)
		return
	}

	if !r.timeline.split(p.TrackID, p.OriginalClip, p.NewClip) {
		r.mu.Unlock()
		return
	}
	short, minted := r.allocator.allocate(p.NewClip.ID, p.TrackID, p.NewClip.Kind)
	r.playerClipCount[m.userID]++
	r.editCount++
	r.metrics.RecordClipMutation("split")

	if minted {
		mapping := r.allocator.mapping(short)
		r.broadcast(mustEncode(wire.TypeClipIdMapping, wire.ClipIDMappingPayload{MatchID: r.matchID, Mappings: []wire.ClipIDMapping{mapping}}), "")
	}
	payload := mustEncode(wire.TypeClipSplit, p)
	r.broadcastZoneFiltered(p.OriginalClip, payload, conn.ID())
	r.mu.Unlock()

	r.debouncer.touch()
}

// HandleClipBatchUpdate is the client-originated, short-ID-addressed form
// of bulk updates. Every delta in the batch is validated before any is
// applied (atomic all-or-nothing).
func (r *Room) HandleClipBatchUpdate(conn *transport.Client, p wire.ClipBatchUpdatePayload) {
	cfg := r.ensureConfig()

	r.mu.Lock()
	m, ok := r.members[conn.ID()]
	if !ok {
		r.mu.Unlock()
		r.sendError(&member{conn: conn}, wire.ErrNotInMatch, "join the match before sending clip events")
		return
	}

	type resolved struct {
		clipID, trackID string
		delta           wire.ClipDelta
	}
	resolvedDeltas := make([]resolved, 0, len(p.Updates))

	for _, delta := range p.Updates {
		fullID, trackID, _, ok := r.allocator.lookupFull(delta.ShortID)
		if !ok {
			r.logger.Printf("room %s: batch update references unknown short id %d, skipping", r.matchID, delta.ShortID)
			continue
		}
		targetTrack := trackID
		if delta.NewTrackID != nil {
			targetTrack = *delta.NewTrackID
		}
		track := r.timeline.trackByID(targetTrack)
		if track == nil {
			r.mu.Unlock()
			r.sendError(m, wire.ErrConstraintViolation, "batch update targets an unknown track")
			return
		}
		preview := r.previewUpdatedClip(fullID, wire.ClipUpdateSet{
			StartTime: delta.StartTime, Duration: delta.Duration, SourceIn: delta.SourceIn, Properties: delta.Properties,
		})
		res := validateClip(validationInput{Clip: preview, Config: cfg, TimelineDur: r.timeline.duration(), TrackType: track.Type})
		if !res.Valid {
			r.mu.Unlock()
			r.metrics.RecordConstraintReject("clip_batch_update")
			r.sendError(m, wire.ErrConstraintViolation, res.Reason)
			return
		}
		resolvedDeltas = append(resolvedDeltas, resolved{clipID: fullID, trackID: targetTrack, delta: delta})
	}

	for _, rd := range resolvedDeltas {
		newTrackID := ""
		if rd.delta.NewTrackID != nil {
			newTrackID = *rd.delta.NewTrackID
			r.allocator.retrack(rd.delta.ShortID, newTrackID)
		}
		r.timeline.applyDelta(rd.clipID, newTrackID, rd.delta)
	}
	r.editCount += uint64(len(resolvedDeltas))
	r.metrics.RecordBatchFlush(len(resolvedDeltas))

	payload := mustEncode(wire.TypeClipBatchUpdate, p)
	r.broadcast(payload, conn.ID())
	r.mu.Unlock()

	if len(resolvedDeltas) > 0 {
		r.debouncer.touch()
	}
}

// HandleZoneSubscribe stores conn's zone and answers with a filtered
// snapshot of the current cache.
func (r *Room) HandleZoneSubscribe(conn *transport.Client, p wire.ZoneSubscribePayload) {
	r.mu.Lock()
	m, ok := r.members[conn.ID()]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.zones[conn.ID()] = zone{start: p.StartTime, end: p.EndTime}
	tracks := r.timeline.zoneClips(p.StartTime-zoneBuffer, p.EndTime+zoneBuffer)
	r.mu.Unlock()

	r.sendTo(m, mustEncode(wire.TypeZoneClips, wire.ZoneClipsPayload{
		MatchID: r.matchID, StartTime: p.StartTime, EndTime: p.EndTime, Tracks: tracks,
	}))
}

// HandleClipSelection relays a live selection highlight to other members;
// it is opaque to the server and carries no validation.
func (r *Room) HandleClipSelection(conn *transport.Client, p wire.ClipSelectionPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[conn.ID()]; !ok {
		return
	}
	r.broadcast(mustEncode(wire.TypeClipSelection, p), conn.ID())
}

// HandleMediaUploaded and HandleMediaRemoved relay with no validation,
// per spec.
func (r *Room) HandleMediaUploaded(conn *transport.Client, p wire.MediaUploadedPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[conn.ID()]; !ok {
		return
	}
	r.broadcast(mustEncode(wire.TypeMediaUploaded, p), conn.ID())
}

func (r *Room) HandleMediaRemoved(conn *transport.Client, p wire.MediaRemovedPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[conn.ID()]; !ok {
		return
	}
	r.broadcast(mustEncode(wire.TypeMediaRemoved, p), conn.ID())
}

// BroadcastMatchStatus is invoked from the admin /notify/match endpoint.
func (r *Room) BroadcastMatchStatus(status wire.MatchStatusValue, timeRemaining *float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payload := wire.MatchStatusPayload{MatchID: r.matchID, Status: status, TimeRemaining: timeRemaining, PlayerCount: r.uniquePlayerCount()}
	r.broadcast(mustEncode(wire.TypeMatchStatus, payload), "")
}
