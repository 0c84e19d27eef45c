package room

import "github.com/outpoot/editmash-hub/internal/wire"

const zoneBuffer = 2.0 // seconds

// zone is a connection's subscribed time window on the timeline. A
// connection with no entry in the owning map gets the full timeline, i.e.
// no filtering.
type zone struct {
	start float64
	end   float64
}

// overlaps reports whether clip intersects [z.start-buffer, z.end+buffer].
func (z zone) overlaps(clip wire.Clip) bool {
	return clip.EndTime() >= z.start-zoneBuffer && clip.StartTime <= z.end+zoneBuffer
}
