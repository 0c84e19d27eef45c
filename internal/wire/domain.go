package wire

// ClipKind is the media kind of a clip.
type ClipKind string

const (
	KindVideo ClipKind = "video"
	KindImage ClipKind = "image"
	KindAudio ClipKind = "audio"
)

// TrackType is the lane a track accepts clips for.
type TrackType string

const (
	TrackVideo TrackType = "video"
	TrackAudio TrackType = "audio"
)

// Vector2 is a 2D point or size used by visual clip properties.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zoom carries a linked/unlinked 2D zoom factor.
type Zoom struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Linked bool    `json:"linked"`
}

// Flip mirrors a clip horizontally and/or vertically.
type Flip struct {
	H bool `json:"h"`
	V bool `json:"v"`
}

// Crop trims a clip's visible rectangle from each edge, 0..1 normalized.
type Crop struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// ClipProperties is the flat kind-dependent property bag carried on the
// wire and in the cache. Fields are pointers so partial updates (deltas)
// can omit untouched fields.
type ClipProperties struct {
	// Visual (video/image)
	Position        *Vector2 `json:"position,omitempty"`
	Size            *Vector2 `json:"size,omitempty"`
	Zoom            *Zoom    `json:"zoom,omitempty"`
	Rotation        *float64 `json:"rotation,omitempty"`
	Flip            *Flip    `json:"flip,omitempty"`
	Crop            *Crop    `json:"crop,omitempty"`
	Speed           *float64 `json:"speed,omitempty"`
	FreezeFrame     *bool    `json:"freezeFrame,omitempty"`
	FreezeFrameTime *float64 `json:"freezeFrameTime,omitempty"`

	// Audio
	Volume *float64 `json:"volume,omitempty"`
	Pan    *float64 `json:"pan,omitempty"`
	Pitch  *float64 `json:"pitch,omitempty"`
}

// Merge deep-merges non-nil fields from other into a copy of p, used by
// ClipUpdated's "update can re-assert the whole clip" semantics.
func (p ClipProperties) Merge(other ClipProperties) ClipProperties {
	out := p
	if other.Position != nil {
		out.Position = other.Position
	}
	if other.Size != nil {
		out.Size = other.Size
	}
	if other.Zoom != nil {
		out.Zoom = other.Zoom
	}
	if other.Rotation != nil {
		out.Rotation = other.Rotation
	}
	if other.Flip != nil {
		out.Flip = other.Flip
	}
	if other.Crop != nil {
		out.Crop = other.Crop
	}
	if other.Speed != nil {
		out.Speed = other.Speed
	}
	if other.FreezeFrame != nil {
		out.FreezeFrame = other.FreezeFrame
	}
	if other.FreezeFrameTime != nil {
		out.FreezeFrameTime = other.FreezeFrameTime
	}
	if other.Volume != nil {
		out.Volume = other.Volume
	}
	if other.Pan != nil {
		out.Pan = other.Pan
	}
	if other.Pitch != nil {
		out.Pitch = other.Pitch
	}
	return out
}

// Clip is a semantic media span placed on a track.
type Clip struct {
	ID             string         `json:"id"`
	Kind           ClipKind       `json:"kind"`
	StartTime      float64        `json:"startTime"`
	Duration       float64        `json:"duration"`
	SourceIn       float64        `json:"sourceIn"`
	SourceDuration float64        `json:"sourceDuration"`
	Src            string         `json:"src"`
	Name           string         `json:"name"`
	Thumbnail      string         `json:"thumbnail,omitempty"`
	Properties     ClipProperties `json:"properties"`
}

// EndTime is the clip's extent on the timeline.
func (c Clip) EndTime() float64 { return c.StartTime + c.Duration }

// Track is an ordered, typed lane of clips.
type Track struct {
	ID    string    `json:"id"`
	Type  TrackType `json:"type"`
	Clips []Clip    `json:"clips"`
}

// Timeline is the full fixed-duration composition for a match.
type Timeline struct {
	Duration float64 `json:"duration"`
	Tracks   []Track `json:"tracks"`
}

// MatchConfig is fetched lazily from the external app and cached per room.
type MatchConfig struct {
	ClipSizeMin     float64  `json:"clipSizeMin"`
	ClipSizeMax     float64  `json:"clipSizeMax"`
	AudioMaxDb      float64  `json:"audioMaxDb"`
	MaxVideoTracks  int      `json:"maxVideoTracks"`
	MaxAudioTracks  int      `json:"maxAudioTracks"`
	MaxClipsPerUser int      `json:"maxClipsPerUser"`
	Constraints     []string `json:"constraints"`
}

// ClipDelta is one entry of a ClipBatchUpdate, addressed by short ID.
type ClipDelta struct {
	ShortID     uint32          `json:"shortId"`
	StartTime   *float64        `json:"startTime,omitempty"`
	Duration    *float64        `json:"duration,omitempty"`
	SourceIn    *float64        `json:"sourceIn,omitempty"`
	Properties  *ClipProperties `json:"properties,omitempty"`
	NewTrackID  *string         `json:"newTrackId,omitempty"`
}

// ClipIDMapping tells clients how a full string ID maps to a short ID.
type ClipIDMapping struct {
	ShortID uint32   `json:"shortId"`
	FullID  string   `json:"fullId"`
	TrackID string   `json:"trackId"`
	Kind    ClipKind `json:"kind"`
}

// MatchStatusValue is the lifecycle state of a match.
type MatchStatusValue string

const (
	StatusPreparing MatchStatusValue = "preparing"
	StatusActive    MatchStatusValue = "active"
	StatusCompleting MatchStatusValue = "completing"
	StatusRendering MatchStatusValue = "rendering"
	StatusCompleted MatchStatusValue = "completed"
	StatusFailed    MatchStatusValue = "failed"
)
