package wire

// Client -> server payloads.

type JoinMatchPayload struct {
	MatchID        string `json:"matchId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	UserImage      string `json:"userImage,omitempty"`
	HighlightColor string `json:"highlightColor,omitempty"`
}

type LeaveMatchPayload struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
}

type MediaUploadedPayload struct {
	MatchID string          `json:"matchId"`
	Media   map[string]any  `json:"media"`
}

type MediaRemovedPayload struct {
	MatchID string `json:"matchId"`
	MediaID string `json:"mediaId"`
}

type ClipAddedPayload struct {
	MatchID string `json:"matchId"`
	TrackID string `json:"trackId"`
	Clip    Clip   `json:"clip"`
	AddedBy string `json:"addedBy"`
}

type ClipUpdatedPayload struct {
	MatchID   string         `json:"matchId"`
	TrackID   string         `json:"trackId"`
	ClipID    string         `json:"clipId"`
	Updates   ClipUpdateSet  `json:"updates"`
	UpdatedBy string         `json:"updatedBy"`
}

// ClipUpdateSet mirrors ClipDelta's optional-field shape but is addressed
// by full string ID (used by the non-batched ClipUpdated message).
type ClipUpdateSet struct {
	StartTime  *float64        `json:"startTime,omitempty"`
	Duration   *float64        `json:"duration,omitempty"`
	SourceIn   *float64        `json:"sourceIn,omitempty"`
	Properties *ClipProperties `json:"properties,omitempty"`
	NewTrackID *string         `json:"newTrackId,omitempty"`
}

type ClipRemovedPayload struct {
	MatchID   string `json:"matchId"`
	TrackID   string `json:"trackId"`
	ClipID    string `json:"clipId"`
	RemovedBy string `json:"removedBy"`
}

type ClipSplitPayload struct {
	MatchID       string `json:"matchId"`
	TrackID       string `json:"trackId"`
	OriginalClip  Clip   `json:"originalClip"`
	NewClip       Clip   `json:"newClip"`
	SplitBy       string `json:"splitBy"`
}

type ClipBatchUpdatePayload struct {
	MatchID   string      `json:"matchId"`
	Updates   []ClipDelta `json:"updates"`
	UpdatedBy string      `json:"updatedBy"`
}

type ClipIDMappingPayload struct {
	MatchID  string          `json:"matchId"`
	Mappings []ClipIDMapping `json:"mappings"`
}

type ClipSelectionPayload struct {
	MatchID        string   `json:"matchId"`
	UserID         string   `json:"userId"`
	Username       string   `json:"username"`
	UserImage      string   `json:"userImage,omitempty"`
	HighlightColor string   `json:"highlightColor"`
	SelectedClips  []string `json:"selectedClips"`
}

type ZoneSubscribePayload struct {
	MatchID   string  `json:"matchId"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

type ZoneClipsPayload struct {
	MatchID   string  `json:"matchId"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Tracks    []Track `json:"tracks"`
}

type TimelineSyncPayload struct {
	MatchID  string   `json:"matchId"`
	Timeline Timeline `json:"timeline"`
}

type RequestTimelineSyncPayload struct {
	MatchID string `json:"matchId"`
}

type ChatMessagePayload struct {
	MatchID string `json:"matchId"`
	Message string `json:"message"`
}

// Server -> client payloads.

type ChatBroadcastPayload struct {
	MatchID        string `json:"matchId"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	UserImage      string `json:"userImage,omitempty"`
	HighlightColor string `json:"highlightColor"`
	Message        string `json:"message"`
	Timestamp      int64  `json:"timestamp"`
}

type PlayerCountPayload struct {
	MatchID string `json:"matchId"`
	Count   int    `json:"count"`
}

type PlayerJoinedPayload struct {
	MatchID        string `json:"matchId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	UserImage      string `json:"userImage,omitempty"`
	HighlightColor string `json:"highlightColor"`
}

type PlayerLeftPayload struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
}

type MatchStatusPayload struct {
	MatchID       string           `json:"matchId"`
	Status        MatchStatusValue `json:"status"`
	TimeRemaining *float64         `json:"timeRemaining,omitempty"`
	PlayerCount   int              `json:"playerCount"`
}

type LobbySummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	PlayerCount int    `json:"playerCount"`
}

type LobbiesUpdatePayload struct {
	Lobbies []LobbySummary `json:"lobbies"`
}

// Guards report whether a decoded Envelope carries the given message type.
// The hub's dispatcher routes by switching on Envelope.Type directly.

func IsJoinMatch(env Envelope) bool        { return env.Type == TypeJoinMatch }
func IsLeaveMatch(env Envelope) bool       { return env.Type == TypeLeaveMatch }
func IsClipAdded(env Envelope) bool        { return env.Type == TypeClipAdded }
func IsClipUpdated(env Envelope) bool      { return env.Type == TypeClipUpdated }
func IsClipRemoved(env Envelope) bool      { return env.Type == TypeClipRemoved }
func IsClipSplit(env Envelope) bool        { return env.Type == TypeClipSplit }
func IsClipBatchUpdate(env Envelope) bool  { return env.Type == TypeClipBatchUpdate }
func IsZoneSubscribe(env Envelope) bool    { return env.Type == TypeZoneSubscribe }
func IsChatMessage(env Envelope) bool      { return env.Type == TypeChatMessage }
func IsTimelineSync(env Envelope) bool     { return env.Type == TypeTimelineSync }
func IsPing(env Envelope) bool             { return env.Type == TypePing }
