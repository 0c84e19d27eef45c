package room

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/outpoot/editmash-hub/internal/wire"
)

// validationInput bundles everything the pure validator needs to judge one
// proposed clip state. It never reads from a room directly so it stays
// trivially testable and reusable from the add/update/split/batch paths.
type validationInput struct {
	Clip            wire.Clip
	Config          wire.MatchConfig
	TimelineDur     float64
	TrackType       wire.TrackType
	PlayerClipCount int
	IsNewClip       bool // add or split; governs the per-user cap check
}

type validationResult struct {
	Valid  bool
	Reason string
}

func reject(reason string) validationResult { return validationResult{Valid: false, Reason: reason} }

var validationOK = validationResult{Valid: true}

// validateClip runs the ordered checks in spec order. Any failing check
// short-circuits with a human-readable reason.
func validateClip(in validationInput) validationResult {
	clip := in.Clip

	if clip.Duration < in.Config.ClipSizeMin {
		return reject(fmt.Sprintf("clip duration %.3fs is shorter than minimum %.3fs", clip.Duration, in.Config.ClipSizeMin))
	}
	if clip.Duration > in.Config.ClipSizeMax {
		return reject(fmt.Sprintf("clip duration %.3fs is longer than maximum %.3fs", clip.Duration, in.Config.ClipSizeMax))
	}

	if clip.StartTime < 0 {
		return reject("clip startTime is negative")
	}
	if clip.StartTime+clip.Duration > in.TimelineDur {
		return reject("clip extends past the end of the timeline")
	}

	if clip.Kind == wire.KindAudio && clip.Properties.Volume != nil {
		db := 20 * math.Log10(math.Max(*clip.Properties.Volume, 1e-9))
		if db > in.Config.AudioMaxDb {
			return reject(fmt.Sprintf("clip volume %.1fdB exceeds cap of %.1fdB", db, in.Config.AudioMaxDb))
		}
	}

	if mismatch := trackTypeMismatch(clip.Kind, in.TrackType); mismatch != "" {
		return reject(mismatch)
	}

	if in.IsNewClip && in.Config.MaxClipsPerUser > 0 && in.PlayerClipCount >= in.Config.MaxClipsPerUser {
		return reject(fmt.Sprintf("user has reached the per-match clip cap of %d", in.Config.MaxClipsPerUser))
	}

	for _, rule := range in.Config.Constraints {
		if res := applyConstraint(rule, clip); !res.Valid {
			return res
		}
	}

	return validationOK
}

func trackTypeMismatch(kind wire.ClipKind, trackType wire.TrackType) string {
	switch trackType {
	case wire.TrackAudio:
		if kind != wire.KindAudio {
			return fmt.Sprintf("clip kind %q cannot be placed on an audio track", kind)
		}
	case wire.TrackVideo:
		if kind == wire.KindAudio {
			return "audio clips cannot be placed on a video track"
		}
	}
	return ""
}

// applyConstraint evaluates one "type:param,..." DSL rule. Unknown rule
// types are accepted (soft-fail) so a malformed rollout on the config
// side cannot brick an active match.
func applyConstraint(rule string, clip wire.Clip) validationResult {
	parts := strings.SplitN(rule, ":", 2)
	name := parts[0]
	param := ""
	if len(parts) == 2 {
		param = parts[1]
	}

	switch name {
	case "fixedClipDuration":
		want, err := parseSecondsParam(param)
		if err != nil {
			return validationOK
		}
		const tolerance = 0.010
		if math.Abs(clip.Duration-want) > tolerance {
			return reject(fmt.Sprintf("clip duration must be fixed at %.3fs", want))
		}
	case "allowedTypes":
		allowed := strings.Split(param, ",")
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimSpace(a), string(clip.Kind)) {
				return validationOK
			}
		}
		return reject(fmt.Sprintf("clip kind %q is not in allowedTypes:%s", clip.Kind, param))
	default:
		return validationOK
	}
	return validationOK
}

func parseSecondsParam(param string) (float64, error) {
	param = strings.TrimSuffix(strings.TrimSpace(param), "s")
	return strconv.ParseFloat(param, 64)
}

// validateTrackCounts checks a track list against the config's per-type
// track limits. It is a standalone check: validateClip, the config fetch
// and the room's handlers do not call it, so track counts are not enforced
// on live matches.
func validateTrackCounts(tracks []wire.Track, cfg wire.MatchConfig) validationResult {
	var videoCount, audioCount int
	for _, t := range tracks {
		if t.Type == wire.TrackVideo {
			videoCount++
		} else {
			audioCount++
		}
	}
	if cfg.MaxVideoTracks > 0 && videoCount > cfg.MaxVideoTracks {
		return reject(fmt.Sprintf("match has %d video tracks, exceeding limit of %d", videoCount, cfg.MaxVideoTracks))
	}
	if cfg.MaxAudioTracks > 0 && audioCount > cfg.MaxAudioTracks {
		return reject(fmt.Sprintf("match has %d audio tracks, exceeding limit of %d", audioCount, cfg.MaxAudioTracks))
	}
	return validationOK
}

// validateClipSplit validates both halves of a split under one pass so the
// cache never applies a half-legal cut.
func validateClipSplit(original, newClip wire.Clip, cfg wire.MatchConfig, timelineDur float64, trackType wire.TrackType, playerClipCount int) validationResult {
	if res := validateClip(validationInput{Clip: original, Config: cfg, TimelineDur: timelineDur, TrackType: trackType, PlayerClipCount: playerClipCount}); !res.Valid {
		return res
	}
	return validateClip(validationInput{Clip: newClip, Config: cfg, TimelineDur: timelineDur, TrackType: trackType, PlayerClipCount: playerClipCount, IsNewClip: true})
}
