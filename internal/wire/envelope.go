// Package wire defines the binary-framed message envelope shared by every
// client and server message, and the domain types carried inside it.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType discriminates the payload carried in an Envelope.
type MessageType string

const (
	TypePing  MessageType = "ping"
	TypePong  MessageType = "pong"

	TypeSubscribeLobbies   MessageType = "subscribeLobbies"
	TypeUnsubscribeLobbies MessageType = "unsubscribeLobbies"
	TypeLobbiesUpdate      MessageType = "lobbiesUpdate"

	TypeJoinMatch  MessageType = "joinMatch"
	TypeLeaveMatch MessageType = "leaveMatch"

	TypeMediaUploaded MessageType = "mediaUploaded"
	TypeMediaRemoved  MessageType = "mediaRemoved"

	TypeClipAdded       MessageType = "clipAdded"
	TypeClipUpdated     MessageType = "clipUpdated"
	TypeClipRemoved     MessageType = "clipRemoved"
	TypeClipSplit       MessageType = "clipSplit"
	TypeClipBatchUpdate MessageType = "clipBatchUpdate"
	TypeClipIdMapping   MessageType = "clipIdMapping"
	TypeClipSelection   MessageType = "clipSelection"

	TypeZoneSubscribe MessageType = "zoneSubscribe"
	TypeZoneClips     MessageType = "zoneClips"

	TypeTimelineSync        MessageType = "timelineSync"
	TypeRequestTimelineSync MessageType = "requestTimelineSync"

	TypeChatMessage   MessageType = "chatMessage"
	TypeChatBroadcast MessageType = "chatBroadcast"

	TypePlayerCount  MessageType = "playerCount"
	TypePlayerJoined MessageType = "playerJoined"
	TypePlayerLeft   MessageType = "playerLeft"
	TypeMatchStatus  MessageType = "matchStatus"

	TypeError MessageType = "error"
)

// Error codes returned in Envelope{Type: TypeError} payloads.
const (
	ErrNotInMatch          = "NOT_IN_MATCH"
	ErrNotAuthenticated    = "NOT_AUTHENTICATED"
	ErrTrackTypeMismatch   = "TRACK_TYPE_MISMATCH"
	ErrConstraintViolation = "CONSTRAINT_VIOLATION"
	ErrInvalidMessage      = "INVALID_MESSAGE"
	ErrInvalidPayload      = "INVALID_PAYLOAD"
	ErrRateLimited         = "RATE_LIMITED"
	ErrVoteKicked          = "VOTE_KICKED"
)

// Envelope is the single discriminated union every frame is wrapped in.
// Payload is kept as raw JSON until the type is known, matching the
// two-stage decode used for NATS messages in the teacher's pkg/nats client.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Encode serializes a payload into a timestamped Envelope.
func Encode(msgType MessageType, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("wire: marshal payload for %s: %w", msgType, err)
		}
		raw = b
	}

	env := Envelope{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Payload:   raw,
	}

	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal envelope for %s: %w", msgType, err)
	}
	return b, nil
}

// Decode parses the outer envelope without touching the payload.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("wire: decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("wire: decode envelope: missing type")
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into dst.
func DecodePayload(env Envelope, dst interface{}) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("wire: %s: empty payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("wire: %s: decode payload: %w", env.Type, err)
	}
	return nil
}

// ErrorPayload is carried by TypeError envelopes.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeError builds a ready-to-send Error envelope.
func EncodeError(code, message string) []byte {
	b, err := Encode(TypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		// Encoding a two-field string struct cannot fail; this only
		// guards against a future payload change that could.
		b, _ = json.Marshal(Envelope{Type: TypeError, Timestamp: time.Now().UnixMilli()})
	}
	return b
}
