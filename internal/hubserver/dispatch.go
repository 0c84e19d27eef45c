package hubserver

import (
	"github.com/outpoot/editmash-hub/internal/transport"
	"github.com/outpoot/editmash-hub/internal/wire"
)

// Dispatch implements transport.Dispatcher, routing a decoded envelope to
// the lobby bridge or the owning match room. Unknown message types and
// payload decode failures are reported back to the sender, never dropped
// silently.
func (s *Server) Dispatch(c *transport.Client, env wire.Envelope) {
	switch env.Type {
	case wire.TypeSubscribeLobbies:
		s.lobbies.Subscribe(c)

	case wire.TypeUnsubscribeLobbies:
		s.lobbies.Unsubscribe(c)

	case wire.TypeJoinMatch:
		var p wire.JoinMatchPayload
		if !s.decode(c, env, &p) {
			return
		}
		c.BindUser(p.UserID, p.Username)
		s.registry.Register(c)
		if err := s.rooms.Join(c, p.MatchID, p.UserID, p.Username, p.UserImage, p.HighlightColor); err != nil {
			s.logger.Printf("hubserver: join %s/%s failed: %v", p.MatchID, p.UserID, err)
			c.SendEnvelope(wire.EncodeError(wire.ErrInvalidPayload, "could not join match"))
		}

	case wire.TypeLeaveMatch:
		s.rooms.Leave(c)

	case wire.TypeMediaUploaded:
		var p wire.MediaUploadedPayload
		if !s.decode(c, env, &p) {
			return
		}
		if r, ok := s.rooms.Get(p.MatchID); ok {
			r.HandleMediaUploaded(c, p)
		}

	case wire.TypeMediaRemoved:
		var p wire.MediaRemovedPayload
		if !s.decode(c, env, &p) {
			return
		}
		if r, ok := s.rooms.Get(p.MatchID); ok {
			r.HandleMediaRemoved(c, p)
		}

	case wire.TypeClipAdded:
		var p wire.ClipAddedPayload
		if !s.decode(c, env, &p) {
			return
		}
		if r, ok := s.rooms.Get(p.MatchID); ok {
			r.HandleClipAdded(c, p)
		}

	case wire.TypeClipUpdated:
		var p wire.ClipUpdatedPayload
		if !s.decode(c, env, &p) {
			return
		}
		if r, ok := s.rooms.Get(p.MatchID); ok {
			r.HandleClipUpdated(c, p)
		}

	case wire.TypeClipRemoved:
		var p wire.ClipRemovedPayload
		if !s.decode(c, env, &p) {
			return
		}
		if r, ok := s.rooms.Get(p.MatchID); ok {
			r.HandleClipRemoved(c, p)
		}

	case wire.TypeClipSplit:
		var p wire.ClipSplitPayload
		if !s.decode(c, env, &p) {
			return
		}
		if r, ok := s.rooms.Get(p.MatchID); ok {
			r.HandleClipSplit(c, p)
		}

	case wire.TypeClipBatchUpdate:
		var p wire.ClipBatchUpdatePayload
		if !s.decode(c, env, &p) {
			return
		}
		if r, ok := s.rooms.Get(p.MatchID); ok {
			r.HandleClipBatchUpdate(c, p)
		}

	case wire.TypeClipSelection:
		var p wire.ClipSelectionPayload
		if !s.decode(c, env, &p) {
			return
		}
		if r, ok := s.rooms.Get(p.MatchID); ok {
			r.HandleClipSelection(c, p)
		}

	case wire.TypeZoneSubscribe:
		var p wire.ZoneSubscribePayload
		if !s.decode(c, env, &p) {
			return
		}
		if r, ok := s.rooms.Get(p.MatchID); ok {
			r.HandleZoneSubscribe(c, p)
		}

	case wire.TypeChatMessage:
		var p wire.ChatMessagePayload
		if !s.decode(c, env, &p) {
			return
		}
		if r, ok := s.rooms.Get(p.MatchID); ok {
			r.HandleChatMessage(c, p.Message)
		}

	case wire.TypeTimelineSync:
		var p wire.TimelineSyncPayload
		if !s.decode(c, env, &p) {
			return
		}
		if r, ok := s.rooms.Get(p.MatchID); ok {
			r.HandleTimelineSync(p)
		}

	default:
		c.SendEnvelope(wire.EncodeError(wire.ErrInvalidMessage, "unknown message type: "+string(env.Type)))
	}
}

func (s *Server) decode(c *transport.Client, env wire.Envelope, dst interface{}) bool {
	if err := wire.DecodePayload(env, dst); err != nil {
		c.SendEnvelope(wire.EncodeError(wire.ErrInvalidPayload, err.Error()))
		return false
	}
	return true
}

// HandleDisconnect implements transport.Dispatcher, tearing down every
// piece of per-connection state once the socket is gone.
func (s *Server) HandleDisconnect(c *transport.Client) {
	s.registry.Unregister(c)
	s.rooms.Leave(c)
	s.lobbies.RemoveConnection(c.ID())
}
