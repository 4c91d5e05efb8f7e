package internalhttp

import (
	"context"
	"errors"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/ldomjan/sharedcal/internal/hub"
	"github.com/ldomjan/sharedcal/internal/storage"
	log "github.com/sirupsen/logrus"
)

// handleSocket upgrades the connection and bridges it to the hub:
// one goroutine pumps hub deliveries out, the request goroutine reads
// announcements in. The hub replays nothing, so a reconnecting client
// re-fetches the full event list itself.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request, user storage.User) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Warnf("failed to upgrade connection: %v", err)
		return
	}

	connID := uuid.NewString()
	deliveries := s.hub.Subscribe(connID)
	log.WithField("conn", connID).WithField("user", user.Username).Info("socket connected")

	go func() {
		for env := range deliveries {
			if err := wsutil.WriteServerMessage(conn, ws.OpText, env.Encode()); err != nil {
				log.Debugf("failed to write to socket %s: %v", connID, err)
				conn.Close()
				return
			}
		}
		conn.Close()
	}()

	defer func() {
		s.hub.Unsubscribe(connID)
		conn.Close()
		log.WithField("conn", connID).Info("socket disconnected")
	}()

	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}
		if op != ws.OpText {
			continue
		}
		env, err := hub.Decode(data)
		if err != nil {
			// Malformed payloads are dropped, never fatal to the session.
			log.Debugf("dropping malformed message from %s: %v", connID, err)
			continue
		}
		s.relay(r.Context(), connID, user, env)
	}
}

// relay verifies an inbound announcement against the store before
// fanning it out. A client can only announce what it has actually
// done through the authorized endpoints.
func (s *Server) relay(ctx context.Context, connID string, user storage.User, env hub.Envelope) {
	switch env.Type {
	case hub.TypeEventAdded, hub.TypeEventUpdated:
		if env.Event == nil {
			log.Debugf("dropping %s without event from %s", env.Type, connID)
			return
		}
		stored, err := s.app.GetEvent(ctx, env.Event.ID)
		if err != nil {
			log.Warnf("dropping %s for unknown event %q from %s", env.Type, env.Event.ID, connID)
			return
		}
		if stored.OwnerID != user.ID {
			log.Warnf("dropping %s for foreign event %q from user %s", env.Type, stored.ID, user.Username)
			return
		}
		// Fan out the stored record, not the sender's copy.
		s.hub.Broadcast(connID, hub.CalendarUpdated(stored))
	case hub.TypeEventDeleted:
		if env.EventID == "" {
			log.Debugf("dropping %s without id from %s", env.Type, connID)
			return
		}
		_, err := s.app.GetEvent(ctx, env.EventID)
		if err == nil {
			log.Warnf("dropping %s for still-present event %q from %s", env.Type, env.EventID, connID)
			return
		}
		if !errors.Is(err, storage.ErrNotFoundEvent) {
			log.Errorf("failed to verify removal of %q: %v", env.EventID, err)
			return
		}
		s.hub.Broadcast(connID, hub.EventRemoved(env.EventID))
	default:
		log.Debugf("dropping message of unknown type %q from %s", env.Type, connID)
	}
}
