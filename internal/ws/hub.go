package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mtan/parley/internal/auth"
	"github.com/mtan/parley/internal/middleware"
	"github.com/mtan/parley/internal/store"
	log "github.com/sirupsen/logrus"
)

// Hub owns the realtime surface: it authenticates handshakes, tracks
// presence and routes events between connections and their handlers.
type Hub struct {
	store    store.Store
	auth     *auth.Service
	presence *Presence
	upgrader websocket.Upgrader
}

func NewHub(st store.Store, authSvc *auth.Service, allowedOrigin string) *Hub {
	return &Hub{
		store:    st,
		auth:     authSvc,
		presence: NewPresence(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Presence exposes the registry for components that fan out events.
func (h *Hub) Presence() *Presence { return h.presence }

// ServeWS authenticates and upgrades one websocket connection, then runs
// its read loop until the transport closes.
//
// The token is checked before the upgrade: a connection that fails
// authentication is rejected with 401 and never reaches the registry.
// All later trust derives from the user resolved here, since frames
// carry no credential of their own.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.BearerToken(r)
	}

	user, err := h.auth.VerifyToken(r.Context(), token)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("websocket upgrade failed")
		return
	}

	client := newClient(user.ID, conn)
	// A new login displaces the previous handle. The old connection is
	// not forcibly closed; it just stops receiving pushes.
	h.presence.Attach(user.ID, client)

	// The request context dies with this handler; lifecycle writes use
	// their own.
	if err := h.store.SetLastSeen(context.Background(), user.ID, nil); err != nil {
		log.WithField("user", user.ID).WithError(err).Error("failed to mark user online")
	}

	sess := &session{store: h.store, presence: h.presence, user: user, out: client}
	sess.pushInitData()

	log.WithFields(log.Fields{"user": user.ID, "handle": client.HandleID()}).Debug("connection open")

	go client.writePump()
	client.readPump(sess.dispatch)

	h.presence.Detach(user.ID, client)
	now := time.Now()
	if err := h.store.SetLastSeen(context.Background(), user.ID, &now); err != nil {
		log.WithField("user", user.ID).WithError(err).Error("failed to stamp last seen")
	}
	log.WithField("user", user.ID).Debug("connection closed")
}
