package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mindbridge/peerchat-server/internal/broker"
	apperrors "github.com/mindbridge/peerchat-server/internal/errors"
	"github.com/mindbridge/peerchat-server/internal/matching"
	"github.com/mindbridge/peerchat-server/internal/middleware"
	"github.com/mindbridge/peerchat-server/internal/room"
)

const heartbeatInterval = 30 * time.Second

// Handler upgrades authenticated connections and speaks the real-time event
// protocol: match requests in, match/room/message events out.
type Handler struct {
	engine        *matching.Engine
	rooms         *room.Coordinator
	broker        *broker.Broker
	allowedOrigin string
}

func NewHandler(engine *matching.Engine, rooms *room.Coordinator, b *broker.Broker, allowedOrigin string) *Handler {
	return &Handler{
		engine:        engine,
		rooms:         rooms,
		broker:        b,
		allowedOrigin: allowedOrigin,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	opts := &websocket.AcceptOptions{}
	if h.allowedOrigin != "" {
		opts.OriginPatterns = []string{h.allowedOrigin}
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		log.Warn().Err(err).Str("userId", user.ID).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	connID := uuid.NewString()
	log.Info().Str("userId", user.ID).Str("connId", connID).Msg("websocket connected")

	client := h.broker.Subscribe(user.ID)
	defer h.broker.Unsubscribe(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A dropped connection immediately and irrevocably ends any active
	// session and any waiting entry. Both calls are idempotent, so an
	// explicit leave or cancel beforehand is fine.
	defer func() {
		h.rooms.Leave(context.Background(), connID, "peer disconnected")
		h.engine.CancelMatch(user.ID)
		log.Info().Str("userId", user.ID).Str("connId", connID).Msg("websocket disconnected")
	}()

	go h.writePump(ctx, cancel, conn, connID, client)

	for {
		var ev ClientEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return
		}
		h.handle(ctx, conn, connID, user.ID, ev)
	}
}

// writePump forwards broker events to the socket and keeps the connection
// alive with pings.
func (h *Handler) writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, connID string, client *broker.Client) {
	defer cancel()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done:
			return
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, event); err != nil {
				return
			}
			if event.Type == broker.EventSessionEnded {
				// The peer (possibly on another instance) ended the session;
				// drop our local membership so no further relay goes through.
				h.rooms.Evict(connID)
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handle(ctx context.Context, conn *websocket.Conn, connID, userID string, ev ClientEvent) {
	switch ev.Type {
	case ClientRequestMatch:
		outcome := h.engine.RequestMatch(ctx, userID, strings.TrimSpace(ev.Category), ev.Anonymous)
		switch outcome.Kind {
		case matching.OutcomeMatched:
			h.reply(ctx, conn, broker.NewEvent(broker.EventMatchFound, broker.MatchPayload{Room: outcome.Session.SessionKey}))
		case matching.OutcomeWaiting:
			h.reply(ctx, conn, broker.NewEvent(broker.EventMatchWaiting, struct{}{}))
		case matching.OutcomeFailed:
			h.reply(ctx, conn, broker.NewEvent(broker.EventMatchFailed, broker.ReasonPayload{Reason: outcome.Reason}))
		}

	case ClientCancelMatch:
		// Silent by contract; no ack.
		h.engine.CancelMatch(userID)

	case ClientJoin:
		if err := h.rooms.Join(ctx, connID, userID, ev.Room); err != nil {
			h.reply(ctx, conn, roomError(err))
			return
		}
		h.reply(ctx, conn, broker.NewEvent(broker.EventRoomJoined, broker.RoomPayload{Room: ev.Room}))

	case ClientSendMessage:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return
		}
		if err := h.rooms.Relay(ctx, connID, userID, text, ev.SystemResponse); err != nil {
			h.reply(ctx, conn, roomError(err))
		}

	case ClientLeave:
		h.rooms.Leave(ctx, connID, "peer left the conversation")

	default:
		log.Debug().Str("type", ev.Type).Str("userId", userID).Msg("unknown client event")
	}
}

func (h *Handler) reply(ctx context.Context, conn *websocket.Conn, event broker.Event) {
	if err := wsjson.Write(ctx, conn, event); err != nil {
		log.Debug().Err(err).Str("type", event.Type).Msg("websocket write failed")
	}
}

func roomError(err error) broker.Event {
	message := "room unavailable"
	if appErr, ok := apperrors.AsAppError(err); ok {
		message = appErr.Message
	}
	return broker.NewEvent(broker.EventRoomError, broker.RoomErrorPayload{Message: message})
}
