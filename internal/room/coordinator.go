// Package room manages real-time membership of the two participants in a
// session's channel. Membership is local connection state; the session
// ledger stays the source of truth for whether the conversation is alive.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mindbridge/peerchat-server/internal/broker"
	"github.com/mindbridge/peerchat-server/internal/config"
	apperrors "github.com/mindbridge/peerchat-server/internal/errors"
	"github.com/mindbridge/peerchat-server/internal/model"
	"github.com/mindbridge/peerchat-server/internal/repository"
	"github.com/mindbridge/peerchat-server/internal/transcript"
)

// WaitingPromoter is poked whenever a session ends, since that is the moment
// helper availability changes.
type WaitingPromoter interface {
	PromoteWaiting(ctx context.Context)
}

type roomState struct {
	session *model.Session
	members map[string]string // userID -> connID
}

type Coordinator struct {
	sessions  repository.SessionRepository
	recorder  *transcript.Recorder
	publisher broker.Publisher
	promoter  WaitingPromoter

	mu     sync.Mutex
	byConn map[string]string // connID -> sessionKey
	rooms  map[string]*roomState
}

func NewCoordinator(
	sessions repository.SessionRepository,
	recorder *transcript.Recorder,
	publisher broker.Publisher,
	promoter WaitingPromoter,
) *Coordinator {
	return &Coordinator{
		sessions:  sessions,
		recorder:  recorder,
		publisher: publisher,
		promoter:  promoter,
		byConn:    make(map[string]string),
		rooms:     make(map[string]*roomState),
	}
}

// errNotParticipant is deliberately the same for an unknown key, an ended
// session, and a key belonging to somebody else's session.
func errNotParticipant() error {
	return apperrors.Unauthorized("not a participant of this room")
}

// Join admits the connection to the session's room after validating against
// the ledger that the user is a participant of a non-ended session.
func (c *Coordinator) Join(ctx context.Context, connID, userID, sessionKey string) error {
	session, err := c.sessions.FindByKey(ctx, sessionKey)
	if err != nil {
		log.Error().Err(err).Str("sessionKey", sessionKey).Msg("room join ledger lookup failed")
		return apperrors.Internal("room unavailable")
	}
	if session == nil || session.Status == model.SessionStatusEnded || !session.IsParticipant(userID) {
		return errNotParticipant()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byConn[connID]; ok && existing != sessionKey {
		return apperrors.ValidationError("connection already joined a room")
	}

	room, ok := c.rooms[sessionKey]
	if !ok {
		room = &roomState{session: session, members: make(map[string]string)}
		c.rooms[sessionKey] = room
	}
	room.members[userID] = connID
	c.byConn[connID] = sessionKey

	log.Info().
		Str("sessionKey", sessionKey).
		Str("userId", userID).
		Msg("user joined room")
	return nil
}

// Relay broadcasts the message to the other participant's connections, never
// back to the sender, then hands it to the persistence hook. Requires the
// connection to be a room member.
func (c *Coordinator) Relay(ctx context.Context, connID, userID, text string, systemResponse *string) error {
	c.mu.Lock()
	sessionKey, ok := c.byConn[connID]
	if !ok {
		c.mu.Unlock()
		return errNotParticipant()
	}
	room := c.rooms[sessionKey]
	peerID := room.session.PeerOf(userID)
	c.mu.Unlock()

	event := broker.NewEvent(broker.EventMessageReceived, broker.MessagePayload{
		Text:   text,
		Sender: userID,
	})
	if err := c.publisher.Publish(ctx, peerID, event); err != nil {
		log.Warn().Err(err).Str("sessionKey", sessionKey).Msg("message relay publish failed")
	}

	c.recorder.Record(userID, sessionKey, text, systemResponse)
	return nil
}

// Leave ends the session for both participants. Explicit leave and abrupt
// disconnect are the same operation: no grace period, no reconnection
// window. Idempotent for connections without a room.
func (c *Coordinator) Leave(ctx context.Context, connID, reason string) {
	c.mu.Lock()
	sessionKey, ok := c.byConn[connID]
	if !ok {
		c.mu.Unlock()
		return
	}

	room := c.rooms[sessionKey]
	for _, memberConn := range room.members {
		delete(c.byConn, memberConn)
	}
	delete(c.rooms, sessionKey)
	session := room.session
	c.mu.Unlock()

	c.endSession(ctx, sessionKey)

	event := broker.NewEvent(broker.EventSessionEnded, broker.ReasonPayload{Reason: reason})
	for _, userID := range []string{session.SeekerID, session.HelperID} {
		if err := c.publisher.Publish(ctx, userID, event); err != nil {
			log.Warn().Err(err).Str("sessionKey", sessionKey).Str("userId", userID).Msg("session ended notify failed")
		}
	}

	log.Info().
		Str("sessionKey", sessionKey).
		Str("reason", reason).
		Msg("session ended")

	if c.promoter != nil {
		c.promoter.PromoteWaiting(ctx)
	}
}

// Evict clears the connection's local membership without touching the
// ledger. Used when the session was ended by the peer, possibly on another
// instance.
func (c *Coordinator) Evict(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessionKey, ok := c.byConn[connID]
	if !ok {
		return
	}
	delete(c.byConn, connID)

	if room, ok := c.rooms[sessionKey]; ok {
		for userID, memberConn := range room.members {
			if memberConn == connID {
				delete(room.members, userID)
			}
		}
		if len(room.members) == 0 {
			delete(c.rooms, sessionKey)
		}
	}
}

// CurrentRoom returns the session key the connection is joined to, if any.
func (c *Coordinator) CurrentRoom(connID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionKey, ok := c.byConn[connID]
	return sessionKey, ok
}

// endSession writes the terminal status with local retries. Cleanup is never
// blocked by persistence trouble; exhausting the retries only leaves a
// log-level signal.
func (c *Coordinator) endSession(ctx context.Context, sessionKey string) {
	var err error
	for attempt := 1; attempt <= config.SessionEndRetries; attempt++ {
		if err = c.sessions.End(ctx, sessionKey); err == nil {
			return
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	log.Error().Err(err).
		Str("sessionKey", sessionKey).
		Int("attempts", config.SessionEndRetries).
		Msg("failed to mark session ended")
}
