package broker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mindbridge/peerchat-server/internal/config"
	redisclient "github.com/mindbridge/peerchat-server/internal/redis"
)

// Event names on the real-time channel, engine -> user.
const (
	EventMatchFound      = "match_found"
	EventMatchAssigned   = "match_assigned"
	EventMatchWaiting    = "match_waiting"
	EventMatchFailed     = "match_failed"
	EventRoomJoined      = "room_joined"
	EventRoomError       = "room_error"
	EventMessageReceived = "message_received"
	EventSessionEnded    = "session_ended"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEvent marshals payload into an Event. Marshal failures are programming
// errors; they surface as an empty data field plus an error log.
func NewEvent(eventType string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("failed to marshal event payload")
		data = []byte("{}")
	}
	return Event{Type: eventType, Data: data}
}

// Publisher pushes an event to every live connection of one user, across all
// server instances.
type Publisher interface {
	Publish(ctx context.Context, userID string, event Event) error
}

type Client struct {
	UserID string
	Events chan Event
	Done   chan struct{}
}

// subscription is the per-user redis pub/sub reader plus the local clients it
// feeds. Closing done stops the reader; a later Subscribe starts a fresh one,
// so one user never has two readers on the same channel.
type subscription struct {
	clients map[*Client]bool
	done    chan struct{}
}

// Broker fans redis pub/sub channels (one per user) out to the buffered
// per-connection channels of locally attached clients.
type Broker struct {
	redis  *redisclient.Client
	subs   map[string]*subscription // userID -> subscription
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

var _ Publisher = (*Broker)(nil)

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:  redisClient,
		subs:   make(map[string]*subscription),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Broker) Subscribe(userID string) *Client {
	client := &Client{
		UserID: userID,
		Events: make(chan Event, config.ClientEventBuffer),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	sub, ok := b.subs[userID]
	if !ok {
		sub = &subscription{
			clients: make(map[*Client]bool),
			done:    make(chan struct{}),
		}
		b.subs[userID] = sub
		go b.subscribeToRedis(userID, sub.done)
	}
	sub.clients[client] = true
	clientCount := len(sub.clients)
	b.mu.Unlock()

	log.Info().
		Str("userId", userID).
		Int("clientCount", clientCount).
		Msg("client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[client.UserID]
	if !ok {
		return
	}

	delete(sub.clients, client)
	close(client.Done)

	if len(sub.clients) == 0 {
		close(sub.done)
		delete(b.subs, client.UserID)
	}

	log.Info().
		Str("userId", client.UserID).
		Int("clientCount", len(sub.clients)).
		Msg("client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, userID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.EventChannel(userID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(userID string, done <-chan struct{}) {
	channel := redisclient.EventChannel(userID)
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("userId", userID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case <-done:
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(userID, event)
		}
	}
}

func (b *Broker) broadcast(userID string, event Event) {
	b.mu.RLock()
	var clients []*Client
	if sub, ok := b.subs[userID]; ok {
		for client := range sub.clients {
			clients = append(clients, client)
		}
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("userId", userID).
				Str("type", event.Type).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		for client := range sub.clients {
			close(client.Done)
		}
	}
	b.subs = make(map[string]*subscription)
}

func (b *Broker) ClientCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if sub, ok := b.subs[userID]; ok {
		return len(sub.clients)
	}
	return 0
}
