package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// Channel is the redis pub/sub channel shared by all instances.
const Channel = "freelancehub:events"

const (
	EventSignedUp       = "user.signed_up"
	EventProfileUpdated = "user.profile_updated"
)

type Event struct {
	Type     string    `json:"type"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	At       time.Time `json:"at"`
}

// Publisher fans events out to websocket clients. With redis configured every
// instance receives the event through Relay; without it the local hub is used.
type Publisher struct {
	hub *Hub
	rdb *redis.Client
}

func NewPublisher(hub *Hub, rdb *redis.Client) *Publisher {
	return &Publisher{hub: hub, rdb: rdb}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error("failed to marshal event", "type", ev.Type, "error", err)
		return
	}

	if p.rdb != nil {
		err := p.rdb.Publish(ctx, Channel, payload).Err()
		if err == nil {
			return
		}
		log.Warn("redis publish failed, delivering locally", "type", ev.Type, "error", err)
	}
	p.hub.Broadcast(payload)
}

// Relay forwards events published on Channel to the local hub until ctx is done.
func (p *Publisher) Relay(ctx context.Context) {
	if p.rdb == nil {
		return
	}
	sub := p.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			p.hub.Broadcast([]byte(msg.Payload))
		}
	}
}
