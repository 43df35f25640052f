// Package events publishes walk lifecycle notifications for other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types.
const (
	TypeWalkStarted    = "walk.started"
	TypeWalkPaused     = "walk.paused"
	TypeWalkResumed    = "walk.resumed"
	TypeWalkCompleted  = "walk.completed"
	TypeLocationsAdded = "walk.locations_added"
)

// WalkEvent is the payload published after a walk changes.
type WalkEvent struct {
	Type   string    `json:"type"`
	WalkID string    `json:"walk_id"`
	UserID string    `json:"user_id"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Publisher delivers walk events.
type Publisher interface {
	Publish(ctx context.Context, event WalkEvent) error
}

// Channel returns the pub/sub channel of a user's walk events.
func Channel(userID string) string {
	return "walks:" + userID
}

// RedisPublisher publishes events on per-user Redis channels.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish encodes event as JSON and publishes it on Channel(event.UserID).
func (p *RedisPublisher) Publish(ctx context.Context, event WalkEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode walk event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(event.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish walk event: %w", err)
	}
	return nil
}

// Nop discards every event. Used when no Redis address is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, WalkEvent) error { return nil }

var (
	_ Publisher = (*RedisPublisher)(nil)
	_ Publisher = Nop{}
)
