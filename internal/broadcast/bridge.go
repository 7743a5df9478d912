package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Tanmay2302/CampusSpot/internal/log"
)

// Channel is the Redis pub/sub channel bridging hubs across instances.
const Channel = "campusspot:state"

type bridgeMessage struct {
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Bridge relays state-changed signals between daemon instances through Redis
// pub/sub. The local hub fans out immediately; the bridge publishes so peers
// fan out too, and its subscriber ignores messages carrying its own origin.
type Bridge struct {
	hub    *Hub
	rdb    *redis.Client
	origin string
	logger zerolog.Logger
}

// NewBridge wraps the hub with cross-instance relaying.
func NewBridge(hub *Hub, rdb *redis.Client) *Bridge {
	return &Bridge{
		hub:    hub,
		rdb:    rdb,
		origin: uuid.NewString(),
		logger: log.WithComponent("broadcast.bridge"),
	}
}

// StateChanged fans out locally and publishes for the other instances.
func (b *Bridge) StateChanged() {
	b.hub.StateChanged()

	msg, err := json.Marshal(bridgeMessage{Origin: b.origin, At: time.Now().UTC()})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, Channel, msg).Err(); err != nil {
		b.logger.Warn().Err(err).Msg("publish state change failed")
	}
}

// Run subscribes to the channel and replays remote state changes into the
// local hub until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, Channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	b.logger.Info().Str("channel", Channel).Msg("redis bridge subscribed")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var bm bridgeMessage
			if err := json.Unmarshal([]byte(m.Payload), &bm); err != nil {
				b.logger.Warn().Err(err).Msg("malformed bridge message")
				continue
			}
			if bm.Origin == b.origin {
				continue
			}
			b.hub.StateChanged()
		}
	}
}
