package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoomDirectory marks live rooms in Redis.
// Notes:
//   - Rooms themselves stay in process memory; the keys are liveness markers
//     for operators and other instances and are never read back by the registry.
//   - Each key expires after ttl unless a join refreshes it.
type RoomDirectory struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoomDirectory(client *redis.Client, ttl time.Duration) *RoomDirectory {
	return &RoomDirectory{client: client, ttl: ttl}
}

// Publish records a newly created room and its admin.
func (d *RoomDirectory) Publish(ctx context.Context, code, admin string) error {
	return d.client.Set(ctx, d.key(code), admin, d.ttl).Err()
}

// Touch extends the liveness marker of an active room.
func (d *RoomDirectory) Touch(ctx context.Context, code string) error {
	if d.ttl <= 0 {
		return nil
	}
	return d.client.Expire(ctx, d.key(code), d.ttl).Err()
}

// Remove deletes the marker of a deleted room.
func (d *RoomDirectory) Remove(ctx context.Context, code string) error {
	return d.client.Del(ctx, d.key(code)).Err()
}

func (d *RoomDirectory) key(code string) string {
	return "quiz:room:" + code
}
