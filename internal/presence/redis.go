package presence

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const onlineSetKey = "presence:online"

// Redis is the shared-store implementation, for deployments where more than
// one gateway instance must see the same online set.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

var _ Store = (*Redis)(nil)

func member(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func (r *Redis) Add(ctx context.Context, userID int64) error {
	return r.client.SAdd(ctx, onlineSetKey, member(userID)).Err()
}

func (r *Redis) Remove(ctx context.Context, userID int64) error {
	return r.client.SRem(ctx, onlineSetKey, member(userID)).Err()
}

func (r *Redis) Contains(ctx context.Context, userID int64) (bool, error) {
	return r.client.SIsMember(ctx, onlineSetKey, member(userID)).Result()
}

func (r *Redis) Count(ctx context.Context) (int64, error) {
	return r.client.SCard(ctx, onlineSetKey).Result()
}
