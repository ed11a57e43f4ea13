package checkout

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/storefront-labs/order-core/internal/redisx"
)

// RedisCart holds each buyer's pending cart under cart:{buyer_id}.
type RedisCart struct {
	Client *redis.Client
}

func (c *RedisCart) Clear(ctx context.Context, buyerID string) error {
	return c.Client.Del(ctx, fmt.Sprintf(redisx.KeyCart, buyerID)).Err()
}
