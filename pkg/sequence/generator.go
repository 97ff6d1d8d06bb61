package sequence

import (
	"context"
	"fmt"
	"time"

	"creatorhub-platform/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

// Generator issues human-readable business codes. Codes are never reused;
// uniqueness is backed by a redis counter per prefix and month.
type Generator interface {
	NextContractCode(ctx context.Context) (string, error)
	NextWithdrawalCode(ctx context.Context) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
	}
}

func (g *RedisGenerator) NextContractCode(ctx context.Context) (string, error) {
	return g.nextMonthlyCode(ctx, rediskey.ContractPrefix)
}

func (g *RedisGenerator) NextWithdrawalCode(ctx context.Context) (string, error) {
	return g.nextMonthlyCode(ctx, rediskey.WithdrawalPrefix)
}

func (g *RedisGenerator) nextMonthlyCode(ctx context.Context, prefix string) (string, error) {
	period := time.Now().UTC().Format("200601")
	key := rediskey.BuildSequenceKey(prefix, period)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}

	if seq == 1 {
		// counters for past months are dead weight after a grace window
		_ = g.rdb.Expire(ctx, key, 45*24*time.Hour).Err()
	}

	return fmt.Sprintf("%s-%s-%04d", prefix, period, seq), nil
}
