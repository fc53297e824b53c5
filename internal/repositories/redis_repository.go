package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/trinity-shop/trinity-platform/internal/config"
)

type RateLimitRepository interface {
	CheckLoginRateLimit(ctx context.Context, email string) (bool, int, int, error)
}

// SettlementLockRepository hands out short-lived per-cart locks so only one
// capture call settles a given cart at a time. The database-side status
// compare-and-swap remains the hard guarantee; the lock keeps the losing
// caller from even starting provider capture work.
type SettlementLockRepository interface {
	AcquireSettlementLock(ctx context.Context, cartID uuid.UUID) (bool, error)
	ReleaseSettlementLock(ctx context.Context, cartID uuid.UUID) error
}

type redisRepository struct {
	client *redis.Client
	cfg    *config.Config
}

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisConnect.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.DB = cfg.RedisConnect.DB

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func NewRedisRepo(client *redis.Client, cfg *config.Config) *redisRepository {
	return &redisRepository{client: client, cfg: cfg}
}

// CheckLoginRateLimit applies a fixed window counter per email. It returns
// whether the attempt is allowed, the remaining tries in the window and the
// seconds until the window resets.
func (r *redisRepository) CheckLoginRateLimit(ctx context.Context, email string) (bool, int, int, error) {
	key := "login_attempts:" + email

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, 0, fmt.Errorf("failed to increment login counter: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, r.cfg.RateConfig.WindowSize).Err(); err != nil {
			return false, 0, 0, fmt.Errorf("failed to set counter expiry: %w", err)
		}
	}

	if count > r.cfg.RateConfig.MaxAttempts {
		ttl, err := r.client.TTL(ctx, key).Result()
		if err != nil {
			return false, 0, 0, fmt.Errorf("failed to read counter TTL: %w", err)
		}

		return false, 0, int(ttl.Seconds()), nil
	}

	remaining := int(r.cfg.RateConfig.MaxAttempts - count)

	return true, remaining, 0, nil
}

const settlementLockTTL = 30 * time.Second

func settlementLockKey(cartID uuid.UUID) string {
	return "settlement_lock:cart:" + cartID.String()
}

func (r *redisRepository) AcquireSettlementLock(ctx context.Context, cartID uuid.UUID) (bool, error) {
	ok, err := r.client.SetNX(ctx, settlementLockKey(cartID), 1, settlementLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire settlement lock: %w", err)
	}

	return ok, nil
}

func (r *redisRepository) ReleaseSettlementLock(ctx context.Context, cartID uuid.UUID) error {
	if err := r.client.Del(ctx, settlementLockKey(cartID)).Err(); err != nil {
		return fmt.Errorf("failed to release settlement lock: %w", err)
	}

	return nil
}
