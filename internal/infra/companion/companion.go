// Package companion relays engagement state to the companion device.
// Messages are latest-value updates: the relay keeps the most recent value
// of every field in a Redis hash and publishes each update on a channel the
// companion subscribes to.
package companion

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sunflower-app/sunflower/internal/domain"
)

// Config controls the Redis relay.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string // pub/sub channel; the state hash is Channel + ":state"
}

// RedisRelay implements domain.CompanionChannel over Redis.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

// NewRedisRelay creates a relay. The connection is established lazily;
// an unreachable Redis does not fail construction.
func NewRedisRelay(cfg Config, log *zap.Logger) *RedisRelay {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	channel := cfg.Channel
	if channel == "" {
		channel = "sunflower:companion"
	}
	return &RedisRelay{rdb: rdb, channel: channel, log: log}
}

// Send stores the message fields in the state hash and publishes the update.
func (r *RedisRelay) Send(ctx context.Context, msg domain.CompanionMessage) error {
	fields := Fields(msg)
	if len(fields) == 0 {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode companion message: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.stateKey(), fields)
	pipe.Publish(ctx, r.channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCompanionUnavailable, err)
	}
	r.log.Debug("companion relay", zap.ByteString("payload", payload))
	return nil
}

// State returns the latest relayed values.
func (r *RedisRelay) State(ctx context.Context) (map[string]string, error) {
	m, err := r.rdb.HGetAll(ctx, r.stateKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCompanionUnavailable, err)
	}
	return m, nil
}

// Ping checks the Redis connection.
func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}

func (r *RedisRelay) stateKey() string {
	return r.channel + ":state"
}

// Hash field names, as the companion app reads them.
const (
	fieldIsPro      = "isPro"
	fieldSunGoal    = "sunGoal"
	fieldTimeInSun  = "timeInSun"
	fieldLastPicked = "lastSunflowerDate"
)

// Fields flattens a message into hash fields. Unset fields are omitted.
func Fields(msg domain.CompanionMessage) map[string]string {
	f := make(map[string]string, 4)
	if msg.IsPro != nil {
		f[fieldIsPro] = strconv.FormatBool(*msg.IsPro)
	}
	if msg.SunGoal != nil {
		f[fieldSunGoal] = strconv.FormatFloat(*msg.SunGoal, 'f', -1, 64)
	}
	if msg.TimeInSun != nil {
		f[fieldTimeInSun] = strconv.FormatFloat(*msg.TimeInSun, 'f', -1, 64)
	}
	if msg.LastSunflowerDate != "" {
		f[fieldLastPicked] = msg.LastSunflowerDate
	}
	return f
}

// LogRelay is used when no Redis relay is configured: updates are only logged.
type LogRelay struct {
	log *zap.Logger
}

// NewLogRelay creates a relay that only logs.
func NewLogRelay(log *zap.Logger) *LogRelay {
	return &LogRelay{log: log}
}

// Send logs the update.
func (l *LogRelay) Send(_ context.Context, msg domain.CompanionMessage) error {
	fields := Fields(msg)
	if len(fields) == 0 {
		return nil
	}
	l.log.Info("companion relay disabled, dropping update", zap.Any("fields", fields))
	return nil
}

// ─── Message Builders ───────────────────────────────────────────────────────

// IsPro builds an entitlement update.
func IsPro(entitled bool) domain.CompanionMessage {
	return domain.CompanionMessage{IsPro: &entitled}
}

// SunGoal builds a goal update.
func SunGoal(goal time.Duration) domain.CompanionMessage {
	s := goal.Seconds()
	return domain.CompanionMessage{SunGoal: &s}
}

// TimeInSun builds an exposure update.
func TimeInSun(exposure time.Duration) domain.CompanionMessage {
	s := exposure.Seconds()
	return domain.CompanionMessage{TimeInSun: &s}
}

// LastPicked builds a last-pick update (ISO 8601).
func LastPicked(t time.Time) domain.CompanionMessage {
	return domain.CompanionMessage{LastSunflowerDate: t.Format(time.RFC3339)}
}
