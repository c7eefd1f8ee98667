package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/workflow"
)

// RedisConfig configures the Redis-backed registry.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`

	// KeyPrefix namespaces task keys, default "deepresearch:task:".
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX"`

	// TTL bounds how long records are kept. Zero keeps them forever.
	TTL time.Duration `yaml:"ttl" env:"REDIS_TASK_TTL"`

	PoolSize     int `yaml:"pool_size" env:"REDIS_POOL_SIZE"`
	MinIdleConns int `yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS"`
}

// DefaultRedisConfig returns the default Redis registry configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "deepresearch:task:",
		TTL:          24 * time.Hour,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// RedisRegistry stores task records as JSON values in Redis. Terminal writes
// run inside a WATCH transaction so two racing writers can not both succeed.
type RedisRegistry struct {
	client *redis.Client
	cfg    RedisConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(cfg RedisConfig, logger *zap.Logger) (*RedisRegistry, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "deepresearch:task:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis task registry initialized", zap.String("addr", cfg.Addr))
	return &RedisRegistry{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "task_registry")),
		now:    time.Now,
	}, nil
}

// NewRedisRegistryWithClient wraps an existing client. Used in tests.
func NewRedisRegistryWithClient(client *redis.Client, cfg RedisConfig, logger *zap.Logger) *RedisRegistry {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "deepresearch:task:"
	}
	return &RedisRegistry{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "task_registry")),
		now:    time.Now,
	}
}

func (r *RedisRegistry) key(id string) string {
	return r.cfg.KeyPrefix + id
}

func (r *RedisRegistry) Create(ctx context.Context, query string) (*Record, error) {
	now := r.now()
	rec := &Record{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal task record: %w", err)
	}
	if err := r.client.Set(ctx, r.key(rec.ID), data, r.cfg.TTL).Err(); err != nil {
		return nil, fmt.Errorf("store task record: %w", err)
	}

	r.logger.Debug("task created", zap.String("task_id", rec.ID))
	return rec, nil
}

func (r *RedisRegistry) Get(ctx context.Context, id string) (*Record, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load task record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode task record: %w", err)
	}
	return &rec, nil
}

func (r *RedisRegistry) Complete(ctx context.Context, id string, state *workflow.State) error {
	return r.finish(ctx, id, StatusCompleted, NewResult(state), "")
}

func (r *RedisRegistry) Fail(ctx context.Context, id string, reason string) error {
	return r.finish(ctx, id, StatusFailed, nil, reason)
}

func (r *RedisRegistry) finish(ctx context.Context, id, status string, result *Result, reason string) error {
	key := r.key(id)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return notFound(id)
		}
		if err != nil {
			return fmt.Errorf("load task record: %w", err)
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode task record: %w", err)
		}
		if rec.Terminal() {
			return fmt.Errorf("task %s already terminal with status %s", id, rec.Status)
		}

		rec.Status = status
		rec.Result = result
		rec.Error = reason
		rec.UpdatedAt = r.now()

		updated, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("marshal task record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, r.cfg.TTL)
			return nil
		})
		return err
	}

	if err := r.client.Watch(ctx, txn, key); err != nil {
		return err
	}

	r.logger.Debug("task finished",
		zap.String("task_id", id),
		zap.String("status", status),
	)
	return nil
}

// Close releases the underlying Redis connection pool.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// Ping verifies connectivity to the backing Redis instance.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
