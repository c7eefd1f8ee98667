package task

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/types"
)

func newTestRedisRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	cfg.TTL = time.Hour
	return NewRedisRegistryWithClient(client, cfg, zap.NewNop()), mr
}

func TestRedisRegistry_CreateAndGet(t *testing.T) {
	reg, _ := newTestRedisRegistry(t)

	rec, err := reg.Create(context.Background(), "history of the transistor")
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	got, err := reg.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, "history of the transistor", got.Query)
}

func TestRedisRegistry_GetUnknown(t *testing.T) {
	reg, _ := newTestRedisRegistry(t)

	_, err := reg.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, types.ErrTaskNotFound, types.GetErrorCode(err))
}

func TestRedisRegistry_CompleteRoundTrip(t *testing.T) {
	reg, _ := newTestRedisRegistry(t)
	rec, err := reg.Create(context.Background(), "q")
	require.NoError(t, err)

	require.NoError(t, reg.Complete(context.Background(), rec.ID, completedState("q")))

	got, err := reg.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	require.NotNil(t, got.Result.SynthesisResult)
	assert.Equal(t, "summary", got.Result.SynthesisResult.Summary)
	assert.Equal(t, []string{"example.org"}, got.Result.SynthesisResult.Sources)
}

func TestRedisRegistry_TerminalWriteIsOnceOnly(t *testing.T) {
	reg, _ := newTestRedisRegistry(t)
	rec, err := reg.Create(context.Background(), "q")
	require.NoError(t, err)

	require.NoError(t, reg.Fail(context.Background(), rec.ID, "boom"))
	assert.Error(t, reg.Complete(context.Background(), rec.ID, completedState("q")))

	got, err := reg.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestRedisRegistry_RecordsExpire(t *testing.T) {
	reg, mr := newTestRedisRegistry(t)
	rec, err := reg.Create(context.Background(), "q")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = reg.Get(context.Background(), rec.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrTaskNotFound, types.GetErrorCode(err))
}
