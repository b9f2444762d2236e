package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReplayGuard_ConsumeOnce(t *testing.T) {
	g := NewMemoryReplayGuard()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	exp := now.Add(10 * time.Minute)

	first, err := g.Consume(ctx, "jti-1", exp, now)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := g.Consume(ctx, "jti-1", exp, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, again)

	other, err := g.Consume(ctx, "jti-2", exp, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryReplayGuard_EvictsExpired(t *testing.T) {
	g := NewMemoryReplayGuard()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	_, err := g.Consume(ctx, "old", now.Add(time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())

	_, err = g.Consume(ctx, "new", now.Add(20*time.Minute), now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
}

func TestNewRedisReplayGuard_BadURL(t *testing.T) {
	_, err := NewRedisReplayGuard(context.Background(), "not-a-url://")
	assert.Error(t, err)
}
