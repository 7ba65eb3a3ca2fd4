package payments

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCheckoutVelocity_Check(t *testing.T) {
	_, client := setupTestRedis(t)
	v := NewCheckoutVelocity(client, 2, time.Hour, nil)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		res, err := v.Check(ctx, "+971 50 000 0000")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, i, res.CurrentCount)
	}

	res, err := v.Check(ctx, "+971500000000")
	require.NoError(t, err)
	assert.False(t, res.Allowed, "formatting differences should count against the same phone")
	assert.Contains(t, res.Message, "exceeded")

	res, err = v.Check(ctx, "+971511111111")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckoutVelocity_WindowExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	v := NewCheckoutVelocity(client, 1, time.Hour, nil)
	ctx := context.Background()

	_, _ = v.Check(ctx, "1")
	res, _ := v.Check(ctx, "1")
	require.False(t, res.Allowed)

	mr.FastForward(2 * time.Hour)
	res, err := v.Check(ctx, "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckoutVelocity_FailOpen(t *testing.T) {
	mr, client := setupTestRedis(t)
	v := NewCheckoutVelocity(client, 1, time.Hour, nil)
	mr.SetError("down")

	res, err := v.Check(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckoutVelocity_NilAllows(t *testing.T) {
	assert.Nil(t, NewCheckoutVelocity(nil, 5, time.Hour, nil))
	var v *CheckoutVelocity
	res, err := v.Check(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
