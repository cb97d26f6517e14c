package statestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/statestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initStore(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr := miniredis.RunT(t)
	err := statestore.Init(&config.Config{
		Redis: config.RedisConfig{Addr: mr.Addr()},
		IDP:   config.IDPConfig{StateTTL: 10 * time.Minute},
	})
	require.NoError(t, err)
	return mr
}

func TestLoginState_ConsumeOnce(t *testing.T) {
	initStore(t)
	ctx := context.Background()

	require.NoError(t, statestore.SaveLoginState(ctx, "nonce-1", "/customers/2228"))

	returnTo, err := statestore.ConsumeLoginState(ctx, "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, "/customers/2228", returnTo)

	// A second consume of the same nonce must fail: replayed callbacks are
	// not accepted.
	_, err = statestore.ConsumeLoginState(ctx, "nonce-1")
	assert.ErrorIs(t, err, statestore.ErrStateNotFound)
}

func TestLoginState_DefaultReturnPath(t *testing.T) {
	initStore(t)
	ctx := context.Background()

	require.NoError(t, statestore.SaveLoginState(ctx, "nonce-2", ""))

	returnTo, err := statestore.ConsumeLoginState(ctx, "nonce-2")
	require.NoError(t, err)
	assert.Equal(t, "/", returnTo)
}

func TestLoginState_UnknownNonce(t *testing.T) {
	initStore(t)

	_, err := statestore.ConsumeLoginState(context.Background(), "never-saved")
	assert.ErrorIs(t, err, statestore.ErrStateNotFound)
}

func TestLoginState_ExpiresWithTTL(t *testing.T) {
	mr := initStore(t)
	ctx := context.Background()

	require.NoError(t, statestore.SaveLoginState(ctx, "nonce-3", "/"))
	mr.FastForward(11 * time.Minute)

	_, err := statestore.ConsumeLoginState(ctx, "nonce-3")
	assert.ErrorIs(t, err, statestore.ErrStateNotFound)
}

func TestDenylist(t *testing.T) {
	mr := initStore(t)
	ctx := context.Background()

	denied, err := statestore.IsTokenDenylisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, denied)

	require.NoError(t, statestore.DenylistToken(ctx, "jti-1", time.Now().Add(time.Hour)))

	denied, err = statestore.IsTokenDenylisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, denied)

	// The entry evaporates once the token would have expired anyway.
	mr.FastForward(2 * time.Hour)
	denied, err = statestore.IsTokenDenylisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, denied)
}

func TestDenylist_ExpiredTokenIsNoop(t *testing.T) {
	initStore(t)
	ctx := context.Background()

	// Denylisting an already expired token stores nothing.
	require.NoError(t, statestore.DenylistToken(ctx, "jti-2", time.Now().Add(-time.Minute)))

	denied, err := statestore.IsTokenDenylisted(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, denied)
}
