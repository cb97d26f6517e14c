package statestore

import (
	"context"
	"errors"
	"time"

	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
	"github.com/redis/go-redis/v9"
)

const (
	loginStatePrefix = "portal:authstate:"
	denylistPrefix   = "portal:denylist:"
)

var (
	client   *redis.Client
	stateTTL time.Duration
)

// ErrStateNotFound is returned when a login state nonce is missing or was
// already consumed.
var ErrStateNotFound = errors.New("login state not found")

// Init connects the package to redis. The store holds short-lived OAuth
// login-state nonces and the signed-out-token denylist.
func Init(cfg *config.Config) error {
	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	stateTTL = cfg.IDP.StateTTL

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}

// SaveLoginState stores a state nonce for an in-flight OAuth authorization
// request. The value is the post-login return path, empty when none was
// requested.
func SaveLoginState(ctx context.Context, state, returnTo string) error {
	if returnTo == "" {
		returnTo = "/"
	}
	return client.Set(ctx, loginStatePrefix+state, returnTo, stateTTL).Err()
}

// ConsumeLoginState atomically fetches and deletes a state nonce, returning
// the stored return path. A nonce can be consumed exactly once; a second
// consume returns ErrStateNotFound.
func ConsumeLoginState(ctx context.Context, state string) (string, error) {
	returnTo, err := client.GetDel(ctx, loginStatePrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", err
	}
	return returnTo, nil
}

// DenylistToken marks a token id as signed out until the token would have
// expired anyway. Expired deadlines are ignored.
func DenylistToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return client.Set(ctx, denylistPrefix+jti, "1", ttl).Err()
}

// IsTokenDenylisted reports whether a token id has been signed out.
func IsTokenDenylisted(ctx context.Context, jti string) (bool, error) {
	n, err := client.Exists(ctx, denylistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
