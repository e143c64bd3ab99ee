package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	UserKeyPrefix = "user:%d"
	TrendingKey   = "hashtags:trending"
)

const (
	UserTTL     = 5 * time.Minute
	TrendingTTL = 60 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// BlacklistKey marks a revoked session token id.
func BlacklistKey(jti string) string {
	return "blacklist:" + jti
}

func keyFamily(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateTrending(ctx context.Context) {
	Invalidate(ctx, TrendingKey)
}
