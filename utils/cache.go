package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/donatehub/donatehub/config"
)

// Cached read-models (widget aggregates, org dashboards) are keyed by
// organization id. When the materializer changes aggregates it calls
// InvalidateOrganizationCache so stale totals disappear on next read.

// InvalidateOrganizationCache drops all cached read-models for an
// organization. A missing redis client or a redis error is logged and
// ignored: invalidation is a signal, never a correctness dependency.
func InvalidateOrganizationCache(orgID uint) {
	if config.Redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pattern := fmt.Sprintf("org:%d:*", orgID)
	iter := config.Redis.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		LogError("Cache scan failed for org %d: %v", orgID, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := config.Redis.Del(ctx, keys...).Err(); err != nil {
		LogError("Cache invalidation failed for org %d: %v", orgID, err)
		return
	}
	LogDebug("Invalidated %d cache keys for org %d", len(keys), orgID)
}
