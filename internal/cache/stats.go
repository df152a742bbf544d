package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agenthub/backend/internal/logger"
	"go.uber.org/zap"
)

// Rating stats are expensive to aggregate and read-heavy, so they are
// cached per-agent with a short TTL and invalidated on every write.
const (
	ratingStatsKeyPrefix = "agenthub:rating_stats:"
	ratingStatsTTL       = 5 * time.Minute
)

func ratingStatsKey(agentID string) string {
	return ratingStatsKeyPrefix + agentID
}

// GetRatingStats returns the cached stats JSON for an agent, decoded into dest.
// The second return value reports a cache hit.
func GetRatingStats(ctx context.Context, agentID string, dest interface{}) bool {
	rc := GetRedisClient()
	if rc == nil {
		return false
	}

	raw, err := rc.Get(ctx, ratingStatsKey(agentID))
	if err != nil {
		if !IsNotFound(err) {
			logger.Log.Warn("rating stats cache read failed",
				zap.String("agent_id", agentID),
				zap.Error(err),
			)
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// Corrupt entry; drop it so the next write repopulates
		_ = rc.Del(ctx, ratingStatsKey(agentID))
		return false
	}
	return true
}

// SetRatingStats caches the stats value for an agent
func SetRatingStats(ctx context.Context, agentID string, stats interface{}) {
	rc := GetRedisClient()
	if rc == nil {
		return
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}

	if err := rc.SetEx(ctx, ratingStatsKey(agentID), raw, ratingStatsTTL); err != nil {
		logger.Log.Warn("rating stats cache write failed",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
	}
}

// InvalidateRatingStats drops the cached stats for an agent.
// Called after any rating or review write so reads never serve stale aggregates
// past the write.
func InvalidateRatingStats(ctx context.Context, agentID string) {
	rc := GetRedisClient()
	if rc == nil {
		return
	}
	if err := rc.Del(ctx, ratingStatsKey(agentID)); err != nil {
		logger.Log.Warn(fmt.Sprintf("failed to invalidate rating stats for agent %s", agentID),
			zap.Error(err),
		)
	}
}
