package attendance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func ReportKey(eventID uuid.UUID) string {
	return "attendance:report:" + eventID.String()
}

func SummaryKey(eventID uuid.UUID) string {
	return "attendance:summary:" + eventID.String()
}

func AnalyticsKey(eventID uuid.UUID, granularity Granularity) string {
	return "attendance:analytics:" + eventID.String() + ":" + string(granularity)
}

func UserAttendanceKey(userID uuid.UUID) string {
	return "user:" + userID.String() + ":attendance"
}

// InvalidationPatterns lists every cache key or glob affected by an attendance change.
func InvalidationPatterns(eventID, userID uuid.UUID) []string {
	return []string{
		ReportKey(eventID),
		SummaryKey(eventID),
		"attendance:analytics:" + eventID.String() + ":*",
		"user:" + userID.String() + ":*",
	}
}

func (t *Tracker) invalidate(ctx context.Context, eventID, userID uuid.UUID) {
	for _, pattern := range InvalidationPatterns(eventID, userID) {
		if _, err := t.cache.ClearPattern(ctx, pattern); err != nil {
			t.log.Warn("cache invalidation failed", err, map[string]interface{}{"pattern": pattern})
		}
	}
}

// cached serves key from the cache, falling back to load on a miss or any cache error.
func cached[T any](ctx context.Context, t *Tracker, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	raw, ok, err := t.cache.Get(ctx, key)
	if err != nil {
		t.log.Warn("cache read failed", err, map[string]interface{}{"key": key})
	}
	if err == nil && ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		t.log.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key})
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	raw, err = json.Marshal(v)
	if err != nil {
		t.log.Warn("cache encode failed", err, map[string]interface{}{"key": key})
		return v, nil
	}
	if err := t.cache.Set(ctx, key, raw, ttl); err != nil {
		t.log.Warn("cache write failed", err, map[string]interface{}{"key": key})
	}
	return v, nil
}
