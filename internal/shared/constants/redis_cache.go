package constants

import (
	"fmt"
	"time"
)

// Redis Cache Configuration
// This file centralizes all Redis cache keys and TTL values for the ParkWell backend
// Pattern: parkwell:{module}:{operation}:{identifier}

// ================== CACHE TTL DURATIONS ==================

// Semi-static data (changes on admin edits only)
const (
	TTL_SPOT_DETAIL = 5 * time.Minute // single spot attributes
)

// Highly dynamic data (availability moves with every reservation)
const (
	TTL_SPOT_SNAPSHOT = 30 * time.Second // full inventory snapshot for polling clients
)

// Aggregates
const (
	TTL_ANALYTICS_DASHBOARD = 5 * time.Minute // operator revenue/settlement dashboard
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "parkwell"
)

// Spot inventory cache keys
const (
	CACHE_KEY_SPOTS_SNAPSHOT = CACHE_PREFIX + ":spots:snapshot"
	CACHE_KEY_SPOT_DETAIL    = CACHE_PREFIX + ":spots:detail:uuid:" // + spot-id
)

// Analytics cache keys
const (
	CACHE_KEY_ANALYTICS_DASHBOARD = CACHE_PREFIX + ":analytics:dashboard"
)

// SpotDetailKey builds the cache key for a single spot.
func SpotDetailKey(spotID string) string {
	return fmt.Sprintf("%s%s", CACHE_KEY_SPOT_DETAIL, spotID)
}
