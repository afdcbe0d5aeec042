package analytics

import (
	"time"

	"github.com/google/uuid"
)

// DashboardAnalytics is the admin overview: live inventory numbers from
// the in-memory store plus settled-money aggregates from the database.
type DashboardAnalytics struct {
	TotalSpots     int `json:"total_spots"`
	TotalCapacity  int `json:"total_capacity"`
	TotalAvailable int `json:"total_available"`

	LiveSessions     int   `json:"live_sessions"`
	OvertimeSessions int   `json:"overtime_sessions"`
	TotalSessions    int64 `json:"total_sessions"`

	TotalRevenue   float64 `json:"total_revenue"`
	TotalRefunds   float64 `json:"total_refunds"`
	TotalPenalties float64 `json:"total_penalties"`
	TotalDebt      float64 `json:"total_debt"`

	UnresolvedReconciliations int64 `json:"unresolved_reconciliations"`

	RecentSessions []RecentSession `json:"recent_sessions"`

	GeneratedAt time.Time `json:"generated_at"`
}

// RecentSession is one row of the dashboard activity feed
type RecentSession struct {
	SessionID uuid.UUID  `json:"session_id"`
	SpotID    uuid.UUID  `json:"spot_id"`
	State     string     `json:"state"`
	Penalty   float64    `json:"penalty"`
	Refund    float64    `json:"refund"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// SpotAnalytics summarizes one spot's traffic and earnings
type SpotAnalytics struct {
	SpotID        uuid.UUID `json:"spot_id"`
	TotalSessions int64     `json:"total_sessions"`
	LiveSessions  int64     `json:"live_sessions"`
	TotalRevenue  float64   `json:"total_revenue"`
	TotalPenalty  float64   `json:"total_penalty"`
}

// sessionAggregates are the money totals computed in the database
type sessionAggregates struct {
	TotalSessions  int64
	TotalRevenue   float64
	TotalRefunds   float64
	TotalPenalties float64
	TotalDebt      float64
}
