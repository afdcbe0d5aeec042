package sessions

import (
	"math"
	"time"

	"parkwell/internal/shared/config"
)

// OvertimeMinutes returns how many whole or partial minutes the session is
// past its expiry, rounded up. A session still inside its window reports 0.
func OvertimeMinutes(expiresAt, now time.Time) int {
	overdue := now.Sub(expiresAt)
	if overdue <= 0 {
		return 0
	}
	return int(math.Ceil(overdue.Minutes()))
}

// Penalty prices an overtime stay of m minutes. The base fee covers the
// whole grace window; past it, every minute accrues at the overtime rate.
// Zero overtime means zero penalty, a driver who leaves on time never pays.
func Penalty(cfg config.EngineConfig, overtimeMinutes int) float64 {
	if overtimeMinutes <= 0 {
		return 0
	}
	if overtimeMinutes <= cfg.OvertimeGraceMinutes {
		return cfg.BaseOvertimeFee
	}
	extra := float64(overtimeMinutes - cfg.OvertimeGraceMinutes)
	return cfg.BaseOvertimeFee + cfg.OvertimeRatePerMinute*extra
}

// Settle computes the terminal money movement for a checkout at the given
// time: the refundable part of the deposit, and the debt left over when the
// penalty exceeds it.
func Settle(cfg config.EngineConfig, deposit float64, expiresAt, now time.Time) (penalty, refund, debt float64) {
	penalty = Penalty(cfg, OvertimeMinutes(expiresAt, now))
	refund = deposit - penalty
	if refund < 0 {
		refund = 0
	}
	debt = penalty - deposit
	if debt < 0 {
		debt = 0
	}
	return penalty, refund, debt
}
