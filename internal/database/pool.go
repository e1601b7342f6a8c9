package database

import (
	"context"
	"log/slog"
	"time"
)

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// saturationRatio is the share of open connections in use above which the
// pool is reported as saturated.
const saturationRatio = 0.9

// Health is the database part of the /health report.
type Health struct {
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency"`
	Saturated bool          `json:"saturated"`
	Open      int           `json:"open_connections"`
	InUse     int           `json:"in_use"`
	Idle      int           `json:"idle"`
	WaitCount int64         `json:"wait_count"`
	Error     string        `json:"error,omitempty"`
}

// HealthCheck pings the database and summarises the connection pool.
func (db *DB) HealthCheck(ctx context.Context) Health {
	stats := db.Stats()
	h := Health{
		Open:      stats.OpenConnections,
		InUse:     stats.InUse,
		Idle:      stats.Idle,
		WaitCount: stats.WaitCount,
		Saturated: stats.MaxOpenConnections > 0 &&
			float64(stats.InUse) > float64(stats.MaxOpenConnections)*saturationRatio,
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := db.PingContext(pingCtx)
	h.Latency = time.Since(start)

	if err != nil {
		h.Status = StatusUnhealthy
		h.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
		return h
	}
	h.Status = StatusHealthy

	if h.Saturated {
		slog.Warn("Connection pool near exhaustion",
			"in_use", stats.InUse, "max_open", stats.MaxOpenConnections, "wait_count", stats.WaitCount)
	}
	return h
}
