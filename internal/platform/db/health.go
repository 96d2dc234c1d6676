package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// healthPingTimeout bounds the ping issued by the health endpoint.
const healthPingTimeout = 3 * time.Second

// PoolStats is the pool snapshot served by /health/db. Saturated means every
// connection is checked out, which for this service usually points at a
// transaction that never released its connection.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	AvailableConns  int32  `json:"available_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Saturated       bool   `json:"saturated"`
	Healthy         bool   `json:"healthy"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return NewPoolStats(stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns(), stat.MaxConns(),
		stat.AcquireCount(), stat.AcquireDuration())
}

// NewPoolStats derives the available connection count from the raw counters.
// A connection is available when it is idle or not yet opened.
func NewPoolStats(total, idle, acquired, max int32, acquireCount int64, acquireDuration time.Duration) *PoolStats {
	return &PoolStats{
		TotalConns:      total,
		IdleConns:       idle,
		AcquiredConns:   acquired,
		AvailableConns:  max - acquired,
		MaxConns:        max,
		AcquireCount:    acquireCount,
		AcquireDuration: acquireDuration.String(),
		Saturated:       max > 0 && acquired >= max,
		Healthy:         total > 0,
	}
}

type poolProbe interface {
	Ping(ctx context.Context) error
	Stats() *PoolStats
}

type pgxProbe struct{ pool *pgxpool.Pool }

func (p pgxProbe) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }
func (p pgxProbe) Stats() *PoolStats              { return GetPoolStats(p.pool) }

// HealthHandler pings the database and reports pool statistics. A failed
// ping answers 503; a saturated pool answers 200 with status "saturated".
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return healthHandler(pgxProbe{pool: pool})
}

func healthHandler(probe poolProbe) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()

		err := probe.Ping(ctx)
		stats := probe.Stats()
		if err != nil {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unavailable",
				"error":  err.Error(),
				"pool":   stats,
			})
		}

		status := "ok"
		if stats.Saturated {
			status = "saturated"
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": status,
			"pool":   stats,
		})
	}
}
