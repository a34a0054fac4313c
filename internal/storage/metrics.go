package storage

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/agora-arena/agora/internal/telemetry"
)

// RegisterPoolMetrics registers OTEL gauges observing the connection pool.
// Call after telemetry.Init so the instruments bind to the real provider.
func (db *DB) RegisterPoolMetrics() {
	meter := telemetry.Meter("agora/storage")

	total, err1 := meter.Int64ObservableGauge("db.pool.connections.total",
		metric.WithDescription("Total connections in the pool"))
	idle, err2 := meter.Int64ObservableGauge("db.pool.connections.idle",
		metric.WithDescription("Idle connections in the pool"))
	acquired, err3 := meter.Int64ObservableGauge("db.pool.connections.acquired",
		metric.WithDescription("Connections currently checked out"))
	if err1 != nil || err2 != nil || err3 != nil {
		db.logger.Warn("storage: pool metrics registration failed")
		return
	}

	_, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stat := db.pool.Stat()
		o.ObserveInt64(total, int64(stat.TotalConns()))
		o.ObserveInt64(idle, int64(stat.IdleConns()))
		o.ObserveInt64(acquired, int64(stat.AcquiredConns()))
		return nil
	}, total, idle, acquired)
	if err != nil {
		db.logger.Warn("storage: pool metrics callback registration failed", "error", err)
	}
}
