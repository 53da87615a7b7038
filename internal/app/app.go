// Package app wires the scheduling services over postgres and redis.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/collection"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/eventlog"
	"github.com/hackgods/clinic-scheduling/internal/observability/metrics"
	"github.com/hackgods/clinic-scheduling/internal/pricing"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

type Services struct {
	Appointments *appointment.Service
	Collections  *collection.Ledger
	Pricing      *pricing.Ledger
	Metrics      *metrics.SchedulingMetrics
}

// Build constructs the services. reg may be nil for the default registerer.
func Build(cfg config.Config, pool *pgxpool.Pool, rdb *redis.Client, reg prometheus.Registerer, logger *logging.Logger) *Services {
	m := metrics.NewSchedulingMetrics(reg)
	events := eventlog.NewRecorder(eventlog.NewPgWriter(pool), logger)
	prices := pricing.NewLedger(pricing.NewPgRepository(pool), logger)
	cols := collection.NewLedger(collection.NewPgRepository(pool), cfg, events, m, logger)

	appts := appointment.NewService(appointment.Deps{
		Repo:        appointment.NewPgRepository(pool),
		Locker:      redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait),
		Tx:          db.NewTxManager(pool, cfg.BookingIsolation),
		Prices:      prices,
		Collections: cols,
		Events:      events,
		Metrics:     m,
		Logger:      logger,
	}, cfg)

	return &Services{
		Appointments: appts,
		Collections:  cols,
		Pricing:      prices,
		Metrics:      m,
	}
}
