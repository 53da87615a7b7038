package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/collection"
	"github.com/hackgods/clinic-scheduling/internal/pricing"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

type AppointmentService interface {
	Create(ctx context.Context, tenantID, bookingUserID string, in appointment.CreateInput) (*appointment.Appointment, error)
	Update(ctx context.Context, tenantID string, id uuid.UUID, patch appointment.Patch) (*appointment.Appointment, error)
	Get(ctx context.Context, tenantID string, id uuid.UUID) (*appointment.Appointment, error)
	List(ctx context.Context, tenantID string, f appointment.ListFilter) ([]appointment.Appointment, error)
}

type CollectionService interface {
	ListAndReconcile(ctx context.Context, tenantID string, f collection.Filter) ([]collection.Collection, error)
	Get(ctx context.Context, tenantID string, appointmentID uuid.UUID) (*collection.Collection, error)
	MarkAsPaid(ctx context.Context, tenantID string, appointmentID uuid.UUID, paidAt time.Time, notes *string, userID string) (*collection.Collection, error)
	UpdateDueDate(ctx context.Context, tenantID string, appointmentID uuid.UUID, newDueDate time.Time, userID string) (*collection.Collection, error)
	GetKPIs(ctx context.Context, tenantID string, r *collection.DateRange) (collection.KPIs, error)
}

type PricingService interface {
	CurrentPrice(ctx context.Context, tenantID string) (*pricing.PriceVersion, error)
	ListVersions(ctx context.Context, tenantID string) ([]pricing.PriceVersion, error)
	CreateVersion(ctx context.Context, tenantID string, amount int64, createdBy string, effectiveFrom time.Time) (*pricing.PriceVersion, error)
	Deactivate(ctx context.Context, tenantID string, versionID uuid.UUID) (*pricing.PriceVersion, error)
}

type RouterConfig struct {
	Appointments AppointmentService
	Collections  CollectionService
	Pricing      PricingService
	PgPool       Pinger
	Redis        redis.UniversalClient
	// MetricsHandler defaults to promhttp.Handler().
	MetricsHandler http.Handler
	JWTSecret      string
	Logger         *logging.Logger
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Use(Authenticate(cfg.JWTSecret))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(cfg.Appointments, logger))
			r.Get("/", listAppointmentsHandler(cfg.Appointments, logger))
			r.Get("/{id}", getAppointmentHandler(cfg.Appointments, logger))
			r.Patch("/{id}", updateAppointmentHandler(cfg.Appointments, logger))
		})

		r.Route("/collections", func(r chi.Router) {
			r.Get("/", listCollectionsHandler(cfg.Collections, logger))
			r.Get("/kpis", collectionKPIsHandler(cfg.Collections, logger))
			r.Get("/{appointmentID}", getCollectionHandler(cfg.Collections, logger))
			r.With(RequireRole(RoleAdmin)).Post("/{appointmentID}/pay", markPaidHandler(cfg.Collections, logger))
			r.With(RequireRole(RoleAdmin)).Put("/{appointmentID}/due-date", updateDueDateHandler(cfg.Collections, logger))
		})

		r.Route("/pricing", func(r chi.Router) {
			r.Get("/current", currentPriceHandler(cfg.Pricing, logger))
			r.Get("/versions", listPriceVersionsHandler(cfg.Pricing, logger))
			r.With(RequireRole(RoleAdmin)).Post("/versions", createPriceVersionHandler(cfg.Pricing, logger))
			r.With(RequireRole(RoleAdmin)).Post("/versions/{id}/deactivate", deactivatePriceVersionHandler(cfg.Pricing, logger))
		})
	})

	return r
}
