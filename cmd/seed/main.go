package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

type seedOptions struct {
	tenants       []string
	professionals int
	patients      int
	days          int
	paidRatio     int
	seed          uint64
}

func main() {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Book a realistic calendar of appointments through the scheduling services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.tenants, "tenant", []string{"clinic-north", "clinic-south"}, "tenant ids to seed")
	cmd.Flags().IntVar(&opts.professionals, "professionals", 8, "professionals per tenant")
	cmd.Flags().IntVar(&opts.patients, "patients", 400, "patients per tenant")
	cmd.Flags().IntVar(&opts.days, "days", 10, "working days to fill, starting 30 days ago")
	cmd.Flags().IntVar(&opts.paidRatio, "paid-percent", 40, "share of past collections marked paid")
	cmd.Flags().Uint64Var(&opts.seed, "seed", uint64(time.Now().UnixNano()), "random seed")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", "seed")

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolSettings{})
	cancel()
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	svc := app.Build(cfg, pool, rdb, nil, logger)
	faker := gofakeit.New(opts.seed)

	for _, tenant := range opts.tenants {
		if err := seedTenant(ctx, svc, faker, tenant, opts, logger); err != nil {
			return fmt.Errorf("seed tenant %s: %w", tenant, err)
		}
	}

	logger.Info().Uint64("seed", opts.seed).Msg("seed complete")
	return nil
}

func seedTenant(ctx context.Context, svc *app.Services, faker *gofakeit.Faker, tenant string, opts seedOptions, logger *logging.Logger) error {
	const actor = "seed"

	if _, err := svc.Pricing.CreateVersion(ctx, tenant, int64(faker.Number(150, 450))*100, actor, time.Time{}); err != nil {
		return err
	}

	site := uuid.New()
	professionals := make([]uuid.UUID, opts.professionals)
	for i := range professionals {
		professionals[i] = uuid.New()
	}
	patients := make([]uuid.UUID, opts.patients)
	for i := range patients {
		patients[i] = uuid.New()
	}

	first := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -30)
	var booked, skipped, paid int

	for day := 0; day < opts.days; day++ {
		date := first.AddDate(0, 0, day)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		for _, professional := range professionals {
			start := date.Add(8 * time.Hour)
			closing := date.Add(18 * time.Hour)

			for start.Before(closing) {
				length := time.Duration(faker.Number(1, 4)*15) * time.Minute
				end := start.Add(length)
				gap := time.Duration(faker.Number(0, 2)*15) * time.Minute

				kind := appointment.TypeRegular
				if faker.Number(1, 10) == 1 {
					kind = appointment.TypeEvaluation
				}

				appt, err := svc.Appointments.Create(ctx, tenant, actor, appointment.CreateInput{
					PatientID:      patients[faker.Number(0, len(patients)-1)],
					ProfessionalID: professional,
					SiteID:         site,
					StartTime:      start,
					EndTime:        end,
					Type:           kind,
					Notes:          faker.Name() + " referral",
				})
				switch {
				case errors.Is(err, appointment.ErrPatientBusy), errors.Is(err, appointment.ErrProfessionalBusy):
					skipped++
				case err != nil:
					return err
				default:
					booked++
					if end.Before(time.Now()) && faker.Number(1, 100) <= opts.paidRatio {
						if _, err := svc.Collections.MarkAsPaid(ctx, tenant, appt.ID, end.Add(time.Duration(faker.Number(0, 72))*time.Hour), nil, actor); err != nil {
							return err
						}
						paid++
					}
				}

				start = end.Add(gap)
			}
		}
	}

	logger.Info().
		Str("tenant_id", tenant).
		Int("booked", booked).
		Int("skipped", skipped).
		Int("paid", paid).
		Msg("tenant seeded")
	return nil
}
