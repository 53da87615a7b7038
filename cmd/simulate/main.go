package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Tenant        string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	UpdateRatio   float64
	ReadRatio     float64
	Professionals int
	Patients      int
	Days          int
	JWTSecret     string
}

// DataPool is the shared calendar the workers contend on. Few professionals
// and a short horizon make overlapping bookings common.
type DataPool struct {
	Site          uuid.UUID
	Professionals []uuid.UUID
	Patients      []uuid.UUID
	Slots         []time.Time
	mu            sync.RWMutex
	appointments  []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(f *gofakeit.Faker) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[f.Number(0, len(dp.appointments)-1)], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, p99 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pct := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return sum / time.Duration(len(latencies)), pct(50), pct(95), pct(99)
}

type Metrics struct {
	Booking     OperationMetrics
	Reschedule  OperationMetrics
	Cancel      OperationMetrics
	ReadByID    OperationMetrics
	ListByProf  OperationMetrics
	Collections OperationMetrics
	KPIs        OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	token   string
	metrics Metrics
	logger  *logging.Logger
}

func main() {
	logger := logging.Default().With("service", "simulate")

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	token, err := api.IssueToken(cfg.JWTSecret, cfg.Tenant, "simulator", api.RoleReceptionist, cfg.Duration+time.Minute)
	if err != nil {
		logger.Fatal().Err(err).Msg("issue token")
	}

	sim := &Simulator{
		config: cfg,
		pool:   newDataPool(cfg),
		client: &http.Client{Timeout: 10 * time.Second},
		token:  token,
		logger: logger,
	}

	logger.Info().
		Str("tenant_id", cfg.Tenant).
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("slots", len(sim.pool.Slots)).
		Msg("starting simulation")

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Tenant:        getEnv("SIM_TENANT", "clinic-sim"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.5),
		UpdateRatio:   getFloat("SIM_UPDATE_RATIO", 0.2),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		Professionals: getInt("SIM_PROFESSIONALS", 5),
		Patients:      getInt("SIM_PATIENTS", 200),
		Days:          getInt("SIM_DAYS", 3),
		JWTSecret:     baseCfg.JWTSecret,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.UpdateRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.UpdateRatio /= total
		cfg.ReadRatio /= total
	}

	if cfg.Workers <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Professionals <= 0 || cfg.Patients <= 0 || cfg.Days <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_PROFESSIONALS, SIM_PATIENTS and SIM_DAYS must be > 0")
	}
	return cfg, nil
}

// newDataPool lays a 15 minute grid over working hours of the next Days days.
func newDataPool(cfg SimConfig) *DataPool {
	dp := &DataPool{Site: uuid.New()}
	for i := 0; i < cfg.Professionals; i++ {
		dp.Professionals = append(dp.Professionals, uuid.New())
	}
	for i := 0; i < cfg.Patients; i++ {
		dp.Patients = append(dp.Patients, uuid.New())
	}

	tomorrow := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
	for d := 0; d < cfg.Days; d++ {
		day := tomorrow.AddDate(0, 0, d)
		for t := day.Add(8 * time.Hour); t.Before(day.Add(18 * time.Hour)); t = t.Add(15 * time.Minute) {
			dp.Slots = append(dp.Slots, t)
		}
	}
	return dp
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	f := gofakeit.New(uint64(time.Now().UnixNano()) + uint64(workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := f.Float64Range(0, 1)
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, f)
			case r < s.config.BookingRatio+s.config.UpdateRatio:
				if f.Number(1, 4) == 1 {
					s.doCancel(ctx, f)
				} else {
					s.doReschedule(ctx, f)
				}
			default:
				switch f.Number(0, 3) {
				case 0:
					s.doReadByID(ctx, f)
				case 1:
					s.doListByProfessional(ctx, f)
				case 2:
					s.call(ctx, &s.metrics.Collections, http.MethodGet, "/v1/collections?limit=20", nil, nil)
				default:
					s.call(ctx, &s.metrics.KPIs, http.MethodGet, "/v1/collections/kpis", nil, nil)
				}
			}
		}
	}
}

// call performs one request, records it and decodes a 2xx body into out.
func (s *Simulator) call(ctx context.Context, om *OperationMetrics, method, path string, body, out any) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, 0, err)
		}
		return
	}
	defer resp.Body.Close()

	om.Record(latency, resp.StatusCode, nil)
	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
}

func (s *Simulator) randomInterval(f *gofakeit.Faker) (time.Time, time.Time) {
	start := s.pool.Slots[f.Number(0, len(s.pool.Slots)-1)]
	return start, start.Add(time.Duration(f.Number(1, 4)*15) * time.Minute)
}

func (s *Simulator) doBooking(ctx context.Context, f *gofakeit.Faker) {
	start, end := s.randomInterval(f)
	body := map[string]any{
		"patient_id":      s.pool.Patients[f.Number(0, len(s.pool.Patients)-1)],
		"professional_id": s.pool.Professionals[f.Number(0, len(s.pool.Professionals)-1)],
		"site_id":         s.pool.Site,
		"start_time":      start,
		"end_time":        end,
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	s.call(ctx, &s.metrics.Booking, http.MethodPost, "/v1/appointments", body, &created)
	if created.ID != uuid.Nil {
		s.pool.AddAppointment(created.ID)
	}
}

func (s *Simulator) doReschedule(ctx context.Context, f *gofakeit.Faker) {
	id, ok := s.pool.RandomAppointment(f)
	if !ok {
		return
	}
	start, end := s.randomInterval(f)
	s.call(ctx, &s.metrics.Reschedule, http.MethodPatch, "/v1/appointments/"+id.String(),
		map[string]any{"start_time": start, "end_time": end}, nil)
}

func (s *Simulator) doCancel(ctx context.Context, f *gofakeit.Faker) {
	id, ok := s.pool.RandomAppointment(f)
	if !ok {
		return
	}
	s.call(ctx, &s.metrics.Cancel, http.MethodPatch, "/v1/appointments/"+id.String(),
		map[string]any{"status": "CANCELLED"}, nil)
}

func (s *Simulator) doReadByID(ctx context.Context, f *gofakeit.Faker) {
	id, ok := s.pool.RandomAppointment(f)
	if !ok {
		return
	}
	s.call(ctx, &s.metrics.ReadByID, http.MethodGet, "/v1/appointments/"+id.String(), nil, nil)
}

func (s *Simulator) doListByProfessional(ctx context.Context, f *gofakeit.Faker) {
	prof := s.pool.Professionals[f.Number(0, len(s.pool.Professionals)-1)]
	s.call(ctx, &s.metrics.ListByProf, http.MethodGet,
		fmt.Sprintf("/v1/appointments?professional_id=%s&limit=20", prof), nil, nil)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Tenant: %s\n", s.config.Tenant)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Professional", &s.metrics.ListByProf)
	printOperationReport("List Collections", &s.metrics.Collections)
	printOperationReport("Collection KPIs", &s.metrics.KPIs)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, p99 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s p99=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), p99.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
