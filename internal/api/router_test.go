package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/collection"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/eventlog"
	"github.com/hackgods/clinic-scheduling/internal/pricing"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/store/memory"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

const (
	secret = "test-secret"
	tenant = "clinic-north"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type server struct {
	srv   *httptest.Server
	redis *miniredis.Miniredis
}

func newServer(t *testing.T, pg api.Pinger) *server {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{DefaultPriceAmount: 30000, CollectionDueDays: 90}
	logger := logging.Nop()
	st := memory.New()
	events := eventlog.NewRecorder(st.Events(), logger)
	prices := pricing.NewLedger(st.Prices(), logger)
	cols := collection.NewLedger(st.Collections(), cfg, events, nil, logger)
	appts := appointment.NewService(appointment.Deps{
		Repo:        st.Appointments(),
		Locker:      redisclient.NewRedisLocker(client, 5*time.Second, 0),
		Tx:          st,
		Prices:      prices,
		Collections: cols,
		Events:      events,
		Logger:      logger,
	}, cfg)

	handler := api.NewRouter(api.RouterConfig{
		Appointments: appts,
		Collections:  cols,
		Pricing:      prices,
		PgPool:       pg,
		Redis:        client,
		JWTSecret:    secret,
		Logger:       logger,
		Env:          "test",
		Version:      "v0.0.0-test",
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &server{srv: srv, redis: mr}
}

func token(t *testing.T, role api.Role) string {
	t.Helper()
	tok, err := api.IssueToken(secret, tenant, "user-"+string(role), role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *server) do(t *testing.T, method, path, tok string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func bookingBody(professional, patient uuid.UUID, start, end time.Time) map[string]any {
	return map[string]any{
		"patient_id":      patient.String(),
		"professional_id": professional.String(),
		"site_id":         "5b1f0c57-7a4c-4e0b-9b4e-3d1b0f5e8a11",
		"start_time":      start.Format(time.RFC3339),
		"end_time":        end.Format(time.RFC3339),
	}
}

func slot(hour, minute int) time.Time {
	return time.Date(2030, 1, 10, hour, minute, 0, 0, time.UTC)
}

func TestHealthEndpoints(t *testing.T) {
	s := newServer(t, pinger{})

	resp := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[api.ReadinessResponse](t, resp)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "ok", ready.Dependencies["postgres"])
	assert.Equal(t, "ok", ready.Dependencies["redis"])

	resp = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadinessReportsPostgresDown(t *testing.T) {
	s := newServer(t, pinger{err: errors.New("connection refused")})

	resp := s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	ready := decode[api.ReadinessResponse](t, resp)
	assert.Equal(t, "down", ready.Dependencies["postgres"])
}

func TestAuthentication(t *testing.T) {
	s := newServer(t, pinger{})

	resp := s.do(t, http.MethodGet, "/v1/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/appointments", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged, err := api.IssueToken("other-secret", tenant, "mallory", api.RoleAdmin, time.Hour)
	require.NoError(t, err)
	resp = s.do(t, http.MethodGet, "/v1/appointments", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := api.IssueToken(secret, tenant, "late", api.RoleAdmin, -time.Minute)
	require.NoError(t, err)
	resp = s.do(t, http.MethodGet, "/v1/appointments", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/appointments", token(t, api.RoleReceptionist), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBookingFlow(t *testing.T) {
	s := newServer(t, pinger{})
	reception := token(t, api.RoleReceptionist)
	professional := uuid.New()

	resp := s.do(t, http.MethodPost, "/v1/appointments", reception, bookingBody(professional, uuid.New(), slot(10, 0), slot(10, 45)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decode[api.AppointmentResponse](t, resp)
	assert.Equal(t, "CONFIRMED", appt.Status)
	assert.Equal(t, "REGULAR", appt.Type)
	require.NotNil(t, appt.PriceAmount)
	assert.Equal(t, int64(30000), *appt.PriceAmount)
	assert.Equal(t, "300.00", appt.PriceAmountDisplay)
	assert.Equal(t, "user-RECEPTIONIST", appt.CreatedBy)

	resp = s.do(t, http.MethodGet, "/v1/collections/"+appt.ID.String(), reception, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	col := decode[api.CollectionResponse](t, resp)
	assert.Equal(t, "PENDING", col.Status)
	assert.Equal(t, int64(30000), col.AmountDue)
	assert.Equal(t, "300.00", col.AmountDueDisplay)
	assert.True(t, col.DueDate.Equal(time.Date(2030, 4, 10, 10, 0, 0, 0, time.UTC)), "due date %s", col.DueDate)

	resp = s.do(t, http.MethodPost, "/v1/appointments", reception, bookingBody(professional, uuid.New(), slot(10, 30), slot(11, 0)))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	conflict := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, "conflict", conflict.Error)
	assert.Equal(t, "PROFESSIONAL", conflict.Subject)
	require.NotNil(t, conflict.ConflictingAppointmentID)
	assert.Equal(t, appt.ID, *conflict.ConflictingAppointmentID)

	resp = s.do(t, http.MethodPost, "/v1/appointments", reception, bookingBody(professional, uuid.New(), slot(10, 45), slot(11, 30)))
	assert.Equal(t, http.StatusCreated, resp.StatusCode, "touching intervals do not conflict")

	resp = s.do(t, http.MethodGet, "/v1/appointments?professional_id="+professional.String(), reception, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[api.ListResponse[api.AppointmentResponse]](t, resp)
	assert.Len(t, list.Items, 2)
}

func TestCreateValidation(t *testing.T) {
	s := newServer(t, pinger{})
	reception := token(t, api.RoleReceptionist)

	body := bookingBody(uuid.New(), uuid.New(), slot(10, 0), slot(10, 45))
	delete(body, "patient_id")
	resp := s.do(t, http.MethodPost, "/v1/appointments", reception, body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var verr struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verr))
	assert.Equal(t, "validation_failed", verr.Error)
	assert.Equal(t, "required", verr.Fields["patient_id"])

	resp = s.do(t, http.MethodPost, "/v1/appointments", reception, bookingBody(uuid.New(), uuid.New(), slot(11, 0), slot(10, 0)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body = bookingBody(uuid.New(), uuid.New(), slot(10, 0), slot(10, 45))
	body["type"] = "SURGERY"
	resp = s.do(t, http.MethodPost, "/v1/appointments", reception, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/appointments/not-a-uuid", reception, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/appointments/"+uuid.NewString(), reception, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSlotBeingBookedIsRetryable(t *testing.T) {
	s := newServer(t, pinger{})
	professional := uuid.New()
	require.NoError(t, s.redis.Set("lock:booking:"+tenant+":professional:"+professional.String(), "held"))

	resp := s.do(t, http.MethodPost, "/v1/appointments", token(t, api.RoleReceptionist), bookingBody(professional, uuid.New(), slot(9, 0), slot(9, 30)))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, "slot_being_booked", body.Error)
	assert.True(t, body.Retryable)
}

func TestRescheduleAndCancel(t *testing.T) {
	s := newServer(t, pinger{})
	reception := token(t, api.RoleReceptionist)
	professional := uuid.New()

	resp := s.do(t, http.MethodPost, "/v1/appointments", reception, bookingBody(professional, uuid.New(), slot(10, 0), slot(11, 0)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decode[api.AppointmentResponse](t, resp)

	resp = s.do(t, http.MethodPost, "/v1/appointments", reception, bookingBody(professional, uuid.New(), slot(12, 0), slot(13, 0)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	second := decode[api.AppointmentResponse](t, resp)

	resp = s.do(t, http.MethodPatch, "/v1/appointments/"+second.ID.String(), reception, map[string]any{
		"start_time": slot(10, 30).Format(time.RFC3339),
		"end_time":   slot(11, 30).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodPatch, "/v1/appointments/"+first.ID.String(), reception, map[string]any{"status": "CANCELLED"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELLED", decode[api.AppointmentResponse](t, resp).Status)

	resp = s.do(t, http.MethodPatch, "/v1/appointments/"+second.ID.String(), reception, map[string]any{
		"start_time": slot(10, 30).Format(time.RFC3339),
		"end_time":   slot(11, 30).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moved := decode[api.AppointmentResponse](t, resp)
	assert.True(t, moved.StartTime.Equal(slot(10, 30)))

	resp = s.do(t, http.MethodPatch, "/v1/appointments/"+second.ID.String(), reception, map[string]any{"status": "LOST"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCollectionAdminActions(t *testing.T) {
	s := newServer(t, pinger{})
	reception := token(t, api.RoleReceptionist)
	admin := token(t, api.RoleAdmin)

	resp := s.do(t, http.MethodPost, "/v1/appointments", reception, bookingBody(uuid.New(), uuid.New(), slot(10, 0), slot(10, 45)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decode[api.AppointmentResponse](t, resp)
	path := "/v1/collections/" + appt.ID.String()

	resp = s.do(t, http.MethodPost, path+"/pay", reception, map[string]any{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodPut, path+"/due-date", admin, map[string]any{"due_date": "2020-01-01T00:00:00Z"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OVERDUE", decode[api.CollectionResponse](t, resp).Status)

	resp = s.do(t, http.MethodGet, "/v1/collections/kpis", reception, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	kpis := decode[api.KPIResponse](t, resp)
	assert.Equal(t, int64(1), kpis.Overdue.Count)
	assert.Equal(t, int64(30000), kpis.Overdue.TotalAmount)
	assert.Equal(t, "300.00", kpis.Overdue.TotalDisplay)

	resp = s.do(t, http.MethodPost, path+"/pay", admin, map[string]any{"notes": "cash"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paid := decode[api.CollectionResponse](t, resp)
	assert.Equal(t, "PAID", paid.Status)
	require.NotNil(t, paid.PaidAt)
	require.NotNil(t, paid.Notes)
	assert.Equal(t, "cash", *paid.Notes)
	assert.Equal(t, "user-ADMIN", paid.UpdatedBy)

	resp = s.do(t, http.MethodGet, "/v1/collections?status=PAID", reception, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[api.ListResponse[api.CollectionResponse]](t, resp).Items, 1)

	resp = s.do(t, http.MethodGet, "/v1/collections/kpis?from=2020-01-01T00:00:00Z", reception, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/collections?status=LATE", reception, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/collections/"+uuid.NewString(), reception, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPricingEndpoints(t *testing.T) {
	s := newServer(t, pinger{})
	reception := token(t, api.RoleReceptionist)
	admin := token(t, api.RoleAdmin)

	resp := s.do(t, http.MethodGet, "/v1/pricing/current", reception, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/v1/pricing/versions", reception, map[string]any{"price_amount": 45000})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/v1/pricing/versions", admin, map[string]any{"price_amount": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/v1/pricing/versions", admin, map[string]any{
		"price_amount":   45050,
		"effective_from": "2024-06-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.PriceVersionResponse](t, resp)
	assert.Equal(t, "450.50", created.PriceAmountDisplay)
	assert.Equal(t, "user-ADMIN", created.CreatedBy)

	resp = s.do(t, http.MethodGet, "/v1/pricing/current", reception, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decode[api.PriceVersionResponse](t, resp).ID)

	resp = s.do(t, http.MethodPost, "/v1/pricing/versions/"+created.ID.String()+"/deactivate", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[api.PriceVersionResponse](t, resp).IsActive)

	resp = s.do(t, http.MethodGet, "/v1/pricing/versions", reception, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[api.ListResponse[api.PriceVersionResponse]](t, resp).Items, 1)
}

type failingAppointments struct{ api.AppointmentService }

func (failingAppointments) List(context.Context, string, appointment.ListFilter) ([]appointment.Appointment, error) {
	return nil, db.ErrPersistence
}

func TestPersistenceFailureIsRetryable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	handler := api.NewRouter(api.RouterConfig{
		Appointments: failingAppointments{},
		PgPool:       pinger{},
		Redis:        client,
		JWTSecret:    secret,
		Logger:       logging.Nop(),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, api.RoleProfessional))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Retryable)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRedisOutageIsRetryable(t *testing.T) {
	s := newServer(t, pinger{})
	s.redis.Close()

	resp := s.do(t, http.MethodPost, "/v1/appointments", token(t, api.RoleReceptionist), bookingBody(uuid.New(), uuid.New(), slot(9, 0), slot(9, 30)))
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, "lock_service_unavailable", body.Error)
	assert.True(t, body.Retryable)

	resp = s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[api.ReadinessResponse](t, resp)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "down", ready.Dependencies["redis"])
}

func TestMarkPaidWithoutBody(t *testing.T) {
	s := newServer(t, pinger{})

	resp := s.do(t, http.MethodPost, "/v1/appointments", token(t, api.RoleReceptionist), bookingBody(uuid.New(), uuid.New(), slot(10, 0), slot(10, 45)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decode[api.AppointmentResponse](t, resp)

	resp = s.do(t, http.MethodPost, "/v1/collections/"+appt.ID.String()+"/pay", token(t, api.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paid := decode[api.CollectionResponse](t, resp)
	assert.Equal(t, "PAID", paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.WithinDuration(t, time.Now(), *paid.PaidAt, time.Minute)
}

func TestListEchoesAppliedPage(t *testing.T) {
	s := newServer(t, pinger{})
	reception := token(t, api.RoleReceptionist)

	resp := s.do(t, http.MethodGet, "/v1/appointments", reception, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[api.ListResponse[api.AppointmentResponse]](t, resp)
	assert.Equal(t, 20, list.Limit)
	assert.Equal(t, 0, list.Offset)

	resp = s.do(t, http.MethodGet, "/v1/collections?limit=500&offset=40", reception, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cols := decode[api.ListResponse[api.CollectionResponse]](t, resp)
	assert.Equal(t, 100, cols.Limit)
	assert.Equal(t, 40, cols.Offset)
}
