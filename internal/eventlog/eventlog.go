package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

const (
	AppointmentCreated       = "APPOINTMENT_CREATED"
	AppointmentUpdated       = "APPOINTMENT_UPDATED"
	CollectionOpened         = "COLLECTION_OPENED"
	CollectionPaid           = "COLLECTION_PAID"
	CollectionDueDateChanged = "COLLECTION_DUE_DATE_CHANGED"
)

type Event struct {
	ID            int64
	TenantID      string
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type Writer interface {
	InsertEvent(ctx context.Context, ev Event) error
}

// Recorder writes audit events best-effort: failures are logged and dropped.
type Recorder struct {
	w      Writer
	logger *logging.Logger
}

func NewRecorder(w Writer, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{w: w, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, tenantID string, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	if r == nil || r.w == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := Event{
		TenantID:      tenantID,
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := r.w.InsertEvent(ctx, ev); err != nil {
		r.logger.Warn().
			Err(err).
			Str("tenant_id", tenantID).
			Str("appointment_id", appointmentID.String()).
			Str("event_type", eventType).
			Msg("failed to insert event log")
	}
}

type PgWriter struct {
	pool db.Querier
}

func NewPgWriter(pool db.Querier) *PgWriter {
	return &PgWriter{pool: pool}
}

func (w *PgWriter) InsertEvent(ctx context.Context, ev Event) error {
	_, err := db.Conn(ctx, w.pool).Exec(ctx, `
		INSERT INTO event_logs (tenant_id, event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.TenantID, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
