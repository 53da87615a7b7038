package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/collection"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/pricing"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationFields maps each failing json field to the tag it failed.
func validationFields(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the 400 response itself and reports false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	// An empty body decodes to the zero request; validation decides whether
	// that is acceptable.
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Details: "request body failed validation",
			Fields:  validationFields(err),
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleError maps domain and persistence errors to HTTP responses.
func handleError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	var conflict *appointment.ConflictError
	switch {
	case errors.As(err, &conflict):
		resp := ErrorResponse{
			Error:   "conflict",
			Details: conflict.Error(),
			Subject: string(conflict.Subject),
		}
		if conflict.ExistingID != uuid.Nil {
			id := conflict.ExistingID
			resp.ConflictingAppointmentID = &id
		}
		writeJSON(w, http.StatusConflict, resp)

	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     "slot_being_booked",
			Details:   "slot is currently being booked, please retry shortly",
			Retryable: true,
		})

	case errors.Is(err, appointment.ErrInvalidInterval),
		errors.Is(err, appointment.ErrInvalidType),
		errors.Is(err, appointment.ErrInvalidStatus),
		errors.Is(err, appointment.ErrMissingSubject),
		errors.Is(err, collection.ErrInvalidAmount),
		errors.Is(err, collection.ErrInvalidRange),
		errors.Is(err, collection.ErrInvalidStatus),
		errors.Is(err, pricing.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, appointment.ErrMissingTenant),
		errors.Is(err, appointment.ErrMissingActor),
		errors.Is(err, collection.ErrMissingTenant),
		errors.Is(err, collection.ErrMissingActor),
		errors.Is(err, pricing.ErrMissingTenant),
		errors.Is(err, pricing.ErrMissingActor):
		writeError(w, http.StatusUnauthorized, "missing_identity", err.Error())

	case errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, collection.ErrUnknownAppointment):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, collection.ErrCollectionNotFound):
		writeError(w, http.StatusNotFound, "collection_not_found", err.Error())
	case errors.Is(err, pricing.ErrNoCurrentPrice):
		writeError(w, http.StatusNotFound, "no_current_price", err.Error())
	case errors.Is(err, pricing.ErrVersionNotFound):
		writeError(w, http.StatusNotFound, "price_version_not_found", err.Error())

	case errors.Is(err, collection.ErrCollectionExists):
		writeError(w, http.StatusConflict, "collection_exists", err.Error())
	case errors.Is(err, pricing.ErrPriceUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "price_unavailable", err.Error())

	case errors.Is(err, redisclient.ErrLockUnavailable):
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("booking lock service unavailable")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:     "lock_service_unavailable",
			Details:   "booking coordination is temporarily unavailable, retry the request",
			Retryable: true,
		})

	case errors.Is(err, db.ErrPersistence):
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("persistence failure")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:     "persistence_failure",
			Details:   "storage is temporarily unavailable, retry the request",
			Retryable: true,
		})

	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", GetRequestID(r.Context())).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
