package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

func createAppointmentHandler(svc AppointmentService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		apptType := appointment.TypeRegular
		if req.Type != "" {
			apptType = appointment.AppointmentType(req.Type)
		}

		p := principal(r)
		appt, err := svc.Create(r.Context(), p.TenantID, p.UserID, appointment.CreateInput{
			PatientID:      uuid.MustParse(req.PatientID),
			ProfessionalID: uuid.MustParse(req.ProfessionalID),
			SiteID:         uuid.MustParse(req.SiteID),
			StartTime:      req.StartTime,
			EndTime:        req.EndTime,
			Type:           apptType,
			Notes:          req.Notes,
		})
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc AppointmentService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		var req UpdateAppointmentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		patch := appointment.Patch{
			Notes:     req.Notes,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
		}
		if req.Status != nil {
			st := appointment.AppointmentStatus(*req.Status)
			patch.Status = &st
		}

		appt, err := svc.Update(r.Context(), principal(r).TenantID, id, patch)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc AppointmentService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		appt, err := svc.Get(r.Context(), principal(r).TenantID, id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			f   appointment.ListFilter
			err error
		)
		if f.ProfessionalID, err = optionalUUID(r, "professional_id"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		if f.PatientID, err = optionalUUID(r, "patient_id"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		if f.SiteID, err = optionalUUID(r, "site_id"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		if f.From, err = optionalTime(r, "from"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		if f.To, err = optionalTime(r, "to"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			st := appointment.AppointmentStatus(raw)
			if !st.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_query", "unknown status "+raw)
				return
			}
			f.Status = &st
		}
		if f.Limit, f.Offset, err = page(r); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}

		appts, err := svc.List(r.Context(), principal(r).TenantID, f)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		items := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			items = append(items, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, ListResponse[AppointmentResponse]{Items: items, Limit: f.Limit, Offset: f.Offset})
	}
}
