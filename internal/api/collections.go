package api

import (
	"net/http"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/collection"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

func listCollectionsHandler(svc CollectionService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			f   collection.Filter
			err error
		)
		if raw := r.URL.Query().Get("status"); raw != "" {
			st := collection.Status(raw)
			if !st.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_query", "unknown status "+raw)
				return
			}
			f.Status = &st
		}
		for name, dst := range map[string]**time.Time{
			"due_from":         &f.DueFrom,
			"due_to":           &f.DueTo,
			"appointment_from": &f.AppointmentFrom,
			"appointment_to":   &f.AppointmentTo,
		} {
			if *dst, err = optionalTime(r, name); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
				return
			}
		}
		if f.ProfessionalID, err = optionalUUID(r, "professional_id"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		if f.SiteID, err = optionalUUID(r, "site_id"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		if f.Limit, f.Offset, err = page(r); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}

		cols, err := svc.ListAndReconcile(r.Context(), principal(r).TenantID, f)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		items := make([]CollectionResponse, 0, len(cols))
		for i := range cols {
			items = append(items, toCollectionResponse(&cols[i]))
		}
		writeJSON(w, http.StatusOK, ListResponse[CollectionResponse]{Items: items, Limit: f.Limit, Offset: f.Offset})
	}
}

func collectionKPIsHandler(svc CollectionService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := optionalTime(r, "from")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		to, err := optionalTime(r, "to")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}

		var window *collection.DateRange
		switch {
		case from != nil && to != nil:
			window = &collection.DateRange{From: *from, To: *to}
		case from != nil || to != nil:
			writeError(w, http.StatusBadRequest, "invalid_query", "from and to must be given together")
			return
		}

		kpis, err := svc.GetKPIs(r.Context(), principal(r).TenantID, window)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, KPIResponse{
			Pending: toKPIBucket(kpis.Pending),
			Overdue: toKPIBucket(kpis.Overdue),
			Paid:    toKPIBucket(kpis.Paid),
		})
	}
}

func getCollectionHandler(svc CollectionService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, err := uuidParam(r, "appointmentID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		c, err := svc.Get(r.Context(), principal(r).TenantID, apptID)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toCollectionResponse(c))
	}
}

func markPaidHandler(svc CollectionService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, err := uuidParam(r, "appointmentID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		var req MarkPaidRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		p := principal(r)
		var paidAt time.Time
		if req.PaidAt != nil {
			paidAt = *req.PaidAt
		}
		c, err := svc.MarkAsPaid(r.Context(), p.TenantID, apptID, paidAt, req.Notes, p.UserID)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toCollectionResponse(c))
	}
}

func updateDueDateHandler(svc CollectionService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, err := uuidParam(r, "appointmentID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		var req UpdateDueDateRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		p := principal(r)
		c, err := svc.UpdateDueDate(r.Context(), p.TenantID, apptID, req.DueDate, p.UserID)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toCollectionResponse(c))
	}
}
