package api

import (
	"net/http"
	"time"

	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

func currentPriceHandler(svc PricingService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.CurrentPrice(r.Context(), principal(r).TenantID)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toPriceVersionResponse(v))
	}
}

func listPriceVersionsHandler(svc PricingService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versions, err := svc.ListVersions(r.Context(), principal(r).TenantID)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		items := make([]PriceVersionResponse, 0, len(versions))
		for i := range versions {
			items = append(items, toPriceVersionResponse(&versions[i]))
		}
		writeJSON(w, http.StatusOK, ListResponse[PriceVersionResponse]{Items: items, Limit: len(items)})
	}
}

func createPriceVersionHandler(svc PricingService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePriceVersionRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		var effectiveFrom time.Time
		if req.EffectiveFrom != nil {
			effectiveFrom = *req.EffectiveFrom
		}

		p := principal(r)
		v, err := svc.CreateVersion(r.Context(), p.TenantID, *req.PriceAmount, p.UserID, effectiveFrom)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPriceVersionResponse(v))
	}
}

func deactivatePriceVersionHandler(svc PricingService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_price_version_id", err.Error())
			return
		}

		v, err := svc.Deactivate(r.Context(), principal(r).TenantID, id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toPriceVersionResponse(v))
	}
}
