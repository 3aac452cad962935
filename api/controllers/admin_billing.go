package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/playgate/api/responses"
	"github.com/angelmondragon/playgate/api/validators"
	"github.com/angelmondragon/playgate/internal/catalog"
	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/pkg/logger"
)

// BillingAdmin records plan and rental state reported by the billing system.
type BillingAdmin interface {
	SaveSubscription(ctx context.Context, viewerID uuid.UUID, state policy.SubscriptionState) error
	RecordRental(ctx context.Context, in catalog.RecordRentalInput) (catalog.RentalReceipt, error)
	CompleteRentalPayment(ctx context.Context, rentalID uuid.UUID) (policy.RentalRecord, error)
}

func AdminSaveSubscription(svc BillingAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("billing store"))
			return
		}
		viewerID, err := validators.ParseUUIDParam(r, "viewerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body policy.SubscriptionState
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SaveSubscription(r.Context(), viewerID, body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, body)
	}
}

func AdminRecordRental(svc BillingAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("billing store"))
			return
		}
		var body catalog.RecordRentalInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		receipt, err := svc.RecordRental(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, receipt)
	}
}

func AdminCompleteRental(svc BillingAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("billing store"))
			return
		}
		rentalID, err := validators.ParseUUIDParam(r, "rentalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rental, err := svc.CompleteRentalPayment(r.Context(), rentalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rental)
	}
}
