package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/harborline/storefront-backend/api/responses"
	"github.com/harborline/storefront-backend/api/validators"
	checkoutsvc "github.com/harborline/storefront-backend/internal/checkout"
	pkgerrors "github.com/harborline/storefront-backend/pkg/errors"
	"github.com/harborline/storefront-backend/pkg/logger"
)

type placeOrderRequest struct {
	UserID            uuid.UUID `json:"user_id" validate:"required"`
	ShippingAddressID uuid.UUID `json:"shipping_address_id" validate:"required"`
}

// PlaceOrder converts the user's cart into an order.
func PlaceOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithUserID(ctx, payload.UserID.String())
		}

		order, err := svc.PlaceOrder(ctx, payload.UserID, payload.ShippingAddressID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithOrderID(ctx, order.ID.String())
			logg.Info(ctx, "order.placed")
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}
