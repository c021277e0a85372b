package basket

import (
	"net/http"

	"github.com/jhpark-dev/shopmall-backend/api/middleware"
	"github.com/jhpark-dev/shopmall-backend/api/responses"
	"github.com/jhpark-dev/shopmall-backend/api/validators"
	internalbasket "github.com/jhpark-dev/shopmall-backend/internal/basket"
	"github.com/jhpark-dev/shopmall-backend/pkg/logger"
)

type addLineRequest struct {
	ProductCode string `json:"product_code" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
}

type updateLinesRequest struct {
	Lines []lineUpdateRequest `json:"lines" validate:"required,min=1,dive"`
}

type lineUpdateRequest struct {
	ProductCode string `json:"product_code" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required"`
}

type removeLinesRequest struct {
	ProductCodes []string `json:"product_codes" validate:"required,min=1"`
}

type mergeRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type sessionAddLineRequest struct {
	SessionID   string `json:"session_id" validate:"required"`
	ProductCode string `json:"product_code" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
}

// Fetch returns the caller's basket joined with live catalog data.
func Fetch(svc internalbasket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFrom(r.Context())

		view, err := svc.Get(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AddLine puts a product into the basket.
func AddLine(svc internalbasket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFrom(r.Context())

		var req addLineRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AddLine(r.Context(), actor.UserID, req.ProductCode, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithBasketID(r.Context(), view.BasketID), "basket line added")
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// SessionAddLine puts a product into a pre-login session cart. The cart
// lives in redis until Merge folds it into the user's basket at login.
func SessionAddLine(svc internalbasket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionAddLineRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := svc.AddSessionLine(r.Context(), req.SessionID, req.ProductCode, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"lines": lines})
	}
}

// UpdateLines applies quantity changes line by line and reports per-line outcomes.
func UpdateLines(svc internalbasket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFrom(r.Context())

		var req updateLinesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updates := make([]internalbasket.LineUpdate, 0, len(req.Lines))
		for _, line := range req.Lines {
			updates = append(updates, internalbasket.LineUpdate{
				ProductCode: line.ProductCode,
				Quantity:    line.Quantity,
			})
		}

		results, err := svc.UpdateQuantities(r.Context(), actor.UserID, updates)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"results": results})
	}
}

// RemoveLines deletes the named lines from the basket.
func RemoveLines(svc internalbasket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFrom(r.Context())

		var req removeLinesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		removed, err := svc.RemoveLines(r.Context(), actor.UserID, req.ProductCodes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"removed": removed})
	}
}

// Clear empties the basket.
func Clear(svc internalbasket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFrom(r.Context())

		if err := svc.Clear(r.Context(), actor.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

// RefreshPrices reconciles basket snapshots with the live catalog.
func RefreshPrices(svc internalbasket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFrom(r.Context())

		outcome, err := svc.RefreshPrices(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// Merge folds a pre-login session cart into the basket.
func Merge(svc internalbasket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFrom(r.Context())

		var req mergeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results, err := svc.MergeAnonymousCart(r.Context(), actor.UserID, req.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"results": results})
	}
}
