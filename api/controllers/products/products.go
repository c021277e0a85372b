package products

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/jhpark-dev/shopmall-backend/api/responses"
	"github.com/jhpark-dev/shopmall-backend/api/validators"
	"github.com/jhpark-dev/shopmall-backend/internal/catalog"
	"github.com/jhpark-dev/shopmall-backend/pkg/enums"
	pkgerrors "github.com/jhpark-dev/shopmall-backend/pkg/errors"
	"github.com/jhpark-dev/shopmall-backend/pkg/logger"
)

type setSaleStatusRequest struct {
	SaleStatus string `json:"sale_status" validate:"required"`
}

// Detail returns a single catalog product by its code.
func Detail(repo catalog.ProductRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := parseProductCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := repo.FindByCode(r.Context(), code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch product"))
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// SetSaleStatus changes a product's sale status. Admin only.
func SetSaleStatus(repo catalog.ProductRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := parseProductCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req setSaleStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseSaleStatus(req.SaleStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sale status"))
			return
		}

		if err := repo.UpdateSaleStatus(r.Context(), code, status); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sale status"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"product_code": code, "sale_status": status.String()})
	}
}

func parseProductCode(r *http.Request) (string, error) {
	code := strings.TrimSpace(chi.URLParam(r, "productCode"))
	if code == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product code is required")
	}
	return code, nil
}
