package catalog

import (
	"time"

	"github.com/jhpark-dev/shopmall-backend/pkg/db/models"
	"github.com/jhpark-dev/shopmall-backend/pkg/enums"
	pkgerrors "github.com/jhpark-dev/shopmall-backend/pkg/errors"
)

// Purchasable reports whether qty units of the product can be sold right now.
// A scheduled product becomes sellable once its start time has passed, and
// any product with a sale end time stops selling once it lapses.
func Purchasable(product *models.Product, qty int, now time.Time) error {
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	if product.SaleEndsAt != nil && now.After(*product.SaleEndsAt) {
		return pkgerrors.New(pkgerrors.CodeStock, "product sale period has ended").
			WithDetails(map[string]any{
				"product_code": product.ProductCode,
				"sale_ends_at": product.SaleEndsAt.UTC(),
			})
	}

	switch product.SaleStatus {
	case enums.SaleStatusOnSale:
		// fall through to the stock check
	case enums.SaleStatusSoldOut:
		return pkgerrors.New(pkgerrors.CodeStock, "product is sold out").
			WithDetails(map[string]any{"product_code": product.ProductCode})
	case enums.SaleStatusSuspended:
		return pkgerrors.New(pkgerrors.CodeStock, "product sales are suspended").
			WithDetails(map[string]any{"product_code": product.ProductCode})
	case enums.SaleStatusScheduled:
		if product.SaleStartsAt == nil || now.Before(*product.SaleStartsAt) {
			details := map[string]any{"product_code": product.ProductCode}
			if product.SaleStartsAt != nil {
				details["sale_starts_at"] = product.SaleStartsAt.UTC()
			}
			return pkgerrors.New(pkgerrors.CodeStock, "product is not on sale yet").
				WithDetails(details)
		}
	default:
		return pkgerrors.New(pkgerrors.CodeStock, "product is not purchasable").
			WithDetails(map[string]any{"product_code": product.ProductCode})
	}

	if product.Stock < qty {
		return pkgerrors.New(pkgerrors.CodeStock, "insufficient stock").
			WithDetails(map[string]any{
				"product_code": product.ProductCode,
				"available":    product.Stock,
				"requested":    qty,
			})
	}
	return nil
}
