package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/jhpark-dev/shopmall-backend/pkg/db/models"
	"github.com/jhpark-dev/shopmall-backend/pkg/enums"
	pkgerrors "github.com/jhpark-dev/shopmall-backend/pkg/errors"
)

func TestPurchasableOnSaleWithStock(t *testing.T) {
	product := &models.Product{ProductCode: "P-100", Stock: 5, SaleStatus: enums.SaleStatusOnSale}
	if err := Purchasable(product, 5, time.Now()); err != nil {
		t.Fatalf("expected purchasable, got %v", err)
	}
}

func TestPurchasableRejectsByStatus(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name     string
		product  *models.Product
		qty      int
		wantCode pkgerrors.Code
	}{
		{
			name:     "sold out",
			product:  &models.Product{ProductCode: "P-1", Stock: 10, SaleStatus: enums.SaleStatusSoldOut},
			qty:      1,
			wantCode: pkgerrors.CodeStock,
		},
		{
			name:     "suspended",
			product:  &models.Product{ProductCode: "P-2", Stock: 10, SaleStatus: enums.SaleStatusSuspended},
			qty:      1,
			wantCode: pkgerrors.CodeStock,
		},
		{
			name:     "scheduled before start",
			product:  &models.Product{ProductCode: "P-3", Stock: 10, SaleStatus: enums.SaleStatusScheduled, SaleStartsAt: &future},
			qty:      1,
			wantCode: pkgerrors.CodeStock,
		},
		{
			name:     "scheduled without start time",
			product:  &models.Product{ProductCode: "P-4", Stock: 10, SaleStatus: enums.SaleStatusScheduled},
			qty:      1,
			wantCode: pkgerrors.CodeStock,
		},
		{
			name:     "sale window lapsed",
			product:  &models.Product{ProductCode: "P-8", Stock: 10, SaleStatus: enums.SaleStatusOnSale, SaleEndsAt: &past},
			qty:      1,
			wantCode: pkgerrors.CodeStock,
		},
		{
			name:     "insufficient stock",
			product:  &models.Product{ProductCode: "P-5", Stock: 3, SaleStatus: enums.SaleStatusOnSale},
			qty:      4,
			wantCode: pkgerrors.CodeStock,
		},
		{
			name:     "zero quantity",
			product:  &models.Product{ProductCode: "P-6", Stock: 3, SaleStatus: enums.SaleStatusOnSale},
			qty:      0,
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "missing product",
			product:  nil,
			qty:      1,
			wantCode: pkgerrors.CodeNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Purchasable(tc.product, tc.qty, now)
			if err == nil {
				t.Fatalf("expected error")
			}
			var appErr *pkgerrors.Error
			if !errors.As(err, &appErr) {
				t.Fatalf("expected typed error, got %v", err)
			}
			if appErr.Code() != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, appErr.Code())
			}
		})
	}

	// scheduled products open up once the start time passes
	product := &models.Product{ProductCode: "P-7", Stock: 2, SaleStatus: enums.SaleStatusScheduled, SaleStartsAt: &past}
	if err := Purchasable(product, 2, now); err != nil {
		t.Fatalf("expected scheduled product past start to be purchasable, got %v", err)
	}

	// inside the sale window both bounds pass
	windowed := &models.Product{ProductCode: "P-9", Stock: 2, SaleStatus: enums.SaleStatusOnSale, SaleStartsAt: &past, SaleEndsAt: &future}
	if err := Purchasable(windowed, 1, now); err != nil {
		t.Fatalf("expected product inside its sale window to be purchasable, got %v", err)
	}
}
