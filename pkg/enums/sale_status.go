package enums

import "fmt"

// SaleStatus controls whether a product may be placed into a basket or
// checked out.
type SaleStatus string

const (
	SaleStatusOnSale    SaleStatus = "on_sale"
	SaleStatusSoldOut   SaleStatus = "sold_out"
	SaleStatusSuspended SaleStatus = "suspended"
	SaleStatusScheduled SaleStatus = "scheduled"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusOnSale,
	SaleStatusSoldOut,
	SaleStatusSuspended,
	SaleStatusScheduled,
}

// String implements fmt.Stringer.
func (s SaleStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SaleStatus.
func (s SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSaleStatus converts raw input into a SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	for _, candidate := range validSaleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}
