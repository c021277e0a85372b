package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jhpark-dev/shopmall-backend/pkg/enums"
)

// Product represents a catalog listing. Prices are integer won.
type Product struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductCode  string           `gorm:"column:product_code;not null;uniqueIndex"`
	Name         string           `gorm:"column:name;not null"`
	Description  *string          `gorm:"column:description"`
	Price        int64            `gorm:"column:price;not null"`
	DeliveryFee  int64            `gorm:"column:delivery_fee;not null;default:0"`
	Stock        int              `gorm:"column:stock;not null;default:0"`
	SaleStatus   enums.SaleStatus `gorm:"column:sale_status;type:sale_status;not null;default:'on_sale'"`
	SaleStartsAt *time.Time       `gorm:"column:sale_starts_at"`
	SaleEndsAt   *time.Time       `gorm:"column:sale_ends_at"`
	ImageURL     *string          `gorm:"column:image_url"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
