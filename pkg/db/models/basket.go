package models

import (
	"time"

	"github.com/google/uuid"
)

// Basket is the single mutable basket owned by a user.
type Basket struct {
	ID        uuid.UUID    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    string       `gorm:"column:user_id;not null;uniqueIndex"`
	Lines     []BasketLine `gorm:"foreignKey:BasketID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

// BasketLine is one product entry in a basket. UnitPrice is the price
// snapshot captured when the line was created.
type BasketLine struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BasketID    uuid.UUID `gorm:"column:basket_id;type:uuid;not null;index:idx_basket_lines_basket_product,unique"`
	ProductCode string    `gorm:"column:product_code;not null;index:idx_basket_lines_basket_product,unique"`
	Quantity    int       `gorm:"column:quantity;not null"`
	UnitPrice   int64     `gorm:"column:unit_price;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
