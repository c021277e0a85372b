package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jhpark-dev/shopmall-backend/pkg/enums"
)

// Order is the header row of a placed order. Amount is the sum of line
// subtotals and excludes the delivery fee.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         string              `gorm:"column:user_id;not null;index"`
	OrderType      enums.OrderType     `gorm:"column:order_type;type:order_type;not null;default:'standard'"`
	Status         enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'placed'"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	Amount         int64               `gorm:"column:amount;not null;default:0"`
	DeliveryFee    int64               `gorm:"column:delivery_fee;not null;default:0"`
	ReceiverName   string              `gorm:"column:receiver_name;not null"`
	ReceiverPhone  string              `gorm:"column:receiver_phone;not null"`
	Address        string              `gorm:"column:address;not null"`
	AddressDetail  *string             `gorm:"column:address_detail"`
	DeliveryMemo   *string             `gorm:"column:delivery_memo"`
	ExpectedArrive *time.Time          `gorm:"column:expected_arrival"`
	Lines          []OrderLine         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLine is one product entry frozen into an order at checkout. Fee and
// payment status are snapshots taken when the line is written and never
// re-derive from live state.
type OrderLine struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	ProductCode   string              `gorm:"column:product_code;not null"`
	ProductName   string              `gorm:"column:product_name;not null"`
	Quantity      int                 `gorm:"column:quantity;not null"`
	UnitPrice     int64               `gorm:"column:unit_price;not null"`
	Subtotal      int64               `gorm:"column:subtotal;not null"`
	DeliveryFee   int64               `gorm:"column:delivery_fee;not null;default:0"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'paid'"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
