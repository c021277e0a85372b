package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/jhpark-dev/shopmall-backend/pkg/db/models"
	"github.com/jhpark-dev/shopmall-backend/pkg/enums"
	"gorm.io/gorm"
)

// OrderRepository exposes persistence operations for orders and their lines.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *models.Order) error
	CreateLines(ctx context.Context, lines []models.OrderLine) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Order, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	SumLineSubtotals(ctx context.Context, orderID uuid.UUID) (int64, error)
	UpdateAmount(ctx context.Context, orderID uuid.UUID, amount int64) error
	FinalizeAmounts(ctx context.Context, orderID uuid.UUID, amount, deliveryFee int64) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	MarkCancelled(ctx context.Context, orderID uuid.UUID) (bool, error)
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error
	Delete(ctx context.Context, orderID uuid.UUID) error
}

// Repository persists orders with GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new order header.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(order).Error
}

// CreateLines inserts the order lines in one batch.
func (r *Repository) CreateLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		if lines[i].ID == uuid.Nil {
			lines[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

// FindByID loads an order with its lines.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns the user's orders newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Order, error) {
	var rows []models.Order
	q := r.db.WithContext(ctx).
		Preload("Lines").
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByUser returns the total number of orders the user has placed.
func (r *Repository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// SumLineSubtotals recomputes the order amount from its lines.
func (r *Repository) SumLineSubtotals(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("order_id = ?", orderID).
		Select("COALESCE(SUM(subtotal), 0)").
		Scan(&sum).Error
	return sum, err
}

// UpdateAmount sets the order header amount.
func (r *Repository) UpdateAmount(ctx context.Context, orderID uuid.UUID, amount int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("amount", amount).Error
}

// FinalizeAmounts writes the computed amount and delivery fee in one update.
func (r *Repository) FinalizeAmounts(ctx context.Context, orderID uuid.UUID, amount, deliveryFee int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{"amount": amount, "delivery_fee": deliveryFee}).Error
}

// UpdateStatus sets the fulfilment status.
func (r *Repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}

// MarkCancelled flips the status to cancelled only while the order is still
// placed or preparing, and reports whether this call performed the flip.
// The predicate closes the race between two concurrent cancels.
func (r *Repository) MarkCancelled(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID,
			[]enums.OrderStatus{enums.OrderStatusPlaced, enums.OrderStatusPreparing}).
		Update("status", enums.OrderStatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdatePaymentStatus sets the payment status.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("payment_status", status).Error
}

// Delete removes the order; lines go with it via cascade.
func (r *Repository) Delete(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", orderID).
		Delete(&models.Order{}).Error
}
