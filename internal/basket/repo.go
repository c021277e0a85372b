package basket

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jhpark-dev/shopmall-backend/pkg/db/models"
	"gorm.io/gorm"
)

// BasketRepository exposes persistence operations for baskets and their lines.
type BasketRepository interface {
	WithTx(tx *gorm.DB) BasketRepository
	FindByUser(ctx context.Context, userID string) (*models.Basket, error)
	FindOrCreateByUser(ctx context.Context, userID string) (*models.Basket, error)
	FindLine(ctx context.Context, basketID uuid.UUID, productCode string) (*models.BasketLine, error)
	CreateLine(ctx context.Context, line *models.BasketLine) error
	UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error
	UpdateLinePrice(ctx context.Context, lineID uuid.UUID, unitPrice int64) error
	ListLines(ctx context.Context, basketID uuid.UUID) ([]models.BasketLine, error)
	DeleteLines(ctx context.Context, basketID uuid.UUID, productCodes []string) (int64, error)
	ClearLines(ctx context.Context, basketID uuid.UUID) error
}

// Repository persists baskets with GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a basket repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) BasketRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser loads the user's basket with its lines.
func (r *Repository) FindByUser(ctx context.Context, userID string) (*models.Basket, error) {
	var basket models.Basket
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("user_id = ?", userID).
		First(&basket).Error
	if err != nil {
		return nil, err
	}
	return &basket, nil
}

// FindOrCreateByUser returns the user's basket, creating an empty one on first use.
func (r *Repository) FindOrCreateByUser(ctx context.Context, userID string) (*models.Basket, error) {
	basket, err := r.FindByUser(ctx, userID)
	if err == nil {
		return basket, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	created := &models.Basket{ID: uuid.New(), UserID: userID}
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		return nil, err
	}
	return created, nil
}

// FindLine loads a single basket line by product code.
func (r *Repository) FindLine(ctx context.Context, basketID uuid.UUID, productCode string) (*models.BasketLine, error) {
	var line models.BasketLine
	err := r.db.WithContext(ctx).
		Where("basket_id = ? AND product_code = ?", basketID, productCode).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// CreateLine inserts a new basket line.
func (r *Repository) CreateLine(ctx context.Context, line *models.BasketLine) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(line).Error
}

// UpdateLineQuantity sets the quantity of an existing line.
func (r *Repository) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.BasketLine{}).
		Where("id = ?", lineID).
		Update("quantity", quantity).Error
}

// UpdateLinePrice replaces the snapshot price of an existing line.
func (r *Repository) UpdateLinePrice(ctx context.Context, lineID uuid.UUID, unitPrice int64) error {
	return r.db.WithContext(ctx).
		Model(&models.BasketLine{}).
		Where("id = ?", lineID).
		Update("unit_price", unitPrice).Error
}

// ListLines returns the lines of a basket in insertion order.
func (r *Repository) ListLines(ctx context.Context, basketID uuid.UUID) ([]models.BasketLine, error) {
	var rows []models.BasketLine
	if err := r.db.WithContext(ctx).
		Where("basket_id = ?", basketID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteLines removes the lines matching the provided product codes and
// reports how many rows were deleted.
func (r *Repository) DeleteLines(ctx context.Context, basketID uuid.UUID, productCodes []string) (int64, error) {
	if len(productCodes) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("basket_id = ? AND product_code IN ?", basketID, productCodes).
		Delete(&models.BasketLine{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ClearLines removes every line from the basket.
func (r *Repository) ClearLines(ctx context.Context, basketID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("basket_id = ?", basketID).
		Delete(&models.BasketLine{}).Error
}
