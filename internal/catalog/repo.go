package catalog

import (
	"context"

	"github.com/jhpark-dev/shopmall-backend/pkg/db/models"
	"github.com/jhpark-dev/shopmall-backend/pkg/enums"
	"gorm.io/gorm"
)

// ProductRepository exposes the catalog reads and stock writes used by the
// basket and order flows.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	FindByCode(ctx context.Context, code string) (*models.Product, error)
	FindByCodes(ctx context.Context, codes []string) ([]models.Product, error)
	DecrementStock(ctx context.Context, code string, qty int) (bool, error)
	RestoreStock(ctx context.Context, code string, qty int) error
	UpdateSaleStatus(ctx context.Context, code string, status enums.SaleStatus) error
}

// Repository persists catalog products.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) ProductRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByCode loads a product by its natural key.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("product_code = ?", code).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByCodes loads products for the provided codes. Missing codes are simply
// absent from the result.
func (r *Repository) FindByCodes(ctx context.Context, codes []string) ([]models.Product, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("product_code IN ?", codes).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// DecrementStock atomically subtracts qty from stock. It reports false when
// the remaining stock was insufficient, leaving the row untouched.
func (r *Repository) DecrementStock(ctx context.Context, code string, qty int) (bool, error) {
	if qty <= 0 {
		return false, nil
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = stock - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_code = ? AND stock >= ?
	`, qty, code, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RestoreStock adds qty back to stock, used when an order is cancelled.
func (r *Repository) RestoreStock(ctx context.Context, code string, qty int) error {
	if qty <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_code = ?
	`, qty, code).Error
}

// UpdateSaleStatus flips the sale status of a product.
func (r *Repository) UpdateSaleStatus(ctx context.Context, code string, status enums.SaleStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_code = ?", code).
		Update("sale_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
