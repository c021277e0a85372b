package basket

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jhpark-dev/shopmall-backend/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupBasketTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	baskets := `
CREATE TABLE IF NOT EXISTS baskets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`
	basketLines := `
CREATE TABLE IF NOT EXISTS basket_lines (
  id TEXT PRIMARY KEY,
  basket_id TEXT NOT NULL,
  product_code TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (basket_id, product_code)
);`
	require.NoError(t, db.Exec(baskets).Error)
	require.NoError(t, db.Exec(basketLines).Error)

	return db
}

func TestRepositoryFindOrCreateByUser(t *testing.T) {
	db := setupBasketTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := "user-" + uuid.NewString()

	created, err := repo.FindOrCreateByUser(ctx, userID)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	again, err := repo.FindOrCreateByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestRepositoryLineLifecycle(t *testing.T) {
	db := setupBasketTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := "user-" + uuid.NewString()

	basket, err := repo.FindOrCreateByUser(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, repo.CreateLine(ctx, &models.BasketLine{
		BasketID:    basket.ID,
		ProductCode: "P-100",
		Quantity:    2,
		UnitPrice:   1500,
	}))
	require.NoError(t, repo.CreateLine(ctx, &models.BasketLine{
		BasketID:    basket.ID,
		ProductCode: "P-200",
		Quantity:    1,
		UnitPrice:   4000,
	}))

	line, err := repo.FindLine(ctx, basket.ID, "P-100")
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, int64(1500), line.UnitPrice)

	require.NoError(t, repo.UpdateLineQuantity(ctx, line.ID, 7))
	require.NoError(t, repo.UpdateLinePrice(ctx, line.ID, 1600))

	line, err = repo.FindLine(ctx, basket.ID, "P-100")
	require.NoError(t, err)
	assert.Equal(t, 7, line.Quantity)
	assert.Equal(t, int64(1600), line.UnitPrice)

	loaded, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, loaded.Lines, 2)
}

func TestRepositoryDeleteAndClearLines(t *testing.T) {
	db := setupBasketTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := "user-" + uuid.NewString()

	basket, err := repo.FindOrCreateByUser(ctx, userID)
	require.NoError(t, err)

	for _, code := range []string{"P-1", "P-2", "P-3"} {
		require.NoError(t, repo.CreateLine(ctx, &models.BasketLine{
			BasketID:    basket.ID,
			ProductCode: code,
			Quantity:    1,
			UnitPrice:   1000,
		}))
	}

	removed, err := repo.DeleteLines(ctx, basket.ID, []string{"P-1", "P-404"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	lines, err := repo.ListLines(ctx, basket.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	require.NoError(t, repo.ClearLines(ctx, basket.ID))

	lines, err = repo.ListLines(ctx, basket.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestRepositoryFindByUserMissing(t *testing.T) {
	db := setupBasketTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByUser(context.Background(), "user-"+uuid.NewString())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
