package basket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhpark-dev/shopmall-backend/internal/catalog"
	"github.com/jhpark-dev/shopmall-backend/pkg/db/models"
	pkgerrors "github.com/jhpark-dev/shopmall-backend/pkg/errors"
	"github.com/jhpark-dev/shopmall-backend/pkg/metrics"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByCode(ctx context.Context, code string) (*models.Product, error)
	FindByCodes(ctx context.Context, codes []string) ([]models.Product, error)
}

type anonymousCarts interface {
	Load(ctx context.Context, sessionID string) ([]AnonymousLine, error)
	Save(ctx context.Context, sessionID string, lines []AnonymousLine) error
	Delete(ctx context.Context, sessionID string) error
}

// Service exposes basket operations for a logged-in user.
type Service interface {
	AddLine(ctx context.Context, userID, productCode string, quantity int) (*View, error)
	UpdateQuantities(ctx context.Context, userID string, updates []LineUpdate) ([]LineResult, error)
	RemoveLines(ctx context.Context, userID string, productCodes []string) (int64, error)
	Clear(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (*View, error)
	RefreshPrices(ctx context.Context, userID string) (*RefreshOutcome, error)
	AddSessionLine(ctx context.Context, sessionID, productCode string, quantity int) ([]AnonymousLine, error)
	MergeAnonymousCart(ctx context.Context, userID, sessionID string) ([]LineResult, error)
}

type service struct {
	repo     BasketRepository
	products productLoader
	anon     anonymousCarts
	tx       txRunner
	metrics  *metrics.CheckoutMetrics
	maxQty   int
	now      func() time.Time
}

// NewService builds a basket service backed by the provided stack.
func NewService(repo BasketRepository, products productLoader, anon anonymousCarts, tx txRunner, m *metrics.CheckoutMetrics, maxLineQuantity int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("basket repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if anon == nil {
		return nil, fmt.Errorf("anonymous cart store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if maxLineQuantity <= 0 {
		return nil, fmt.Errorf("max line quantity must be positive")
	}
	return &service{
		repo:     repo,
		products: products,
		anon:     anon,
		tx:       tx,
		metrics:  m,
		maxQty:   maxLineQuantity,
		now:      time.Now,
	}, nil
}

// LineUpdate sets a new quantity for one basket line.
type LineUpdate struct {
	ProductCode string
	Quantity    int
}

// LineResult reports the outcome of one line in a batch mutation.
type LineResult struct {
	ProductCode string `json:"product_code"`
	OK          bool   `json:"ok"`
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
}

// PriceChange records a snapshot price reconciled to the live catalog price.
type PriceChange struct {
	ProductCode string `json:"product_code"`
	OldPrice    int64  `json:"old_price"`
	NewPrice    int64  `json:"new_price"`
}

// QuantityClamp records a line quantity reduced to the remaining stock.
type QuantityClamp struct {
	ProductCode string `json:"product_code"`
	OldQuantity int    `json:"old_quantity"`
	NewQuantity int    `json:"new_quantity"`
}

// RefreshOutcome reports everything a reconciliation pass changed.
type RefreshOutcome struct {
	PriceChanges []PriceChange   `json:"price_changes"`
	Removed      []string        `json:"removed"`
	Clamped      []QuantityClamp `json:"clamped"`
}

// View is the read model of a basket returned to callers.
type View struct {
	BasketID      string     `json:"basket_id"`
	UserID        string     `json:"user_id"`
	Lines         []LineView `json:"lines"`
	TotalAmount   int64      `json:"total_amount"`
	TotalQuantity int        `json:"total_quantity"`
}

// LineView is one basket line joined with live catalog data.
type LineView struct {
	ProductCode  string `json:"product_code"`
	ProductName  string `json:"product_name"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unit_price"`
	Subtotal     int64  `json:"subtotal"`
	CurrentPrice int64  `json:"current_price"`
	PriceChanged bool   `json:"price_changed"`
	Purchasable  bool   `json:"purchasable"`
}

// AddLine puts quantity units of a product into the user's basket. Adding a
// product already present merges quantities but keeps the original price
// snapshot.
func (s *service) AddLine(ctx context.Context, userID, productCode string, quantity int) (*View, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product code is required")
	}

	product, err := s.loadProduct(ctx, productCode)
	if err != nil {
		return nil, err
	}
	if err := catalog.Purchasable(product, quantity, s.now()); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		basket, err := repo.FindOrCreateByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading basket")
		}
		return s.upsertLine(ctx, repo, basket, product, quantity)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncBasketMutation("add_line")
	return s.Get(ctx, userID)
}

// upsertLine merges quantity into an existing line or snapshots a new one.
func (s *service) upsertLine(ctx context.Context, repo BasketRepository, basket *models.Basket, product *models.Product, quantity int) error {
	line, err := repo.FindLine(ctx, basket.ID, product.ProductCode)
	switch {
	case err == nil:
		merged := line.Quantity + quantity
		if merged > s.maxQty {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity limit exceeded").
				WithDetails(map[string]any{"product_code": product.ProductCode, "max": s.maxQty})
		}
		// the guard above only saw the increment; the merged quantity must
		// still fit the available stock
		if err := catalog.Purchasable(product, merged, s.now()); err != nil {
			return err
		}
		return repo.UpdateLineQuantity(ctx, line.ID, merged)

	case errors.Is(err, gorm.ErrRecordNotFound):
		if quantity > s.maxQty {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity limit exceeded").
				WithDetails(map[string]any{"product_code": product.ProductCode, "max": s.maxQty})
		}
		return repo.CreateLine(ctx, &models.BasketLine{
			BasketID:    basket.ID,
			ProductCode: product.ProductCode,
			Quantity:    quantity,
			UnitPrice:   product.Price,
		})

	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading basket line")
	}
}

// UpdateQuantities applies quantity changes line by line. A failed line does
// not abort the batch; each line reports its own outcome.
func (s *service) UpdateQuantities(ctx context.Context, userID string, updates []LineUpdate) ([]LineResult, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line update is required")
	}

	basket, err := s.loadBasket(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]LineResult, 0, len(updates))
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, update := range updates {
			results = append(results, s.applyUpdate(ctx, repo, basket, update))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncBasketMutation("update_quantities")
	return results, nil
}

func (s *service) applyUpdate(ctx context.Context, repo BasketRepository, basket *models.Basket, update LineUpdate) LineResult {
	result := LineResult{ProductCode: update.ProductCode}

	line, err := repo.FindLine(ctx, basket.ID, update.ProductCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failedLine(result, pkgerrors.New(pkgerrors.CodeNotFound, "line not in basket"))
		}
		return failedLine(result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading basket line"))
	}

	if update.Quantity <= 0 {
		return failedLine(result, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive"))
	}
	if update.Quantity > s.maxQty {
		return failedLine(result, pkgerrors.New(pkgerrors.CodeValidation, "line quantity limit exceeded"))
	}

	product, err := s.loadProduct(ctx, update.ProductCode)
	if err != nil {
		return failedLine(result, err)
	}
	if err := catalog.Purchasable(product, update.Quantity, s.now()); err != nil {
		return failedLine(result, err)
	}

	if err := repo.UpdateLineQuantity(ctx, line.ID, update.Quantity); err != nil {
		return failedLine(result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating line quantity"))
	}

	result.OK = true
	return result
}

func failedLine(result LineResult, err error) LineResult {
	if appErr := pkgerrors.As(err); appErr != nil {
		result.Code = string(appErr.Code())
		result.Message = appErr.Message()
		return result
	}
	result.Code = string(pkgerrors.CodeInternal)
	result.Message = "unexpected error"
	return result
}

// RemoveLines deletes the named lines and reports how many were removed.
// Codes not present in the basket are ignored.
func (s *service) RemoveLines(ctx context.Context, userID string, productCodes []string) (int64, error) {
	if userID == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(productCodes) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one product code is required")
	}

	basket, err := s.loadBasket(ctx, userID)
	if err != nil {
		return 0, err
	}

	removed, err := s.repo.DeleteLines(ctx, basket.ID, productCodes)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "removing basket lines")
	}
	s.metrics.IncBasketMutation("remove_lines")
	return removed, nil
}

// Clear empties the basket. Clearing an already empty basket is a no-op.
func (s *service) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	basket, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading basket")
	}

	if err := s.repo.ClearLines(ctx, basket.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing basket")
	}
	s.metrics.IncBasketMutation("clear")
	return nil
}

// Get returns the basket joined with live catalog data. A user without a
// basket gets an empty view.
func (s *service) Get(ctx context.Context, userID string) (*View, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	basket, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &View{UserID: userID, Lines: []LineView{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading basket")
	}

	return s.buildView(ctx, basket)
}

func (s *service) buildView(ctx context.Context, basket *models.Basket) (*View, error) {
	view := &View{
		BasketID: basket.ID.String(),
		UserID:   basket.UserID,
		Lines:    make([]LineView, 0, len(basket.Lines)),
	}

	codes := make([]string, 0, len(basket.Lines))
	for _, line := range basket.Lines {
		codes = append(codes, line.ProductCode)
	}
	products, err := s.products.FindByCodes(ctx, codes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading basket products")
	}
	byCode := make(map[string]*models.Product, len(products))
	for i := range products {
		byCode[products[i].ProductCode] = &products[i]
	}

	now := s.now()
	for _, line := range basket.Lines {
		lv := LineView{
			ProductCode: line.ProductCode,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    line.UnitPrice * int64(line.Quantity),
		}
		if product, ok := byCode[line.ProductCode]; ok {
			lv.ProductName = product.Name
			lv.CurrentPrice = product.Price
			lv.PriceChanged = product.Price != line.UnitPrice
			lv.Purchasable = catalog.Purchasable(product, line.Quantity, now) == nil
		}
		view.Lines = append(view.Lines, lv)
		view.TotalAmount += lv.Subtotal
		view.TotalQuantity += lv.Quantity
	}
	return view, nil
}

// RefreshPrices reconciles the basket with the live catalog: lines whose
// product vanished or stopped selling are removed, quantities above the
// remaining stock are clamped, and drifted price snapshots are rewritten.
// This is the only path that touches a stored unit price.
func (s *service) RefreshPrices(ctx context.Context, userID string) (*RefreshOutcome, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	basket, err := s.loadBasket(ctx, userID)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(basket.Lines))
	for _, line := range basket.Lines {
		codes = append(codes, line.ProductCode)
	}
	products, err := s.products.FindByCodes(ctx, codes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading basket products")
	}
	byCode := make(map[string]models.Product, len(products))
	for _, product := range products {
		byCode[product.ProductCode] = product
	}

	now := s.now()
	outcome := &RefreshOutcome{
		PriceChanges: make([]PriceChange, 0),
		Removed:      make([]string, 0),
		Clamped:      make([]QuantityClamp, 0),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		for _, line := range basket.Lines {
			product, ok := byCode[line.ProductCode]
			if !ok || catalog.Purchasable(&product, 1, now) != nil {
				outcome.Removed = append(outcome.Removed, line.ProductCode)
				continue
			}
			if line.Quantity > product.Stock {
				if err := repo.UpdateLineQuantity(ctx, line.ID, product.Stock); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clamping line quantity")
				}
				outcome.Clamped = append(outcome.Clamped, QuantityClamp{
					ProductCode: line.ProductCode,
					OldQuantity: line.Quantity,
					NewQuantity: product.Stock,
				})
			}
			if product.Price != line.UnitPrice {
				if err := repo.UpdateLinePrice(ctx, line.ID, product.Price); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating line price")
				}
				outcome.PriceChanges = append(outcome.PriceChanges, PriceChange{
					ProductCode: line.ProductCode,
					OldPrice:    line.UnitPrice,
					NewPrice:    product.Price,
				})
			}
		}

		if len(outcome.Removed) > 0 {
			if _, err := repo.DeleteLines(ctx, basket.ID, outcome.Removed); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "removing dead lines")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncBasketMutation("refresh_prices")
	return outcome, nil
}

// AddSessionLine puts a line into a pre-login session cart. Quantities for
// the same product merge. Prices are not snapshotted here; that happens when
// the cart is folded into a persistent basket at login.
func (s *service) AddSessionLine(ctx context.Context, sessionID, productCode string, quantity int) ([]AnonymousLine, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if productCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product code is required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.loadProduct(ctx, productCode)
	if err != nil {
		return nil, err
	}
	if err := catalog.Purchasable(product, quantity, s.now()); err != nil {
		return nil, err
	}

	lines, err := s.anon.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading anonymous cart")
	}

	merged := quantity
	idx := -1
	for i := range lines {
		if lines[i].ProductCode == productCode {
			merged = lines[i].Quantity + quantity
			idx = i
			break
		}
	}
	if merged > s.maxQty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity limit exceeded").
			WithDetails(map[string]any{"product_code": productCode, "max": s.maxQty})
	}
	if err := catalog.Purchasable(product, merged, s.now()); err != nil {
		return nil, err
	}
	if idx >= 0 {
		lines[idx].Quantity = merged
	} else {
		lines = append(lines, AnonymousLine{ProductCode: productCode, Quantity: quantity})
	}

	if err := s.anon.Save(ctx, sessionID, lines); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving anonymous cart")
	}
	s.metrics.IncBasketMutation("session_add_line")
	return lines, nil
}

// MergeAnonymousCart folds a pre-login session cart into the user's basket.
// Lines that fail the purchase guard are reported, not fatal; the session
// cart is dropped once the merge completes.
func (s *service) MergeAnonymousCart(ctx context.Context, userID, sessionID string) ([]LineResult, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	lines, err := s.anon.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading anonymous cart")
	}
	if len(lines) == 0 {
		return []LineResult{}, nil
	}

	results := make([]LineResult, 0, len(lines))
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		basket, err := repo.FindOrCreateByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading basket")
		}
		for _, anon := range lines {
			results = append(results, s.mergeLine(ctx, repo, basket, anon))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.anon.Delete(ctx, sessionID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dropping anonymous cart")
	}
	s.metrics.IncBasketMutation("merge_anonymous")
	return results, nil
}

func (s *service) mergeLine(ctx context.Context, repo BasketRepository, basket *models.Basket, anon AnonymousLine) LineResult {
	result := LineResult{ProductCode: anon.ProductCode}

	product, err := s.loadProduct(ctx, anon.ProductCode)
	if err != nil {
		return failedLine(result, err)
	}
	if err := catalog.Purchasable(product, anon.Quantity, s.now()); err != nil {
		return failedLine(result, err)
	}
	if err := s.upsertLine(ctx, repo, basket, product, anon.Quantity); err != nil {
		return failedLine(result, err)
	}

	result.OK = true
	return result
}

func (s *service) loadBasket(ctx context.Context, userID string) (*models.Basket, error) {
	basket, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "basket not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading basket")
	}
	return basket, nil
}

func (s *service) loadProduct(ctx context.Context, code string) (*models.Product, error) {
	product, err := s.products.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_code": code})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}
	return product, nil
}
