package basket

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jhpark-dev/shopmall-backend/pkg/db/models"
	"github.com/jhpark-dev/shopmall-backend/pkg/enums"
	pkgerrors "github.com/jhpark-dev/shopmall-backend/pkg/errors"
	"github.com/jhpark-dev/shopmall-backend/pkg/metrics"
	"gorm.io/gorm"
)

type stubBasketRepo struct {
	basket *models.Basket
	lines  []*models.BasketLine
}

func (s *stubBasketRepo) WithTx(tx *gorm.DB) BasketRepository { return s }

func (s *stubBasketRepo) FindByUser(ctx context.Context, userID string) (*models.Basket, error) {
	if s.basket == nil || s.basket.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	out := *s.basket
	out.Lines = nil
	for _, line := range s.lines {
		out.Lines = append(out.Lines, *line)
	}
	return &out, nil
}

func (s *stubBasketRepo) FindOrCreateByUser(ctx context.Context, userID string) (*models.Basket, error) {
	if s.basket == nil {
		s.basket = &models.Basket{ID: uuid.New(), UserID: userID}
	}
	return s.FindByUser(ctx, userID)
}

func (s *stubBasketRepo) FindLine(ctx context.Context, basketID uuid.UUID, productCode string) (*models.BasketLine, error) {
	for _, line := range s.lines {
		if line.BasketID == basketID && line.ProductCode == productCode {
			out := *line
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBasketRepo) CreateLine(ctx context.Context, line *models.BasketLine) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	stored := *line
	s.lines = append(s.lines, &stored)
	return nil
}

func (s *stubBasketRepo) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	for _, line := range s.lines {
		if line.ID == lineID {
			line.Quantity = quantity
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubBasketRepo) UpdateLinePrice(ctx context.Context, lineID uuid.UUID, unitPrice int64) error {
	for _, line := range s.lines {
		if line.ID == lineID {
			line.UnitPrice = unitPrice
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubBasketRepo) ListLines(ctx context.Context, basketID uuid.UUID) ([]models.BasketLine, error) {
	var out []models.BasketLine
	for _, line := range s.lines {
		if line.BasketID == basketID {
			out = append(out, *line)
		}
	}
	return out, nil
}

func (s *stubBasketRepo) DeleteLines(ctx context.Context, basketID uuid.UUID, productCodes []string) (int64, error) {
	wanted := map[string]struct{}{}
	for _, code := range productCodes {
		wanted[code] = struct{}{}
	}
	var kept []*models.BasketLine
	var removed int64
	for _, line := range s.lines {
		if _, ok := wanted[line.ProductCode]; ok && line.BasketID == basketID {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	s.lines = kept
	return removed, nil
}

func (s *stubBasketRepo) ClearLines(ctx context.Context, basketID uuid.UUID) error {
	s.lines = nil
	return nil
}

type stubProducts struct {
	byCode map[string]*models.Product
}

func (s stubProducts) FindByCode(ctx context.Context, code string) (*models.Product, error) {
	product, ok := s.byCode[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *product
	return &out, nil
}

func (s stubProducts) FindByCodes(ctx context.Context, codes []string) ([]models.Product, error) {
	var out []models.Product
	for _, code := range codes {
		if product, ok := s.byCode[code]; ok {
			out = append(out, *product)
		}
	}
	return out, nil
}

type stubAnon struct {
	lines   []AnonymousLine
	deleted bool
}

func (s *stubAnon) Load(ctx context.Context, sessionID string) ([]AnonymousLine, error) {
	return s.lines, nil
}

func (s *stubAnon) Save(ctx context.Context, sessionID string, lines []AnonymousLine) error {
	s.lines = lines
	return nil
}

func (s *stubAnon) Delete(ctx context.Context, sessionID string) error {
	s.deleted = true
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func onSale(code string, price int64, stock int) *models.Product {
	return &models.Product{
		ID:          uuid.New(),
		ProductCode: code,
		Name:        "product " + code,
		Price:       price,
		Stock:       stock,
		SaleStatus:  enums.SaleStatusOnSale,
	}
}

func newTestBasketService(t *testing.T, repo BasketRepository, products productLoader, anon anonymousCarts) Service {
	t.Helper()
	svc, err := NewService(repo, products, anon, stubTxRunner{}, metrics.NewCheckoutMetrics(nil), 999)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func TestAddLineSnapshotsPrice(t *testing.T) {
	t.Parallel()

	repo := &stubBasketRepo{}
	products := stubProducts{byCode: map[string]*models.Product{"P-1": onSale("P-1", 1000, 10)}}
	svc := newTestBasketService(t, repo, products, &stubAnon{})

	view, err := svc.AddLine(context.Background(), "user-1", "P-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(view.Lines))
	}
	if view.Lines[0].UnitPrice != 1000 || view.Lines[0].Subtotal != 2000 {
		t.Fatalf("unexpected line pricing: %+v", view.Lines[0])
	}
	if view.TotalAmount != 2000 || view.TotalQuantity != 2 {
		t.Fatalf("unexpected totals: %+v", view)
	}
}

func TestAddLineMergesQuantityKeepsSnapshot(t *testing.T) {
	t.Parallel()

	repo := &stubBasketRepo{}
	product := onSale("P-1", 1000, 10)
	products := stubProducts{byCode: map[string]*models.Product{"P-1": product}}
	svc := newTestBasketService(t, repo, products, &stubAnon{})

	if _, err := svc.AddLine(context.Background(), "user-1", "P-1", 2); err != nil {
		t.Fatalf("first add: %v", err)
	}

	// catalog price moves after the snapshot
	product.Price = 1500

	view, err := svc.AddLine(context.Background(), "user-1", "P-1", 3)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("expected merged line, got %d lines", len(view.Lines))
	}
	line := view.Lines[0]
	if line.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", line.Quantity)
	}
	if line.UnitPrice != 1000 {
		t.Fatalf("expected snapshot price to survive, got %d", line.UnitPrice)
	}
	if !line.PriceChanged || line.CurrentPrice != 1500 {
		t.Fatalf("expected price drift to be flagged: %+v", line)
	}
}

func TestAddLineOverflowLeavesQuantity(t *testing.T) {
	t.Parallel()

	repo := &stubBasketRepo{}
	products := stubProducts{byCode: map[string]*models.Product{"P-1": onSale("P-1", 1000, 3)}}
	svc := newTestBasketService(t, repo, products, &stubAnon{})

	if _, err := svc.AddLine(context.Background(), "user-1", "P-1", 2); err != nil {
		t.Fatalf("first add: %v", err)
	}

	// merging 2+2 would exceed the remaining stock of 3
	_, err := svc.AddLine(context.Background(), "user-1", "P-1", 2)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStock {
		t.Fatalf("expected stock error, got %v", err)
	}

	view, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Quantity != 2 {
		t.Fatalf("expected the original quantity to survive, got %+v", view.Lines)
	}
}

func TestAddLineRejectsUnpurchasable(t *testing.T) {
	t.Parallel()

	soldOut := onSale("P-2", 500, 10)
	soldOut.SaleStatus = enums.SaleStatusSoldOut
	products := stubProducts{byCode: map[string]*models.Product{"P-2": soldOut}}
	svc := newTestBasketService(t, &stubBasketRepo{}, products, &stubAnon{})

	_, err := svc.AddLine(context.Background(), "user-1", "P-2", 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStock {
		t.Fatalf("expected stock error, got %v", err)
	}
}

func TestAddLineUnknownProduct(t *testing.T) {
	t.Parallel()

	svc := newTestBasketService(t, &stubBasketRepo{}, stubProducts{byCode: map[string]*models.Product{}}, &stubAnon{})

	_, err := svc.AddLine(context.Background(), "user-1", "NOPE", 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateQuantitiesPartialSuccess(t *testing.T) {
	t.Parallel()

	repo := &stubBasketRepo{}
	products := stubProducts{byCode: map[string]*models.Product{
		"P-1": onSale("P-1", 1000, 10),
		"P-2": onSale("P-2", 2000, 3),
	}}
	svc := newTestBasketService(t, repo, products, &stubAnon{})

	ctx := context.Background()
	if _, err := svc.AddLine(ctx, "user-1", "P-1", 1); err != nil {
		t.Fatalf("seed P-1: %v", err)
	}
	if _, err := svc.AddLine(ctx, "user-1", "P-2", 1); err != nil {
		t.Fatalf("seed P-2: %v", err)
	}

	results, err := svc.UpdateQuantities(ctx, "user-1", []LineUpdate{
		{ProductCode: "P-1", Quantity: 5},
		{ProductCode: "P-2", Quantity: 4},  // only 3 in stock
		{ProductCode: "P-9", Quantity: 1},  // not in basket
		{ProductCode: "P-1", Quantity: -1}, // invalid quantity
	})
	if err != nil {
		t.Fatalf("unexpected batch error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if !results[0].OK {
		t.Fatalf("expected P-1 update to succeed: %+v", results[0])
	}
	if results[1].OK || results[1].Code != string(pkgerrors.CodeStock) {
		t.Fatalf("expected stock failure for P-2: %+v", results[1])
	}
	if results[2].OK || results[2].Code != string(pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for P-9: %+v", results[2])
	}
	if results[3].OK || results[3].Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation failure for negative qty: %+v", results[3])
	}

	view, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Lines[0].Quantity != 5 {
		t.Fatalf("expected applied quantity to persist, got %d", view.Lines[0].Quantity)
	}
	if view.Lines[1].Quantity != 1 {
		t.Fatalf("expected failed update to leave quantity untouched, got %d", view.Lines[1].Quantity)
	}
}

func TestRemoveLinesIgnoresMissingCodes(t *testing.T) {
	t.Parallel()

	repo := &stubBasketRepo{}
	products := stubProducts{byCode: map[string]*models.Product{"P-1": onSale("P-1", 1000, 10)}}
	svc := newTestBasketService(t, repo, products, &stubAnon{})

	ctx := context.Background()
	if _, err := svc.AddLine(ctx, "user-1", "P-1", 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	removed, err := svc.RemoveLines(ctx, "user-1", []string{"P-1", "P-404"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}

func TestClearMissingBasketIsNoop(t *testing.T) {
	t.Parallel()

	svc := newTestBasketService(t, &stubBasketRepo{}, stubProducts{byCode: map[string]*models.Product{}}, &stubAnon{})
	if err := svc.Clear(context.Background(), "user-1"); err != nil {
		t.Fatalf("expected clear on empty basket to succeed, got %v", err)
	}
}

func TestGetWithoutBasketReturnsEmptyView(t *testing.T) {
	t.Parallel()

	svc := newTestBasketService(t, &stubBasketRepo{}, stubProducts{byCode: map[string]*models.Product{}}, &stubAnon{})
	view, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Lines) != 0 || view.TotalAmount != 0 {
		t.Fatalf("expected empty view, got %+v", view)
	}
}

func TestRefreshPricesReconcilesSnapshots(t *testing.T) {
	t.Parallel()

	repo := &stubBasketRepo{}
	p1 := onSale("P-1", 1000, 10)
	p2 := onSale("P-2", 2000, 10)
	products := stubProducts{byCode: map[string]*models.Product{"P-1": p1, "P-2": p2}}
	svc := newTestBasketService(t, repo, products, &stubAnon{})

	ctx := context.Background()
	if _, err := svc.AddLine(ctx, "user-1", "P-1", 1); err != nil {
		t.Fatalf("seed P-1: %v", err)
	}
	if _, err := svc.AddLine(ctx, "user-1", "P-2", 1); err != nil {
		t.Fatalf("seed P-2: %v", err)
	}

	p1.Price = 1200

	outcome, err := svc.RefreshPrices(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.PriceChanges) != 1 {
		t.Fatalf("expected 1 change, got %d", len(outcome.PriceChanges))
	}
	change := outcome.PriceChanges[0]
	if change.ProductCode != "P-1" || change.OldPrice != 1000 || change.NewPrice != 1200 {
		t.Fatalf("unexpected change: %+v", change)
	}
	if len(outcome.Removed) != 0 || len(outcome.Clamped) != 0 {
		t.Fatalf("expected price-only outcome, got %+v", outcome)
	}

	view, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Lines[0].UnitPrice != 1200 || view.Lines[0].PriceChanged {
		t.Fatalf("expected reconciled snapshot, got %+v", view.Lines[0])
	}
}

func TestRefreshPricesDropsAndClampsDeadLines(t *testing.T) {
	t.Parallel()

	repo := &stubBasketRepo{}
	keeper := onSale("P-1", 1000, 10)
	scarce := onSale("P-2", 2000, 10)
	doomed := onSale("P-3", 500, 10)
	products := stubProducts{byCode: map[string]*models.Product{
		"P-1": keeper, "P-2": scarce, "P-3": doomed,
	}}
	svc := newTestBasketService(t, repo, products, &stubAnon{})

	ctx := context.Background()
	for _, code := range []string{"P-1", "P-2", "P-3"} {
		if _, err := svc.AddLine(ctx, "user-1", code, 5); err != nil {
			t.Fatalf("seed %s: %v", code, err)
		}
	}

	// the catalog moves under the basket
	scarce.Stock = 2
	doomed.SaleStatus = enums.SaleStatusSuspended

	outcome, err := svc.RefreshPrices(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Removed) != 1 || outcome.Removed[0] != "P-3" {
		t.Fatalf("expected P-3 removed, got %v", outcome.Removed)
	}
	if len(outcome.Clamped) != 1 || outcome.Clamped[0].ProductCode != "P-2" || outcome.Clamped[0].NewQuantity != 2 {
		t.Fatalf("unexpected clamp: %+v", outcome.Clamped)
	}

	view, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Lines) != 2 {
		t.Fatalf("expected 2 surviving lines, got %d", len(view.Lines))
	}
	for _, line := range view.Lines {
		if line.ProductCode == "P-2" && line.Quantity != 2 {
			t.Fatalf("expected clamped quantity 2, got %d", line.Quantity)
		}
	}
}

func TestMergeAnonymousCart(t *testing.T) {
	t.Parallel()

	repo := &stubBasketRepo{}
	soldOut := onSale("P-3", 700, 5)
	soldOut.SaleStatus = enums.SaleStatusSoldOut
	products := stubProducts{byCode: map[string]*models.Product{
		"P-1": onSale("P-1", 1000, 10),
		"P-3": soldOut,
	}}
	anon := &stubAnon{lines: []AnonymousLine{
		{ProductCode: "P-1", Quantity: 2},
		{ProductCode: "P-3", Quantity: 1},
	}}
	svc := newTestBasketService(t, repo, products, anon)

	results, err := svc.MergeAnonymousCart(context.Background(), "user-1", "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].OK {
		t.Fatalf("expected P-1 to merge: %+v", results[0])
	}
	if results[1].OK || results[1].Code != string(pkgerrors.CodeStock) {
		t.Fatalf("expected P-3 to fail on stock: %+v", results[1])
	}
	if !anon.deleted {
		t.Fatal("expected session cart to be dropped after merge")
	}

	view, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].ProductCode != "P-1" {
		t.Fatalf("expected only the purchasable line to land, got %+v", view.Lines)
	}
}

func TestMergeAnonymousCartIntoExistingLine(t *testing.T) {
	t.Parallel()

	repo := &stubBasketRepo{}
	products := stubProducts{byCode: map[string]*models.Product{"P-1": onSale("P-1", 1000, 10)}}
	anon := &stubAnon{lines: []AnonymousLine{{ProductCode: "P-1", Quantity: 2}}}
	svc := newTestBasketService(t, repo, products, anon)

	if _, err := svc.AddLine(context.Background(), "user-1", "P-1", 1); err != nil {
		t.Fatalf("seeding basket: %v", err)
	}

	results, err := svc.MergeAnonymousCart(context.Background(), "user-1", "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || !results[0].OK {
		t.Fatalf("expected the session line to merge, got %+v", results)
	}

	view, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("expected a single merged line, got %d", len(view.Lines))
	}
	if view.Lines[0].Quantity != 3 {
		t.Fatalf("expected quantity 3 after merging 1+2, got %d", view.Lines[0].Quantity)
	}
}

func TestAddSessionLineMergesQuantities(t *testing.T) {
	t.Parallel()

	products := stubProducts{byCode: map[string]*models.Product{"P-1": onSale("P-1", 1000, 5)}}
	anon := &stubAnon{}
	svc := newTestBasketService(t, &stubBasketRepo{}, products, anon)

	if _, err := svc.AddSessionLine(context.Background(), "sess-1", "P-1", 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	lines, err := svc.AddSessionLine(context.Background(), "sess-1", "P-1", 1)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("expected one session line with quantity 3, got %+v", lines)
	}

	// merging past the remaining stock is rejected, the cart keeps qty 3
	_, err = svc.AddSessionLine(context.Background(), "sess-1", "P-1", 3)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStock {
		t.Fatalf("expected stock error, got %v", err)
	}
	if len(anon.lines) != 1 || anon.lines[0].Quantity != 3 {
		t.Fatalf("expected stored cart to keep quantity 3, got %+v", anon.lines)
	}
}

func TestScheduledProductBecomesPurchasableInView(t *testing.T) {
	t.Parallel()

	repo := &stubBasketRepo{}
	started := time.Now().Add(-time.Hour)
	scheduled := onSale("P-5", 900, 5)
	scheduled.SaleStatus = enums.SaleStatusScheduled
	scheduled.SaleStartsAt = &started
	products := stubProducts{byCode: map[string]*models.Product{"P-5": scheduled}}
	svc := newTestBasketService(t, repo, products, &stubAnon{})

	view, err := svc.AddLine(context.Background(), "user-1", "P-5", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !view.Lines[0].Purchasable {
		t.Fatalf("expected started scheduled product to be purchasable: %+v", view.Lines[0])
	}
}
