package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhpark-dev/shopmall-backend/internal/basket"
	"github.com/jhpark-dev/shopmall-backend/internal/catalog"
	"github.com/jhpark-dev/shopmall-backend/pkg/db/models"
	"github.com/jhpark-dev/shopmall-backend/pkg/enums"
	pkgerrors "github.com/jhpark-dev/shopmall-backend/pkg/errors"
	"github.com/jhpark-dev/shopmall-backend/pkg/metrics"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor identifies the caller of an order operation.
type Actor struct {
	UserID string
	Admin  bool
}

func (a Actor) canAccess(order *models.Order) bool {
	return a.Admin || (a.UserID != "" && a.UserID == order.UserID)
}

// CheckoutPolicy carries the pricing and scheduling knobs applied at
// placement time.
type CheckoutPolicy struct {
	DeliveryFee           int64
	FreeDeliveryThreshold int64
	DeliveryPeriodDays    int
}

// Service exposes order lifecycle operations.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, actor Actor, limit, offset int) (*ListResult, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	SetPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (*models.Order, error)
	FinalizeAmount(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	HardDelete(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo     OrderRepository
	baskets  basket.BasketRepository
	products catalog.ProductRepository
	tx       txRunner
	metrics  *metrics.CheckoutMetrics
	policy   CheckoutPolicy
	now      func() time.Time
}

// NewService builds an order service backed by the provided stack.
func NewService(repo OrderRepository, baskets basket.BasketRepository, products catalog.ProductRepository, tx txRunner, m *metrics.CheckoutMetrics, policy CheckoutPolicy) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if baskets == nil {
		return nil, fmt.Errorf("basket repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if policy.DeliveryPeriodDays <= 0 {
		return nil, fmt.Errorf("delivery period must be positive")
	}
	return &service{
		repo:     repo,
		baskets:  baskets,
		products: products,
		tx:       tx,
		metrics:  m,
		policy:   policy,
		now:      time.Now,
	}, nil
}

// DirectLine is the single product of a direct purchase.
type DirectLine struct {
	ProductCode string
	Quantity    int
}

// Receiver carries the delivery destination captured at checkout.
type Receiver struct {
	Name          string
	Phone         string
	Address       string
	AddressDetail *string
	DeliveryMemo  *string
}

// CreateInput is the payload for placing an order. A standard order drains
// the user's basket (optionally restricted to ProductCodes); a direct order
// buys one product without touching the basket.
type CreateInput struct {
	OrderType    enums.OrderType
	ProductCodes []string
	Direct       *DirectLine
	Receiver     Receiver
}

// ListResult pairs one page of orders with the total count.
type ListResult struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
}

// Create places an order atomically: stock is claimed line by line, the
// header and lines are written, the amount is finalized from line subtotals,
// and checked-out basket lines are removed. Any failure rolls the whole
// placement back.
func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*models.Order, error) {
	if actor.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := validateReceiver(input.Receiver); err != nil {
		return nil, err
	}
	orderType := input.OrderType
	if orderType == "" {
		orderType = enums.OrderTypeStandard
	}
	if !orderType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order type")
	}
	if orderType == enums.OrderTypeDirect && input.Direct == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "direct order requires a product")
	}

	started := s.now()
	var placed *models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.repo.WithTx(tx)
		basketRepo := s.baskets.WithTx(tx)
		productRepo := s.products.WithTx(tx)

		lines, basketCodes, err := s.resolveLines(ctx, basketRepo, productRepo, actor.UserID, orderType, input)
		if err != nil {
			return err
		}

		for _, line := range lines {
			ok, err := productRepo.DecrementStock(ctx, line.ProductCode, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claiming stock")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStock, "insufficient stock").
					WithDetails(map[string]any{"product_code": line.ProductCode, "requested": line.Quantity})
			}
		}

		arrival := s.now().AddDate(0, 0, s.policy.DeliveryPeriodDays)
		order := &models.Order{
			UserID:         actor.UserID,
			OrderType:      orderType,
			Status:         enums.OrderStatusPlaced,
			// payment capture happens upstream of this service
			PaymentStatus:  enums.PaymentStatusPaid,
			ReceiverName:   input.Receiver.Name,
			ReceiverPhone:  input.Receiver.Phone,
			Address:        input.Receiver.Address,
			AddressDetail:  input.Receiver.AddressDetail,
			DeliveryMemo:   input.Receiver.DeliveryMemo,
			ExpectedArrive: &arrival,
		}
		if err := orderRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating order")
		}

		for i := range lines {
			lines[i].OrderID = order.ID
		}
		if err := orderRepo.CreateLines(ctx, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating order lines")
		}

		amount, err := orderRepo.SumLineSubtotals(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summing order lines")
		}
		order.DeliveryFee = s.deliveryFeeFor(amount, lines)
		if err := orderRepo.FinalizeAmounts(ctx, order.ID, amount, order.DeliveryFee); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalizing order amount")
		}
		order.Amount = amount

		if err := s.cleanupBasket(ctx, basketRepo, actor.UserID, orderType, basketCodes); err != nil {
			return err
		}

		order.Lines = lines
		placed = order
		return nil
	})

	s.metrics.ObserveCheckout(orderType.String(), s.now().Sub(started))
	if err != nil {
		s.metrics.IncOrderFailed(orderType.String(), failureReason(err))
		return nil, err
	}
	s.metrics.IncOrderPlaced(orderType.String())
	return placed, nil
}

// cleanupBasket runs inside the checkout transaction. Standard orders drop
// the checked-out lines; a direct order empties the basket entirely, since
// the buyer walked away from whatever was queued in it.
func (s *service) cleanupBasket(ctx context.Context, basketRepo basket.BasketRepository, userID string, orderType enums.OrderType, basketCodes []string) error {
	userBasket, err := basketRepo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading basket for cleanup")
	}

	if orderType == enums.OrderTypeDirect {
		if err := basketRepo.ClearLines(ctx, userBasket.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing basket")
		}
		return nil
	}

	if len(basketCodes) == 0 {
		return nil
	}
	if _, err := basketRepo.DeleteLines(ctx, userBasket.ID, basketCodes); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "removing checked out lines")
	}
	return nil
}

// resolveLines builds the order lines from the basket or the direct input.
// Standard orders price lines at the basket snapshot; direct orders price at
// the live catalog price.
func (s *service) resolveLines(ctx context.Context, basketRepo basket.BasketRepository, productRepo catalog.ProductRepository, userID string, orderType enums.OrderType, input CreateInput) ([]models.OrderLine, []string, error) {
	now := s.now()

	if orderType == enums.OrderTypeDirect {
		product, err := s.loadProduct(ctx, productRepo, input.Direct.ProductCode)
		if err != nil {
			return nil, nil, err
		}
		if err := catalog.Purchasable(product, input.Direct.Quantity, now); err != nil {
			return nil, nil, err
		}
		line := models.OrderLine{
			ProductCode:   product.ProductCode,
			ProductName:   product.Name,
			Quantity:      input.Direct.Quantity,
			UnitPrice:     product.Price,
			Subtotal:      product.Price * int64(input.Direct.Quantity),
			DeliveryFee:   product.DeliveryFee,
			PaymentStatus: enums.PaymentStatusPaid,
		}
		return []models.OrderLine{line}, nil, nil
	}

	userBasket, err := basketRepo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "basket is empty")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading basket")
	}

	selected := selectLines(userBasket.Lines, input.ProductCodes)
	if len(selected) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "basket is empty")
	}

	lines := make([]models.OrderLine, 0, len(selected))
	codes := make([]string, 0, len(selected))
	for _, bl := range selected {
		product, err := s.loadProduct(ctx, productRepo, bl.ProductCode)
		if err != nil {
			return nil, nil, err
		}
		if err := catalog.Purchasable(product, bl.Quantity, now); err != nil {
			return nil, nil, err
		}
		lines = append(lines, models.OrderLine{
			ProductCode:   bl.ProductCode,
			ProductName:   product.Name,
			Quantity:      bl.Quantity,
			UnitPrice:     bl.UnitPrice,
			Subtotal:      bl.UnitPrice * int64(bl.Quantity),
			DeliveryFee:   product.DeliveryFee,
			PaymentStatus: enums.PaymentStatusPaid,
		})
		codes = append(codes, bl.ProductCode)
	}
	return lines, codes, nil
}

func selectLines(lines []models.BasketLine, codes []string) []models.BasketLine {
	if len(codes) == 0 {
		return lines
	}
	wanted := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		wanted[code] = struct{}{}
	}
	selected := make([]models.BasketLine, 0, len(codes))
	for _, line := range lines {
		if _, ok := wanted[line.ProductCode]; ok {
			selected = append(selected, line)
		}
	}
	return selected
}

// deliveryFeeFor picks the order-level fee: free above the threshold,
// otherwise the highest per-product fee in the order, falling back to the
// policy default when no product names one. The order ships as one parcel.
func (s *service) deliveryFeeFor(amount int64, lines []models.OrderLine) int64 {
	if s.policy.FreeDeliveryThreshold > 0 && amount >= s.policy.FreeDeliveryThreshold {
		return 0
	}
	fee := s.policy.DeliveryFee
	for _, line := range lines {
		if line.DeliveryFee > fee {
			fee = line.DeliveryFee
		}
	}
	return fee
}

// Get loads an order visible to the actor.
func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

// List returns one page of the actor's orders newest first.
func (s *service) List(ctx context.Context, actor Actor, limit, offset int) (*ListResult, error) {
	if actor.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.repo.ListByUser(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing orders")
	}
	total, err := s.repo.CountByUser(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting orders")
	}
	return &ListResult{Orders: rows, Total: total}, nil
}

// Cancel moves an order to cancelled, cancels its payment and restores the
// claimed stock, all in one transaction. Only placed and preparing orders
// may be cancelled.
func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	if !Cancellable(order.Status) {
		return nil, cancellationClosedError(order.Status)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.cancelInTx(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return s.loadOrder(ctx, s.repo, orderID)
}

func (s *service) cancelInTx(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	orderRepo := s.repo.WithTx(tx)
	productRepo := s.products.WithTx(tx)

	// conditional flip: a concurrent cancel that won the race leaves
	// nothing for this one to do, and stock must not be restored twice
	flipped, err := orderRepo.MarkCancelled(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancelling order")
	}
	if !flipped {
		return cancellationClosedError(order.Status)
	}
	if CanTransitionPayment(order.PaymentStatus, enums.PaymentStatusCancelled) {
		if err := orderRepo.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancelling payment")
		}
	}
	for _, line := range order.Lines {
		if err := productRepo.RestoreStock(ctx, line.ProductCode, line.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restoring stock")
		}
	}
	return nil
}

// UpdateStatus moves an order along the fulfilment machine. Moving to
// cancelled applies the full cancellation side effects.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, status) {
		return nil, transitionError(order.Status, status)
	}

	if status == enums.OrderStatusCancelled {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.cancelInTx(ctx, tx, order)
		})
	} else {
		err = s.repo.UpdateStatus(ctx, orderID, status)
		if err != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating order status")
		}
	}
	if err != nil {
		return nil, err
	}
	return s.loadOrder(ctx, s.repo, orderID)
}

// SetPaymentStatus moves an order's payment along the payment machine.
func (s *service) SetPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionPayment(order.PaymentStatus, status) {
		return nil, paymentTransitionError(order.PaymentStatus, status)
	}

	if err := s.repo.UpdatePaymentStatus(ctx, orderID, status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating payment status")
	}
	return s.loadOrder(ctx, s.repo, orderID)
}

// FinalizeAmount recomputes the header amount from the line subtotals.
func (s *service) FinalizeAmount(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}

	amount, err := s.repo.SumLineSubtotals(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summing order lines")
	}
	if err := s.repo.UpdateAmount(ctx, order.ID, amount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating order amount")
	}
	order.Amount = amount
	return order, nil
}

// HardDelete permanently removes a settled order. Active orders must be
// cancelled first.
func (s *service) HardDelete(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return err
	}
	switch order.Status {
	case enums.OrderStatusCancelled, enums.OrderStatusRefunded, enums.OrderStatusDelivered:
		// deletable
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only settled orders can be deleted").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	if err := s.repo.Delete(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting order")
	}
	return nil
}

func (s *service) loadOrder(ctx context.Context, repo OrderRepository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
	}
	return order, nil
}

func (s *service) loadProduct(ctx context.Context, repo catalog.ProductRepository, code string) (*models.Product, error) {
	product, err := repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_code": code})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}
	return product, nil
}

func validateReceiver(r Receiver) error {
	if r.Name == "" || r.Phone == "" || r.Address == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "receiver name, phone and address are required")
	}
	return nil
}

func failureReason(err error) string {
	if appErr := pkgerrors.As(err); appErr != nil {
		switch appErr.Code() {
		case pkgerrors.CodeStock:
			return "stock"
		case pkgerrors.CodeValidation:
			return "validation"
		case pkgerrors.CodeNotFound:
			return "not_found"
		}
	}
	return "internal"
}
