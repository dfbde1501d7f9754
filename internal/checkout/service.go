package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborline/storefront-backend/internal/cart"
	"github.com/harborline/storefront-backend/internal/catalog"
	"github.com/harborline/storefront-backend/internal/orders"
	"github.com/harborline/storefront-backend/pkg/db/models"
	"github.com/harborline/storefront-backend/pkg/enums"
	pkgerrors "github.com/harborline/storefront-backend/pkg/errors"
	"github.com/harborline/storefront-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type directoryLookup interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	AddressExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service turns a cart into an order. The whole placement is one transaction:
// stock is re-validated and decremented per line, the order is persisted with
// the cart's price/discount snapshots, and the cart is emptied. Any failure
// rolls everything back, stock included.
type Service interface {
	PlaceOrder(ctx context.Context, userID, shippingAddressID uuid.UUID) (*models.Order, error)
}

type service struct {
	tx        txRunner
	carts     cart.Repository
	catalog   catalog.Gateway
	directory directoryLookup
	orders    orders.Repository
	metrics   *metrics.CheckoutMetrics
	now       func() time.Time
}

// NewService builds the order placement workflow. metrics may be nil.
func NewService(
	tx txRunner,
	carts cart.Repository,
	catalogGW catalog.Gateway,
	directory directoryLookup,
	orderRepo orders.Repository,
	checkoutMetrics *metrics.CheckoutMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogGW == nil {
		return nil, fmt.Errorf("catalog gateway required")
	}
	if directory == nil {
		return nil, fmt.Errorf("directory lookup required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	return &service{
		tx:        tx,
		carts:     carts,
		catalog:   catalogGW,
		directory: directory,
		orders:    orderRepo,
		metrics:   checkoutMetrics,
		now:       time.Now,
	}, nil
}

// PlaceOrder creates an order from the user's cart.
func (s *service) PlaceOrder(ctx context.Context, userID, shippingAddressID uuid.UUID) (*models.Order, error) {
	order, err := s.placeOrder(ctx, userID, shippingAddressID)
	if err != nil {
		s.metrics.IncFailed(failureReason(err))
		return nil, err
	}

	amount, _ := order.TotalAmount.Float64()
	s.metrics.ObservePlaced(amount, len(order.Items))
	return order, nil
}

func (s *service) placeOrder(ctx context.Context, userID, shippingAddressID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if shippingAddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address id required")
	}

	exists, err := s.directory.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	exists, err = s.directory.AddressExists(ctx, shippingAddressID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipping address not found")
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		catalogGW := s.catalog.WithTx(tx)

		userCart, err := carts.FindByUserIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, cart.ErrCartNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(userCart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		orderID := uuid.New()
		items := make([]models.OrderItem, 0, len(userCart.Items))
		total := decimal.Zero
		for _, line := range userCart.Items {
			if err := catalogGW.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
			items = append(items, models.OrderItem{
				ID:        uuid.New(),
				OrderID:   orderID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.PriceAtAddition,
				Discount:  line.DiscountAtAddition,
				Total:     line.Total,
			})
			total = total.Add(line.Total)
		}

		order = &models.Order{
			ID:                orderID,
			UserID:            userID,
			OrderDate:         s.now().UTC(),
			Status:            enums.OrderStatusPending,
			ShippingAddressID: shippingAddressID,
			TotalAmount:       total,
			Items:             items,
		}
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		if err := carts.DeleteAllItems(ctx, userCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		if err := carts.UpdateTotal(ctx, userCart.ID, decimal.Zero); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset cart total")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func failureReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "unknown"
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientStock:
		return "insufficient_stock"
	case pkgerrors.CodeValidation:
		return "validation"
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeConflict:
		return "conflict"
	default:
		return "dependency"
	}
}
