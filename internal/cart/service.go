package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborline/storefront-backend/internal/catalog"
	"github.com/harborline/storefront-backend/internal/pricing"
	"github.com/harborline/storefront-backend/pkg/db"
	"github.com/harborline/storefront-backend/pkg/db/models"
	pkgerrors "github.com/harborline/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userChecker interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service owns the single active cart per user: line item mutations, the
// running total, and stock validation at mutation time.
type Service interface {
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error)
	SetItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*MutationResult, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*MutationResult, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// MutationResult reports the cart state after a mutation plus whether the
// targeted line was removed rather than updated.
type MutationResult struct {
	Cart    *models.Cart
	Removed bool
}

type service struct {
	repo    Repository
	tx      txRunner
	catalog catalog.Gateway
	users   userChecker
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, catalogGW catalog.Gateway, users userChecker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalogGW == nil {
		return nil, fmt.Errorf("catalog gateway required")
	}
	if users == nil {
		return nil, fmt.Errorf("user checker required")
	}
	return &service{repo: repo, tx: tx, catalog: catalogGW, users: users}, nil
}

// GetOrCreateCart returns the user's cart, lazily creating an empty one on
// first access.
func (s *service) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.getOrCreateLocked(ctx, s.repo.WithTx(tx), userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddItem adds quantity of a product to the cart. When the product is already
// present the quantities are merged and the price/discount snapshot refreshed;
// the combined quantity is re-validated against current stock.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		catalogGW := s.catalog.WithTx(tx)

		cart, err := s.getOrCreateLocked(ctx, repo, userID)
		if err != nil {
			return err
		}

		product, err := catalogGW.FindProductByID(ctx, productID)
		if err != nil {
			return err
		}

		newQuantity := quantity
		item, err := repo.FindItem(ctx, cart.ID, productID)
		switch {
		case err == nil:
			newQuantity = item.Quantity + quantity
		case errors.Is(err, ErrItemNotFound):
			item = &models.CartItem{ID: uuid.New(), CartID: cart.ID, ProductID: productID}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		if product.StockQuantity < newQuantity {
			return insufficientStock(product)
		}

		total, err := pricing.LineTotal(product.Price, product.Discount, newQuantity)
		if err != nil {
			return err
		}

		item.Quantity = newQuantity
		item.PriceAtAddition = product.Price
		item.DiscountAtAddition = product.Discount
		item.Total = total
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}

		result, err = s.recomputeTotal(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetItemQuantity replaces a line's quantity. A non-positive quantity deletes
// the line and reports removal instead of failing.
func (s *service) SetItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*MutationResult, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	var result *MutationResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.getOrCreateLocked(ctx, repo, userID)
		if err != nil {
			return err
		}

		if quantity <= 0 {
			removed, err := repo.DeleteItem(ctx, cart.ID, productID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
			}
			updated, err := s.recomputeTotal(ctx, repo, cart)
			if err != nil {
				return err
			}
			result = &MutationResult{Cart: updated, Removed: removed}
			return nil
		}

		item, err := repo.FindItem(ctx, cart.ID, productID)
		if err != nil {
			if errors.Is(err, ErrItemNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart").
					WithDetails(map[string]any{"product_id": productID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		product, err := s.catalog.WithTx(tx).FindProductByID(ctx, productID)
		if err != nil {
			return err
		}
		if product.StockQuantity < quantity {
			return insufficientStock(product)
		}

		total, err := pricing.LineTotal(product.Price, product.Discount, quantity)
		if err != nil {
			return err
		}

		item.Quantity = quantity
		item.PriceAtAddition = product.Price
		item.DiscountAtAddition = product.Discount
		item.Total = total
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}

		updated, err := s.recomputeTotal(ctx, repo, cart)
		if err != nil {
			return err
		}
		result = &MutationResult{Cart: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem deletes a line from the cart. Removing an absent line is a
// successful no-op; the result reports whether anything was deleted.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*MutationResult, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	var result *MutationResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.getOrCreateLocked(ctx, repo, userID)
		if err != nil {
			return err
		}

		removed, err := repo.DeleteItem(ctx, cart.ID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}

		updated, err := s.recomputeTotal(ctx, repo, cart)
		if err != nil {
			return err
		}
		result = &MutationResult{Cart: updated, Removed: removed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Clear removes every line and resets the total. Clearing an empty cart is a
// successful no-op.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.getOrCreateLocked(ctx, repo, userID)
		if err != nil {
			return err
		}
		return s.clearLocked(ctx, repo, cart)
	})
}

func (s *service) clearLocked(ctx context.Context, repo Repository, cart *models.Cart) error {
	if len(cart.Items) == 0 {
		return nil
	}
	if err := repo.DeleteAllItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
	}
	if _, err := s.recomputeTotal(ctx, repo, cart); err != nil {
		return err
	}
	return nil
}

func (s *service) requireUser(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

// getOrCreateLocked loads the user's cart under a row lock, creating it when
// absent. A concurrent first-access race surfaces as a unique violation on
// user_id and is re-read rather than failed.
func (s *service) getOrCreateLocked(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUserIDForUpdate(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	created, err := repo.Create(ctx, &models.Cart{ID: uuid.New(), UserID: userID})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			cart, rerr := repo.FindByUserIDForUpdate(ctx, userID)
			if rerr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, rerr, "concurrent cart creation")
			}
			return cart, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

// recomputeTotal re-derives the cart total from its current lines so the
// stored amount always equals the item sum.
func (s *service) recomputeTotal(ctx context.Context, repo Repository, cart *models.Cart) (*models.Cart, error) {
	items, err := repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}

	totals := make([]decimal.Decimal, 0, len(items))
	for _, item := range items {
		totals = append(totals, item.Total)
	}

	sum := pricing.SumTotals(totals)
	if err := repo.UpdateTotal(ctx, cart.ID, sum); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart total")
	}

	cart.Items = items
	cart.TotalAmount = sum
	return cart, nil
}

func insufficientStock(product *models.Product) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock,
		fmt.Sprintf("insufficient stock for product %s", product.Name)).
		WithDetails(map[string]any{
			"product_id": product.ID,
			"available":  product.StockQuantity,
		})
}
