package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/storefront-backend/pkg/db/models"
	pkgerrors "github.com/harborline/storefront-backend/pkg/errors"
	"github.com/harborline/storefront-backend/pkg/pagination"
)

// Gateway is the read/decrement surface the cart and checkout services need
// from the catalog.
type Gateway interface {
	WithTx(tx *gorm.DB) Gateway
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error
}

// Repository provides catalog reads plus the atomic stock decrement.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) Gateway {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindProductByID loads a single product or reports NotFound.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

// DecrementStock subtracts quantity from the product's stock as a conditional
// atomic update. The WHERE guard makes two concurrent checkouts racing for the
// same units serialize on the row: the loser matches zero rows and the whole
// operation is reported as insufficient stock.
func (r *Repository) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "decrement quantity must be positive")
	}

	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for product").
			WithDetails(map[string]any{"product_id": productID})
	}
	return nil
}

// ListProducts returns one catalog page ordered by creation time.
func (r *Repository) ListProducts(ctx context.Context, page pagination.Page) (pagination.Result[models.Product], error) {
	page = pagination.Normalize(page)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return pagination.Result[models.Product]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}

	var products []models.Product
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&products).Error
	if err != nil {
		return pagination.Result[models.Product]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return pagination.NewResult(products, page, total), nil
}
