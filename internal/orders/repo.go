package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborline/storefront-backend/pkg/db/models"
	"github.com/harborline/storefront-backend/pkg/enums"
	pkgerrors "github.com/harborline/storefront-backend/pkg/errors"
	"github.com/harborline/storefront-backend/pkg/pagination"
)

// Repository is the persistence surface for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page pagination.Page) (pagination.Result[models.Order], error)
	ListAll(ctx context.Context, page pagination.Page) (pagination.Result[models.Order], error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	Stats(ctx context.Context) (int64, decimal.Decimal, error)
	CountsByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]any{"order_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, page pagination.Page) (pagination.Result[models.Order], error) {
	return r.list(ctx, page, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ?", userID)
	})
}

func (r *repository) ListAll(ctx context.Context, page pagination.Page) (pagination.Result[models.Order], error) {
	return r.list(ctx, page, nil)
}

func (r *repository) list(ctx context.Context, page pagination.Page, scope func(*gorm.DB) *gorm.DB) (pagination.Result[models.Order], error) {
	page = pagination.Normalize(page)

	counter := r.db.WithContext(ctx).Model(&models.Order{})
	if scope != nil {
		counter = scope(counter)
	}
	var total int64
	if err := counter.Count(&total).Error; err != nil {
		return pagination.Result[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}

	q := r.db.WithContext(ctx).Preload("Items")
	if scope != nil {
		q = scope(q)
	}
	var rows []models.Order
	err := q.Order("order_date DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&rows).Error
	if err != nil {
		return pagination.Result[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return pagination.NewResult(rows, page, total), nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update order status")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": id})
	}
	return nil
}

// Stats returns the order count and the exact decimal sum of order totals.
// The sum runs in Go because the totals are stored as numeric strings and
// must not pick up float rounding.
func (r *repository) Stats(ctx context.Context) (int64, decimal.Decimal, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&count).Error; err != nil {
		return 0, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}

	var totals []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Pluck("total_amount", &totals).Error
	if err != nil {
		return 0, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum order totals")
	}

	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return count, sum, nil
}

func (r *repository) CountsByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error) {
	type row struct {
		Status enums.OrderStatus
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders by status")
	}

	counts := make(map[enums.OrderStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
