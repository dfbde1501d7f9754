package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harborline/storefront-backend/pkg/db/models"
	"github.com/harborline/storefront-backend/pkg/enums"
	pkgerrors "github.com/harborline/storefront-backend/pkg/errors"
	"github.com/harborline/storefront-backend/pkg/pagination"
)

type userChecker interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service answers order reads and drives status changes. Order creation
// belongs to the checkout workflow.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page pagination.Page) (pagination.Result[models.Order], error)
	ListAll(ctx context.Context, page pagination.Page) (pagination.Result[models.Order], error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error)
	Dashboard(ctx context.Context) (*DashboardMetrics, error)
	CountsByStatus(ctx context.Context) (StatusCounts, error)
}

type service struct {
	repo  Repository
	users userChecker
}

// NewService builds the order query/status service.
func NewService(repo Repository, users userChecker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user checker required")
	}
	return &service{repo: repo, users: users}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, page pagination.Page) (pagination.Result[models.Order], error) {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return pagination.Result[models.Order]{}, err
	}
	if !exists {
		return pagination.Result[models.Order]{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return s.repo.ListByUser(ctx, userID, page)
}

func (s *service) ListAll(ctx context.Context, page pagination.Page) (pagination.Result[models.Order], error) {
	return s.repo.ListAll(ctx, page)
}

// UpdateStatus sets the order status to any known value. Transitions are not
// restricted, matching the admin tooling this backs; unknown values are
// rejected before touching the row.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error) {
	next := enums.OrderStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !next.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": status})
	}

	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) Dashboard(ctx context.Context) (*DashboardMetrics, error) {
	count, sales, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardMetrics{TotalOrders: count, TotalSales: sales}, nil
}

// CountsByStatus returns one entry per known status, zero-filled.
func (s *service) CountsByStatus(ctx context.Context) (StatusCounts, error) {
	raw, err := s.repo.CountsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(StatusCounts, len(enums.OrderStatuses()))
	for _, status := range enums.OrderStatuses() {
		counts[status] = raw[status]
	}
	return counts, nil
}
