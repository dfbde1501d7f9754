package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/storefront-backend/pkg/db/models"
	pkgerrors "github.com/harborline/storefront-backend/pkg/errors"
)

// Lookup exposes the user/address existence checks the fulfillment core
// consumes. Identity and address-book CRUD live elsewhere.
type Lookup interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	AddressExists(ctx context.Context, id uuid.UUID) (bool, error)
	FindAddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error)
}

// Repository answers directory lookups from the shared store.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UserExists reports whether the user id resolves to a known user.
func (r *Repository) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user")
	}
	return count > 0, nil
}

// AddressExists reports whether the address id resolves to a known address.
func (r *Repository) AddressExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Address{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check address")
	}
	return count > 0, nil
}

// FindAddressByID loads a full address record or reports NotFound.
func (r *Repository) FindAddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&address).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return &address, nil
}
