package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one cart line. PriceAtAddition and DiscountAtAddition are
// snapshotted when the line is created or updated and stay fixed until the
// next update of the same line, regardless of later catalog changes.
type CartItem struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID             uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_product"`
	ProductID          uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_product"`
	Quantity           int             `gorm:"column:quantity;not null"`
	PriceAtAddition    decimal.Decimal `gorm:"column:price_at_addition;type:numeric(12,2);not null"`
	DiscountAtAddition decimal.Decimal `gorm:"column:discount_at_addition;type:numeric(5,4);not null;default:0"`
	Total              decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
