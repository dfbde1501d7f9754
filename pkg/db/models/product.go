package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the canonical catalog listing. Price carries the live unit price
// and Discount a fraction in [0,1); carts and orders snapshot both instead of
// referencing them live.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID    uuid.UUID       `gorm:"column:category_id;type:uuid;not null;index"`
	Name          string          `gorm:"column:name;not null"`
	Description   string          `gorm:"column:description;not null;default:''"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Discount      decimal.Decimal `gorm:"column:discount;type:numeric(5,4);not null;default:0"`
	ImageURL      string          `gorm:"column:image_url;not null;default:''"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
