package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// The model structs must automigrate on the sqlite test driver; Postgres-only
// column defaults in the gorm tags break every sqlite-backed fixture.
func TestModelsAutoMigrateOnSQLite(t *testing.T) {
	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := db.AutoMigrate(
		&User{}, &Address{}, &Category{}, &Product{},
		&Cart{}, &CartItem{}, &Order{}, &OrderItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := &User{ID: uuid.New(), Email: "models@example.com", Name: "Model User"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}

	product := &Product{
		ID:            uuid.New(),
		CategoryID:    uuid.New(),
		Name:          "Sample",
		Price:         decimal.RequireFromString("9.99"),
		Discount:      decimal.Zero,
		StockQuantity: 3,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("insert product: %v", err)
	}

	var reloaded Product
	if err := db.First(&reloaded, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloaded.ID != product.ID {
		t.Fatalf("expected id %s, got %s", product.ID, reloaded.ID)
	}
}
