package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harborline/storefront-backend/internal/cart"
	"github.com/harborline/storefront-backend/internal/catalog"
	"github.com/harborline/storefront-backend/internal/directory"
	"github.com/harborline/storefront-backend/internal/orders"
	"github.com/harborline/storefront-backend/pkg/db/models"
	"github.com/harborline/storefront-backend/pkg/enums"
	pkgerrors "github.com/harborline/storefront-backend/pkg/errors"
)

type testTx struct {
	db *gorm.DB
}

func (t *testTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	db      *gorm.DB
	carts   cart.Service
	service Service
	user    *models.User
	address *models.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Address{}, &models.Category{}, &models.Product{},
		&models.Cart{}, &models.CartItem{}, &models.Order{}, &models.OrderItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := &models.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Name: "Test User"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	address := &models.Address{
		ID:     uuid.New(),
		UserID: user.ID,
		Street: "1 Harbor Way",
		City:   "Rotterdam",
	}
	if err := db.Create(address).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}

	tx := &testTx{db: db}
	dir := directory.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	cartRepo := cart.NewRepository(db)

	cartSvc, err := cart.NewService(cartRepo, tx, catalogRepo, dir)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	svc, err := NewService(tx, cartRepo, catalogRepo, dir, orders.NewRepository(db), nil)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	return &fixture{db: db, carts: cartSvc, service: svc, user: user, address: address}
}

func (f *fixture) seedProduct(t *testing.T, name, price, discount string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:            uuid.New(),
		CategoryID:    uuid.New(),
		Name:          name,
		Price:         decimal.RequireFromString(price),
		Discount:      decimal.RequireFromString(discount),
		StockQuantity: stock,
	}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (f *fixture) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := f.db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product.StockQuantity
}

// Two units at 10.00 undiscounted plus one unit at 5.00 with 10% off
// comes to 24.50.
func TestPlaceOrderTotals(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	plain := f.seedProduct(t, "Keyboard", "10.00", "0", 10)
	discounted := f.seedProduct(t, "Cable", "5.00", "0.10", 10)

	if _, err := f.carts.AddItem(ctx, f.user.ID, plain.ID, 2); err != nil {
		t.Fatalf("add plain: %v", err)
	}
	if _, err := f.carts.AddItem(ctx, f.user.ID, discounted.ID, 1); err != nil {
		t.Fatalf("add discounted: %v", err)
	}

	order, err := f.service.PlaceOrder(ctx, f.user.ID, f.address.ID)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if !order.TotalAmount.Equal(decimal.RequireFromString("24.50")) {
		t.Fatalf("expected order total 24.50, got %s", order.TotalAmount)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(order.Items))
	}

	sum := decimal.Zero
	for _, item := range order.Items {
		sum = sum.Add(item.Total)
	}
	if !sum.Equal(order.TotalAmount) {
		t.Fatalf("order total %s does not match item sum %s", order.TotalAmount, sum)
	}
}

func TestPlaceOrderCopiesCartSnapshots(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "Monitor", "100.00", "0.25", 10)

	if _, err := f.carts.AddItem(ctx, f.user.ID, product.ID, 1); err != nil {
		t.Fatalf("add item: %v", err)
	}

	// Catalog changes after the cart snapshot must not leak into the order.
	err := f.db.Model(product).Updates(map[string]any{
		"price":    decimal.RequireFromString("150.00"),
		"discount": decimal.RequireFromString("0"),
	}).Error
	if err != nil {
		t.Fatalf("reprice: %v", err)
	}

	order, err := f.service.PlaceOrder(ctx, f.user.ID, f.address.ID)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	item := order.Items[0]
	if !item.Price.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected snapshotted price 100.00, got %s", item.Price)
	}
	if !item.Discount.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("expected snapshotted discount 0.25, got %s", item.Discount)
	}
	if !item.Total.Equal(decimal.RequireFromString("75.00")) {
		t.Fatalf("expected line total 75.00, got %s", item.Total)
	}
}

func TestPlaceOrderDecrementsStockAndClearsCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "Desk", "50.00", "0", 5)

	if _, err := f.carts.AddItem(ctx, f.user.ID, product.ID, 3); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := f.service.PlaceOrder(ctx, f.user.ID, f.address.ID); err != nil {
		t.Fatalf("place order: %v", err)
	}

	if got := f.stockOf(t, product.ID); got != 2 {
		t.Fatalf("expected stock 2 after placement, got %d", got)
	}

	cartAfter, err := f.carts.GetOrCreateCart(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	if len(cartAfter.Items) != 0 {
		t.Fatalf("expected cart emptied, got %d items", len(cartAfter.Items))
	}
	if !cartAfter.TotalAmount.IsZero() {
		t.Fatalf("expected zero cart total, got %s", cartAfter.TotalAmount)
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.service.PlaceOrder(context.Background(), f.user.ID, f.address.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}
}

func TestPlaceOrderUnknownUserOrAddress(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.service.PlaceOrder(context.Background(), uuid.New(), f.address.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}

	_, err = f.service.PlaceOrder(context.Background(), f.user.ID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown address, got %v", err)
	}
}

// A placement where a later line runs out of stock must roll back the
// decrements already applied to earlier lines and leave the cart intact.
func TestPlaceOrderAllOrNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	plentiful := f.seedProduct(t, "Pen", "2.00", "0", 100)
	scarce := f.seedProduct(t, "Limited Print", "40.00", "0", 2)

	if _, err := f.carts.AddItem(ctx, f.user.ID, plentiful.ID, 5); err != nil {
		t.Fatalf("add plentiful: %v", err)
	}
	if _, err := f.carts.AddItem(ctx, f.user.ID, scarce.ID, 2); err != nil {
		t.Fatalf("add scarce: %v", err)
	}

	// Another purchase drains the scarce product below the cart quantity.
	err := f.db.Model(scarce).Update("stock_quantity", 1).Error
	if err != nil {
		t.Fatalf("drain stock: %v", err)
	}

	_, err = f.service.PlaceOrder(ctx, f.user.ID, f.address.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if got := f.stockOf(t, plentiful.ID); got != 100 {
		t.Fatalf("expected plentiful stock rolled back to 100, got %d", got)
	}
	if got := f.stockOf(t, scarce.ID); got != 1 {
		t.Fatalf("expected scarce stock unchanged at 1, got %d", got)
	}

	cartAfter, err := f.carts.GetOrCreateCart(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	if len(cartAfter.Items) != 2 {
		t.Fatalf("expected cart preserved with 2 items, got %d", len(cartAfter.Items))
	}

	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected no order rows, got %d", orderCount)
	}
}

// Two buyers racing for the last unit: the conditional decrement lets at
// most one placement commit, and stock never goes negative.
func TestPlaceOrderConcurrentBuyers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "Last Unit", "30.00", "0", 1)

	rival := &models.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Name: "Rival"}
	if err := f.db.Create(rival).Error; err != nil {
		t.Fatalf("seed rival: %v", err)
	}
	rivalAddress := &models.Address{ID: uuid.New(), UserID: rival.ID, Street: "2 Harbor Way", City: "Rotterdam"}
	if err := f.db.Create(rivalAddress).Error; err != nil {
		t.Fatalf("seed rival address: %v", err)
	}

	if _, err := f.carts.AddItem(ctx, f.user.ID, product.ID, 1); err != nil {
		t.Fatalf("first cart: %v", err)
	}
	if _, err := f.carts.AddItem(ctx, rival.ID, product.ID, 1); err != nil {
		t.Fatalf("rival cart: %v", err)
	}

	type placement struct {
		userID    uuid.UUID
		addressID uuid.UUID
	}
	attempts := []placement{
		{f.user.ID, f.address.ID},
		{rival.ID, rivalAddress.ID},
	}

	results := make([]error, len(attempts))
	var wg sync.WaitGroup
	for i, attempt := range attempts {
		wg.Add(1)
		go func(i int, attempt placement) {
			defer wg.Done()
			_, results[i] = f.service.PlaceOrder(ctx, attempt.userID, attempt.addressID)
		}(i, attempt)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	if successes > 1 {
		t.Fatalf("expected at most one placement to win, got %d", successes)
	}

	if got := f.stockOf(t, product.ID); got < 0 {
		t.Fatalf("stock went negative: %d", got)
	}
	if got := f.stockOf(t, product.ID); got != 1-successes {
		t.Fatalf("expected stock %d after %d placements, got %d", 1-successes, successes, got)
	}

	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != int64(successes) {
		t.Fatalf("expected %d order rows, got %d", successes, orderCount)
	}
}

// Stock is finite: once an order consumes the remaining units, a second
// placement of the same product fails.
func TestPlaceOrderExhaustsStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "Chair", "80.00", "0", 2)

	if _, err := f.carts.AddItem(ctx, f.user.ID, product.ID, 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := f.service.PlaceOrder(ctx, f.user.ID, f.address.ID); err != nil {
		t.Fatalf("first order: %v", err)
	}
	if got := f.stockOf(t, product.ID); got != 0 {
		t.Fatalf("expected stock exhausted, got %d", got)
	}

	// The cart-time check already rejects the add against zero stock.
	_, err := f.carts.AddItem(ctx, f.user.ID, product.ID, 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock on re-add, got %v", err)
	}
}
