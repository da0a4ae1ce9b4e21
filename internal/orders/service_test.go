package orders_test

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jodise/jodise-backend/internal/inventory"
	"github.com/jodise/jodise-backend/internal/orders"
	"github.com/jodise/jodise-backend/internal/pricing"
	"github.com/jodise/jodise-backend/internal/products"
	"github.com/jodise/jodise-backend/internal/sellers"
	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
)

func setupOrdersServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_svc_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := []string{`
CREATE TABLE IF NOT EXISTS sellers (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  store_name TEXT NOT NULL,
  commission_percent NUMERIC,
  bank_name TEXT NOT NULL DEFAULT '',
  account_number TEXT NOT NULL DEFAULT '',
  account_name TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  name TEXT NOT NULL,
  sku TEXT NOT NULL UNIQUE,
  price NUMERIC NOT NULL DEFAULT 0,
  stock INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal NUMERIC NOT NULL DEFAULT 0,
  vat_amount NUMERIC NOT NULL DEFAULT 0,
  delivery_fee NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL DEFAULT 0,
  tracking_code TEXT NOT NULL UNIQUE,
  delivery_address TEXT NOT NULL DEFAULT '',
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  subtotal NUMERIC NOT NULL DEFAULT 0,
  vat_amount NUMERIC NOT NULL DEFAULT 0,
  commission NUMERIC NOT NULL DEFAULT 0,
  seller_earnings NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS inventory_items (
  product_id TEXT PRIMARY KEY,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME,
  CHECK (available_qty >= 0),
  CHECK (reserved_qty >= 0)
);`}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

type txRunner struct {
	db *gorm.DB
}

func (r txRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newOrdersService(t *testing.T, db *gorm.DB) orders.Service {
	t.Helper()
	svc, err := orders.NewService(
		orders.NewRepository(db),
		products.NewRepository(db),
		sellers.NewRepository(db),
		inventory.NewService(),
		txRunner{db: db},
		nil,
		logger.New(logger.Options{Output: io.Discard}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedSeller(t *testing.T, db *gorm.DB) *models.Seller {
	t.Helper()
	seller := &models.Seller{ID: uuid.New(), UserID: uuid.New(), StoreName: "Test Store"}
	if err := db.Create(seller).Error; err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	return seller
}

func seedProduct(t *testing.T, db *gorm.DB, sellerID uuid.UUID, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:       uuid.New(),
		SellerID: sellerID,
		Name:     "Product " + uuid.NewString()[:8],
		SKU:      "SKU-" + uuid.NewString()[:8],
		Price:    mustDecimal(t, price),
		Stock:    stock,
		IsActive: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}

func TestCartCreatesAndReusesPendingOrder(t *testing.T) {
	db := setupOrdersServiceDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()
	buyerID := uuid.New()

	first, err := svc.Cart(ctx, buyerID)
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if first.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", first.Status)
	}
	if first.TrackingCode == "" {
		t.Fatal("expected tracking code assigned")
	}

	second, err := svc.Cart(ctx, buyerID)
	if err != nil {
		t.Fatalf("Cart second call: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("expected the same pending order on repeat calls")
	}
}

func TestAddItemSnapshotsPriceAndMergesLines(t *testing.T) {
	db := setupOrdersServiceDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()
	buyerID := uuid.New()

	seller := seedSeller(t, db)
	product := seedProduct(t, db, seller.ID, "1000", 10)

	order, err := svc.AddItem(ctx, buyerID, product.ID, 2)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(order.Items))
	}
	line := order.Items[0]
	if !line.UnitPrice.Equal(mustDecimal(t, "1000")) {
		t.Fatalf("expected unit price snapshot 1000, got %s", line.UnitPrice)
	}
	if line.SellerID != seller.ID {
		t.Fatal("expected seller id copied onto the line")
	}

	order, err = svc.AddItem(ctx, buyerID, product.ID, 3)
	if err != nil {
		t.Fatalf("AddItem merge: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].Qty != 5 {
		t.Fatalf("expected merged line qty 5, got %+v", order.Items)
	}
}

func TestAddItemCapsQtyAtStock(t *testing.T) {
	db := setupOrdersServiceDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()

	seller := seedSeller(t, db)
	product := seedProduct(t, db, seller.ID, "250", 3)

	order, err := svc.AddItem(ctx, uuid.New(), product.ID, 10)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if order.Items[0].Qty != 3 {
		t.Fatalf("expected qty capped at stock 3, got %d", order.Items[0].Qty)
	}
}

func TestAddItemRejectsOutOfStockProduct(t *testing.T) {
	db := setupOrdersServiceDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()

	seller := seedSeller(t, db)
	product := seedProduct(t, db, seller.ID, "250", 0)

	_, err := svc.AddItem(ctx, uuid.New(), product.ID, 1)
	if err == nil {
		t.Fatal("expected out of stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock code, got %v", err)
	}
}

func TestUpdateAndRemoveItem(t *testing.T) {
	db := setupOrdersServiceDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()
	buyerID := uuid.New()

	seller := seedSeller(t, db)
	product := seedProduct(t, db, seller.ID, "100", 8)

	order, err := svc.AddItem(ctx, buyerID, product.ID, 1)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	itemID := order.Items[0].ID

	order, err = svc.UpdateItemQty(ctx, buyerID, itemID, 4)
	if err != nil {
		t.Fatalf("UpdateItemQty: %v", err)
	}
	if order.Items[0].Qty != 4 {
		t.Fatalf("expected qty 4, got %d", order.Items[0].Qty)
	}

	order, err = svc.RemoveItem(ctx, buyerID, itemID)
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(order.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(order.Items))
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	db := setupOrdersServiceDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()
	buyerID := uuid.New()

	order, err := svc.Cart(ctx, buyerID)
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}

	if _, err := svc.Get(ctx, buyerID, order.ID); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
	_, err = svc.Get(ctx, uuid.New(), order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for other buyer, got %v", err)
	}
}

func TestTrackByCodeNormalizesInput(t *testing.T) {
	db := setupOrdersServiceDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()

	order, err := svc.Cart(ctx, uuid.New())
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}

	found, err := svc.TrackByCode(ctx, "  "+order.TrackingCode+" ")
	if err != nil {
		t.Fatalf("TrackByCode: %v", err)
	}
	if found.ID != order.ID {
		t.Fatal("expected tracked order to match")
	}

	if _, err := svc.TrackByCode(ctx, "   "); err == nil {
		t.Fatal("expected validation error for blank code")
	}
}

func TestPriceTwoSellerOrder(t *testing.T) {
	db := setupOrdersServiceDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()
	buyerID := uuid.New()

	sellerA := seedSeller(t, db)
	sellerB := seedSeller(t, db)
	productA := seedProduct(t, db, sellerA.ID, "1000", 10)
	productB := seedProduct(t, db, sellerB.ID, "500", 10)

	if _, err := svc.AddItem(ctx, buyerID, productA.ID, 2); err != nil {
		t.Fatalf("AddItem A: %v", err)
	}
	order, err := svc.AddItem(ctx, buyerID, productB.ID, 1)
	if err != nil {
		t.Fatalf("AddItem B: %v", err)
	}

	rates := pricing.Rates{
		VATPercent:        mustDecimal(t, "7.5"),
		CommissionPercent: mustDecimal(t, "10"),
		DeliveryFee:       decimal.Zero,
		Currency:          "NGN",
	}
	priced, err := svc.Price(ctx, order, rates)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}

	if !order.Subtotal.Equal(mustDecimal(t, "2500")) ||
		!order.VATAmount.Equal(mustDecimal(t, "187.5")) ||
		!order.Total.Equal(mustDecimal(t, "2687.5")) {
		t.Fatalf("unexpected order totals: subtotal=%s vat=%s total=%s", order.Subtotal, order.VATAmount, order.Total)
	}

	if len(priced.BySeller) != 2 {
		t.Fatalf("expected 2 seller breakdowns, got %d", len(priced.BySeller))
	}
	byID := map[uuid.UUID]pricing.SellerBreakdown{}
	for _, breakdown := range priced.BySeller {
		byID[breakdown.SellerID] = breakdown
	}
	first := byID[sellerA.ID]
	if !first.Earned.Equal(mustDecimal(t, "2000")) ||
		!first.VAT.Equal(mustDecimal(t, "150")) ||
		!first.Commission.Equal(mustDecimal(t, "200")) ||
		!first.Payable.Equal(mustDecimal(t, "1650")) {
		t.Fatalf("unexpected breakdown for first seller: %+v", first)
	}
	second := byID[sellerB.ID]
	if !second.Earned.Equal(mustDecimal(t, "500")) ||
		!second.VAT.Equal(mustDecimal(t, "37.5")) ||
		!second.Commission.Equal(mustDecimal(t, "50")) ||
		!second.Payable.Equal(mustDecimal(t, "412.5")) {
		t.Fatalf("unexpected breakdown for second seller: %+v", second)
	}

	for _, item := range order.Items {
		if item.Subtotal.IsZero() {
			t.Fatal("expected line amounts written back onto items")
		}
	}
}

func TestCancelPendingOrderLeavesStockAlone(t *testing.T) {
	db := setupOrdersServiceDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()
	buyerID := uuid.New()

	seller := seedSeller(t, db)
	product := seedProduct(t, db, seller.ID, "100", 5)

	order, err := svc.AddItem(ctx, buyerID, product.ID, 2)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if err := svc.Cancel(ctx, order.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	var stock int
	if err := db.Raw("SELECT stock FROM products WHERE id = ?", product.ID).Scan(&stock).Error; err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 5 {
		t.Fatalf("pending cancel must not touch stock, got %d", stock)
	}
}

func TestCancelPaidOrderRestoresStock(t *testing.T) {
	db := setupOrdersServiceDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()
	buyerID := uuid.New()

	seller := seedSeller(t, db)
	product := seedProduct(t, db, seller.ID, "100", 5)

	order, err := svc.AddItem(ctx, buyerID, product.ID, 2)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	// Simulate a fulfilled order: stock reserved, status paid.
	if err := db.Exec("UPDATE products SET stock = stock - 2 WHERE id = ?", product.ID).Error; err != nil {
		t.Fatalf("reserve stock: %v", err)
	}
	if err := db.Exec("UPDATE orders SET status = 'paid' WHERE id = ?", order.ID).Error; err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if err := svc.Cancel(ctx, order.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	var stock int
	if err := db.Raw("SELECT stock FROM products WHERE id = ?", product.ID).Scan(&stock).Error; err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", stock)
	}

	var status string
	if err := db.Raw("SELECT status FROM orders WHERE id = ?", order.ID).Scan(&status).Error; err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != string(enums.OrderStatusCancelled) {
		t.Fatalf("expected cancelled, got %s", status)
	}
}

func TestCancelCompletedOrderFails(t *testing.T) {
	db := setupOrdersServiceDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()

	order, err := svc.Cart(ctx, uuid.New())
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if err := db.Exec("UPDATE orders SET status = 'completed' WHERE id = ?", order.ID).Error; err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	err = svc.Cancel(ctx, order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
