package payments

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
)

func setupPaymentsDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := []string{`
CREATE TABLE IF NOT EXISTS payment_transactions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  reference TEXT NOT NULL UNIQUE,
  gateway TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  access_code TEXT,
  authorization_url TEXT,
  gateway_response TEXT,
  verified_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'buyer',
  created_at DATETIME,
  updated_at DATETIME
);`, `
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

func seedTxn(t *testing.T, db *gorm.DB) *models.PaymentTransaction {
	t.Helper()
	txn := &models.PaymentTransaction{
		ID:        uuid.New(),
		OrderID:   uuid.New(),
		BuyerID:   uuid.New(),
		Reference: "JOD-" + uuid.NewString()[:12],
		Gateway:   enums.GatewayPaystack,
		Amount:    decimal.NewFromInt(2500),
		Currency:  "NGN",
		Status:    enums.PaymentStatusPending,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return txn
}

func TestRepository_DuplicateReference(t *testing.T) {
	t.Parallel()

	db := setupPaymentsDB(t)
	repo := NewRepository(db)
	txn := seedTxn(t, db)

	dup := &models.PaymentTransaction{
		ID:        uuid.New(),
		OrderID:   uuid.New(),
		BuyerID:   uuid.New(),
		Reference: txn.Reference,
		Gateway:   enums.GatewayPaystack,
		Amount:    decimal.NewFromInt(100),
		Currency:  "NGN",
		Status:    enums.PaymentStatusPending,
	}
	err := repo.Create(context.Background(), dup)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestRepository_MarkSuccessIsTerminal(t *testing.T) {
	t.Parallel()

	db := setupPaymentsDB(t)
	repo := NewRepository(db)
	txn := seedTxn(t, db)
	raw := json.RawMessage(`{"status":"success"}`)

	if err := repo.MarkSuccess(context.Background(), txn.ID, raw); err != nil {
		t.Fatalf("mark success: %v", err)
	}

	var reloaded models.PaymentTransaction
	if err := db.Where("id = ?", txn.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.PaymentStatusSuccess {
		t.Fatalf("status = %s, want success", reloaded.Status)
	}
	if reloaded.VerifiedAt == nil {
		t.Fatal("expected verified_at to be set")
	}

	// Replaying the same terminal state is a no-op.
	if err := repo.MarkSuccess(context.Background(), txn.ID, raw); err != nil {
		t.Fatalf("replayed mark success: %v", err)
	}

	// Crossing to the other terminal state is a conflict.
	err := repo.MarkFailed(context.Background(), txn.ID, raw)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected StateConflict, got %v", err)
	}
}

func TestRepository_MarkFailedUnknownTransaction(t *testing.T) {
	t.Parallel()

	db := setupPaymentsDB(t)
	repo := NewRepository(db)

	err := repo.MarkFailed(context.Background(), uuid.New(), nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRepository_FindLatestPendingByOrder(t *testing.T) {
	t.Parallel()

	db := setupPaymentsDB(t)
	repo := NewRepository(db)
	txn := seedTxn(t, db)

	found, err := repo.FindLatestPendingByOrder(context.Background(), txn.OrderID)
	if err != nil {
		t.Fatalf("find latest pending: %v", err)
	}
	if found == nil || found.ID != txn.ID {
		t.Fatalf("expected %s, got %+v", txn.ID, found)
	}

	if err := repo.MarkFailed(context.Background(), txn.ID, nil); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	found, err = repo.FindLatestPendingByOrder(context.Background(), txn.OrderID)
	if err != nil {
		t.Fatalf("find latest pending: %v", err)
	}
	if found != nil {
		t.Fatalf("expected no pending transaction, got %+v", found)
	}
}

func TestRepository_SaveInitializationUpdatesReference(t *testing.T) {
	t.Parallel()

	db := setupPaymentsDB(t)
	repo := NewRepository(db)
	txn := seedTxn(t, db)

	err := repo.SaveInitialization(context.Background(), txn.ID, "cs_test_123", "cs_test_123", "https://pay.example/cs_test_123", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("save initialization: %v", err)
	}

	found, err := repo.FindByReference(context.Background(), "cs_test_123")
	if err != nil {
		t.Fatalf("find by new reference: %v", err)
	}
	if found.ID != txn.ID {
		t.Fatalf("expected %s, got %s", txn.ID, found.ID)
	}
	if found.AccessCode == nil || *found.AccessCode != "cs_test_123" {
		t.Fatalf("access code = %v", found.AccessCode)
	}
}
