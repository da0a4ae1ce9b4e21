package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ledgerRow struct {
	ID        int
	Reference string
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	// A unique DSN per test keeps rows from leaking across shared in-memory
	// databases.
	dsn := "file:client_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&ledgerRow{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return &Client{conn: conn}
}

func countRows(t *testing.T, client *Client) int64 {
	t.Helper()
	var count int64
	if err := client.DB().Model(&ledgerRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return count
}

func TestWithTxCommits(t *testing.T) {
	client := newTestClient(t)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Reference: "JOD-commit"}).Error
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if got := countRows(t, client); got != 1 {
		t.Fatalf("rows = %d, want 1", got)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	client := newTestClient(t)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&ledgerRow{Reference: "JOD-rollback"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to surface the callback error")
	}
	if got := countRows(t, client); got != 0 {
		t.Fatalf("rows = %d, want 0 after rollback", got)
	}
}

func TestExecAndRaw(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.Exec(ctx, "INSERT INTO ledger_rows (reference) VALUES (?)", "JOD-raw").Error; err != nil {
		t.Fatalf("exec: %v", err)
	}

	var ref string
	if err := client.Raw(ctx, "SELECT reference FROM ledger_rows LIMIT 1").Scan(&ref).Error; err != nil {
		t.Fatalf("raw: %v", err)
	}
	if ref != "JOD-raw" {
		t.Fatalf("reference = %q, want JOD-raw", ref)
	}
}

func TestPing(t *testing.T) {
	client := newTestClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
