package payments

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jodise/jodise-backend/internal/fulfillment"
	"github.com/jodise/jodise-backend/internal/inventory"
	"github.com/jodise/jodise-backend/internal/orders"
	"github.com/jodise/jodise-backend/internal/products"
	"github.com/jodise/jodise-backend/internal/sellers"
	"github.com/jodise/jodise-backend/internal/users"
	"github.com/jodise/jodise-backend/pkg/config"
	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
)

type stubTxRunner struct {
	db *gorm.DB
}

func (r stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeGateway struct {
	name         enums.Gateway
	initResult   *InitializeResult
	initErr      error
	initCalls    int
	verifyResult *VerifyResult
	verifyErr    error
}

func (f *fakeGateway) Name() enums.Gateway {
	return f.name
}

func (f *fakeGateway) Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error) {
	f.initCalls++
	if f.initErr != nil {
		return nil, f.initErr
	}
	if f.initResult != nil {
		return f.initResult, nil
	}
	return &InitializeResult{
		AuthorizationURL: "https://checkout.example/" + params.Reference,
		AccessCode:       "ac_" + params.Reference,
		Reference:        params.Reference,
		Raw:              json.RawMessage(`{}`),
	}, nil
}

func (f *fakeGateway) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyResult, nil
}

func (f *fakeGateway) VerifyWebhookSignature(body []byte, header string) bool {
	return true
}

type fakeFulfiller struct {
	result *fulfillment.Result
	err    error
	inputs []fulfillment.Input
}

func (f *fakeFulfiller) Fulfill(ctx context.Context, in fulfillment.Input) (*fulfillment.Result, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type serviceFixture struct {
	db       *gorm.DB
	svc      *service
	repo     Repository
	gateway  *fakeGateway
	fulfill  *fakeFulfiller
	buyer    *models.User
	order    *models.Order
	products []*models.Product
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db := setupPaymentsDB(t)
	logg := logger.New(logger.Options{Output: io.Discard})
	runner := stubTxRunner{db: db}

	buyer := &models.User{ID: uuid.New(), Email: "buyer@example.com", Role: enums.RoleBuyer}
	if err := db.Create(buyer).Error; err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	seller := &models.Seller{ID: uuid.New(), UserID: uuid.New(), StoreName: "Seller"}
	if err := db.Create(seller).Error; err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	product := &models.Product{
		ID:       uuid.New(),
		SellerID: seller.ID,
		Name:     "Widget",
		SKU:      "sku-" + uuid.NewString(),
		Price:    decimal.NewFromInt(1000),
		Stock:    10,
		IsActive: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	order := &models.Order{
		ID:           uuid.New(),
		BuyerID:      buyer.ID,
		Status:       enums.OrderStatusPending,
		TrackingCode: "TRK" + uuid.NewString()[:5],
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	item := &models.OrderItem{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ProductID: product.ID,
		SellerID:  seller.ID,
		Qty:       2,
		UnitPrice: product.Price,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed order item: %v", err)
	}

	ordersRepo := orders.NewRepository(db)
	ordersSvc, err := orders.NewService(ordersRepo, products.NewRepository(db), sellers.NewRepository(db), inventory.NewService(), runner, nil, logg)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}

	gateway := &fakeGateway{name: enums.GatewayPaystack}
	fulfill := &fakeFulfiller{result: &fulfillment.Result{OrderID: order.ID, Status: enums.OrderStatusPaid}}
	repo := NewRepository(db)

	svc, err := NewService(
		repo,
		NewRegistry(gateway),
		ordersRepo,
		ordersSvc,
		users.NewRepository(db),
		fulfill,
		config.MarketplaceConfig{VATPercent: "7.5", CommissionPercent: "10", DeliveryFee: "0", Currency: "NGN", ActiveGateway: "paystack"},
		nil,
		logg,
	)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}

	return &serviceFixture{
		db:       db,
		svc:      svc.(*service),
		repo:     repo,
		gateway:  gateway,
		fulfill:  fulfill,
		buyer:    buyer,
		order:    order,
		products: []*models.Product{product},
	}
}

func TestInitializeCharge_CreatesSession(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	session, err := fix.svc.InitializeCharge(context.Background(), fix.buyer.ID)
	if err != nil {
		t.Fatalf("initialize charge: %v", err)
	}

	if !strings.HasPrefix(session.Reference, "JOD-") {
		t.Fatalf("reference = %q, want JOD- prefix", session.Reference)
	}
	// 2 x 1000 at 7.5% VAT = 2150.00, wired as 215000 minor units.
	if session.AmountMinor != 215000 {
		t.Fatalf("amount minor = %d, want 215000", session.AmountMinor)
	}
	if !session.Amount.Equal(decimal.NewFromInt(2150)) {
		t.Fatalf("amount = %s, want 2150", session.Amount)
	}
	if session.Gateway != enums.GatewayPaystack || session.Reused {
		t.Fatalf("session = %+v", session)
	}

	txn, err := fix.repo.FindByReference(context.Background(), session.Reference)
	if err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.Status != enums.PaymentStatusPending {
		t.Fatalf("status = %s, want pending", txn.Status)
	}
	if txn.AccessCode == nil || *txn.AccessCode != session.AccessCode {
		t.Fatalf("access code = %v", txn.AccessCode)
	}

	// Totals were persisted so fulfillment recomputes the same number.
	var order models.Order
	if err := fix.db.Where("id = ?", fix.order.ID).First(&order).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if !order.Total.Equal(decimal.NewFromInt(2150)) {
		t.Fatalf("order total = %s, want 2150", order.Total)
	}
}

func TestInitializeCharge_ReusesInFlightSession(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	first, err := fix.svc.InitializeCharge(context.Background(), fix.buyer.ID)
	if err != nil {
		t.Fatalf("first initialize: %v", err)
	}

	second, err := fix.svc.InitializeCharge(context.Background(), fix.buyer.ID)
	if err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if !second.Reused {
		t.Fatal("expected in-flight session to be reused")
	}
	if second.Reference != first.Reference {
		t.Fatalf("reference = %q, want %q", second.Reference, first.Reference)
	}
	if fix.gateway.initCalls != 1 {
		t.Fatalf("gateway initialize calls = %d, want 1", fix.gateway.initCalls)
	}
}

func TestInitializeCharge_ReplacesStaleSession(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	first, err := fix.svc.InitializeCharge(context.Background(), fix.buyer.ID)
	if err != nil {
		t.Fatalf("first initialize: %v", err)
	}

	fix.svc.now = func() time.Time { return time.Now().Add(reuseWindow + time.Minute) }
	second, err := fix.svc.InitializeCharge(context.Background(), fix.buyer.ID)
	if err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if second.Reused {
		t.Fatal("expected a fresh session after the reuse window")
	}
	if second.Reference == first.Reference {
		t.Fatal("expected a new reference")
	}
	if fix.gateway.initCalls != 2 {
		t.Fatalf("gateway initialize calls = %d, want 2", fix.gateway.initCalls)
	}

	// The stale transaction can never settle.
	old, err := fix.repo.FindByReference(context.Background(), first.Reference)
	if err != nil {
		t.Fatalf("load stale transaction: %v", err)
	}
	if old.Status != enums.PaymentStatusFailed {
		t.Fatalf("stale status = %s, want failed", old.Status)
	}
}

func TestInitializeCharge_ReplacesAmountMismatch(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	first, err := fix.svc.InitializeCharge(context.Background(), fix.buyer.ID)
	if err != nil {
		t.Fatalf("first initialize: %v", err)
	}

	// The cart changed, so the in-flight amount no longer matches.
	if err := fix.db.Model(&models.OrderItem{}).
		Where("order_id = ?", fix.order.ID).
		Update("qty", 3).Error; err != nil {
		t.Fatalf("grow cart: %v", err)
	}

	second, err := fix.svc.InitializeCharge(context.Background(), fix.buyer.ID)
	if err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if second.Reused || second.Reference == first.Reference {
		t.Fatalf("expected a fresh session, got %+v", second)
	}
	if second.AmountMinor != 322500 {
		t.Fatalf("amount minor = %d, want 322500", second.AmountMinor)
	}
}

func TestInitializeCharge_EmptyCart(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	if err := fix.db.Where("order_id = ?", fix.order.ID).Delete(&models.OrderItem{}).Error; err != nil {
		t.Fatalf("empty cart: %v", err)
	}

	_, err := fix.svc.InitializeCharge(context.Background(), fix.buyer.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected Validation, got %v", err)
	}
}

func TestVerifyCharge_PaidTriggersFulfillment(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	session, err := fix.svc.InitializeCharge(context.Background(), fix.buyer.ID)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	fix.gateway.verifyResult = &VerifyResult{
		Reference:   session.Reference,
		Paid:        true,
		AmountMinor: session.AmountMinor,
		Raw:         json.RawMessage(`{"status":"success"}`),
	}

	outcome, err := fix.svc.VerifyCharge(context.Background(), session.Reference)
	if err != nil {
		t.Fatalf("verify charge: %v", err)
	}
	if outcome.Status != enums.PaymentStatusSuccess {
		t.Fatalf("status = %s, want success", outcome.Status)
	}
	if len(fix.fulfill.inputs) != 1 {
		t.Fatalf("fulfill calls = %d, want 1", len(fix.fulfill.inputs))
	}
	if fix.fulfill.inputs[0].AmountMinor != session.AmountMinor {
		t.Fatalf("fulfill amount = %d, want %d", fix.fulfill.inputs[0].AmountMinor, session.AmountMinor)
	}
}

func TestVerifyCharge_FailedMarksFailed(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	session, err := fix.svc.InitializeCharge(context.Background(), fix.buyer.ID)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	fix.gateway.verifyResult = &VerifyResult{
		Reference: session.Reference,
		Failed:    true,
		Raw:       json.RawMessage(`{"status":"failed"}`),
	}

	outcome, err := fix.svc.VerifyCharge(context.Background(), session.Reference)
	if err != nil {
		t.Fatalf("verify charge: %v", err)
	}
	if outcome.Status != enums.PaymentStatusFailed {
		t.Fatalf("status = %s, want failed", outcome.Status)
	}
	if len(fix.fulfill.inputs) != 0 {
		t.Fatal("fulfillment must not run for failed charges")
	}

	txn, err := fix.repo.FindByReference(context.Background(), session.Reference)
	if err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.Status != enums.PaymentStatusFailed {
		t.Fatalf("stored status = %s, want failed", txn.Status)
	}
}

func TestVerifyCharge_PendingPassthrough(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	session, err := fix.svc.InitializeCharge(context.Background(), fix.buyer.ID)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	fix.gateway.verifyResult = &VerifyResult{Reference: session.Reference}

	outcome, err := fix.svc.VerifyCharge(context.Background(), session.Reference)
	if err != nil {
		t.Fatalf("verify charge: %v", err)
	}
	if outcome.Status != enums.PaymentStatusPending {
		t.Fatalf("status = %s, want pending", outcome.Status)
	}
}

func TestVerifyCharge_UnknownReference(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	_, err := fix.svc.VerifyCharge(context.Background(), "JOD-unknown")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
