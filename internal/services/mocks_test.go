package service_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/trinity-shop/trinity-platform/internal/models"
	repository "github.com/trinity-shop/trinity-platform/internal/repositories"
	service "github.com/trinity-shop/trinity-platform/internal/services"
)

type mockCartRepo struct {
	mock.Mock
}

func (m *mockCartRepo) CreateCart(ctx context.Context, cart *models.Cart) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *mockCartRepo) GetActiveCartByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	args := m.Called(ctx, userID)
	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockCartRepo) GetCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	args := m.Called(ctx, id)
	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockCartRepo) InsertItem(ctx context.Context, item *models.CartItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *mockCartRepo) UpdateItem(ctx context.Context, item *models.CartItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *mockCartRepo) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCartRepo) SaveCart(ctx context.Context, cart *models.Cart) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *mockCartRepo) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return m.Called(ctx, cartID).Error(0)
}

func (m *mockCartRepo) SettleCart(ctx context.Context, q repository.Querier, cartID uuid.UUID) error {
	return m.Called(ctx, q, cartID).Error(0)
}

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) CreateProduct(ctx context.Context, product *models.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if product, ok := args.Get(0).(*models.Product); ok {
		return product, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockProductRepo) UpdateProduct(ctx context.Context, product *models.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) ListProducts(ctx context.Context, page, size int) ([]*models.Product, int, error) {
	args := m.Called(ctx, page, size)
	if products, ok := args.Get(0).([]*models.Product); ok {
		return products, args.Int(1), args.Error(2)
	}

	return nil, args.Int(1), args.Error(2)
}

func (m *mockProductRepo) DecrementStock(ctx context.Context, q repository.Querier, id uuid.UUID, quantity int) error {
	return m.Called(ctx, q, id, quantity).Error(0)
}

func (m *mockProductRepo) IncrementStock(ctx context.Context, q repository.Querier, id uuid.UUID, quantity int) error {
	return m.Called(ctx, q, id, quantity).Error(0)
}

type mockCouponRepo struct {
	mock.Mock
}

func (m *mockCouponRepo) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	return m.Called(ctx, coupon).Error(0)
}

func (m *mockCouponRepo) GetCouponByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	args := m.Called(ctx, id)
	if coupon, ok := args.Get(0).(*models.Coupon); ok {
		return coupon, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockCouponRepo) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	args := m.Called(ctx, code)
	if coupon, ok := args.Get(0).(*models.Coupon); ok {
		return coupon, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockCouponRepo) ListCoupons(ctx context.Context) ([]*models.Coupon, error) {
	args := m.Called(ctx)
	if coupons, ok := args.Get(0).([]*models.Coupon); ok {
		return coupons, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockCouponRepo) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCouponRepo) ConsumeUsage(ctx context.Context, q repository.Querier, id uuid.UUID) error {
	return m.Called(ctx, q, id).Error(0)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if user, ok := args.Get(0).(*models.User); ok {
		return user, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if user, ok := args.Get(0).(*models.User); ok {
		return user, args.Error(1)
	}

	return nil, args.Error(1)
}

type mockInvoiceRepo struct {
	mock.Mock
}

func (m *mockInvoiceRepo) CreateInvoice(ctx context.Context, q repository.Querier, invoice *models.Invoice) error {
	return m.Called(ctx, q, invoice).Error(0)
}

func (m *mockInvoiceRepo) GetInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if invoice, ok := args.Get(0).(*models.Invoice); ok {
		return invoice, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockInvoiceRepo) ListInvoices(ctx context.Context) ([]*models.Invoice, error) {
	args := m.Called(ctx)
	if invoices, ok := args.Get(0).([]*models.Invoice); ok {
		return invoices, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockInvoiceRepo) ListInvoicesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Invoice, error) {
	args := m.Called(ctx, userID)
	if invoices, ok := args.Get(0).([]*models.Invoice); ok {
		return invoices, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockInvoiceRepo) AddRefund(ctx context.Context, q repository.Querier, refund *models.RefundItem, status models.InvoiceStatus, refundedAmount float64) error {
	return m.Called(ctx, q, refund, status, refundedAmount).Error(0)
}

func (m *mockInvoiceRepo) AddRefundedQuantity(ctx context.Context, q repository.Querier, invoiceID, productID uuid.UUID, quantity int) error {
	return m.Called(ctx, q, invoiceID, productID, quantity).Error(0)
}

type mockLockRepo struct {
	mock.Mock
}

func (m *mockLockRepo) AcquireSettlementLock(ctx context.Context, cartID uuid.UUID) (bool, error) {
	args := m.Called(ctx, cartID)

	return args.Bool(0), args.Error(1)
}

func (m *mockLockRepo) ReleaseSettlementLock(ctx context.Context, cartID uuid.UUID) error {
	return m.Called(ctx, cartID).Error(0)
}

type mockRateLimitRepo struct {
	mock.Mock
}

func (m *mockRateLimitRepo) CheckLoginRateLimit(ctx context.Context, email string) (bool, int, int, error) {
	args := m.Called(ctx, email)

	return args.Bool(0), args.Int(1), args.Int(2), args.Error(3)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckout(ctx context.Context, cart *models.Cart, correlation service.Correlation, totals service.CheckoutTotals) (string, error) {
	args := m.Called(ctx, cart, correlation, totals)

	return args.String(0), args.Error(1)
}

func (m *mockGateway) Capture(ctx context.Context, providerRef string) (*service.CaptureOutcome, error) {
	args := m.Called(ctx, providerRef)
	if outcome, ok := args.Get(0).(*service.CaptureOutcome); ok {
		return outcome, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, providerTxID string, amount float64) (string, error) {
	args := m.Called(ctx, providerTxID, amount)

	return args.String(0), args.Error(1)
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) RenderInvoice(invoice *models.Invoice, user *models.User) ([]byte, error) {
	args := m.Called(invoice, user)
	if pdf, ok := args.Get(0).([]byte); ok {
		return pdf, args.Error(1)
	}

	return nil, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendOrderConfirmation(ctx context.Context, user *models.User, invoice *models.Invoice, pdf []byte) error {
	return m.Called(ctx, user, invoice, pdf).Error(0)
}
