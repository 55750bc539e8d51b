package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinow/internal/model"
	"vinow/internal/repository"
	"vinow/internal/repository/memory"
	"vinow/pkg/apperr"
	"vinow/pkg/idgen"
)

const testTopic = "vinow.order.events"

type testEnv struct {
	store          repository.DataStore
	orders         *OrderService
	verify         *VerifyService
	refunds        *RefundService
	finance        *FinanceService
	settlement     *SettlementService
	reconciliation *ReconciliationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	ids := idgen.New()

	env := &testEnv{
		store:          store,
		orders:         NewOrderService(store, ids, testTopic),
		verify:         NewVerifyService(store, testTopic),
		refunds:        NewRefundService(store, testTopic),
		finance:        NewFinanceService(store, "0.02"),
		settlement:     NewSettlementService(store, ids),
		reconciliation: NewReconciliationService(store),
	}

	err := store.Merchants().Create(context.Background(), &model.Merchant{
		ID:             "m1",
		Name:           "Quán Phở Hà Nội",
		Status:         model.MerchantStatusActive,
		CommissionRate: "0.02",
		BankAccount:    "0123456789",
		BankName:       "Vietcombank",
	})
	require.NoError(t, err)

	return env
}

func (e *testEnv) createOrder(t *testing.T, amount int64) *model.Order {
	t.Helper()
	order, err := e.orders.CreateOrder(context.Background(), &CreateOrderInput{
		MerchantID:    "m1",
		UserID:        "u1",
		PaymentMethod: "momo",
		Items: []CreateOrderItemInput{
			{ProductID: "p1", ProductName: "Phở bò", UnitPrice: amount, Quantity: 1},
		},
	})
	require.NoError(t, err)
	return order
}

var testOperator = Operator{StaffID: "staff1", StaffName: "Nguyễn Văn A"}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order, err := env.orders.CreateOrder(ctx, &CreateOrderInput{
		MerchantID:     "m1",
		UserID:         "u1",
		PaymentMethod:  "momo",
		DiscountAmount: 20000,
		Items: []CreateOrderItemInput{
			{ProductID: "p1", ProductName: "Phở bò", UnitPrice: 50000, Quantity: 2},
			{ProductID: "p2", ProductName: "Trà đá", UnitPrice: 10000, Quantity: 7},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, int64(170000), order.TotalAmount)
	assert.Equal(t, int64(150000), order.FinalAmount)
	assert.Equal(t, "VND", order.Currency)
	assert.NotEmpty(t, order.OrderNumber)
	assert.Len(t, order.VerificationCode, 8)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, int64(100000), order.Items[0].Subtotal)
}

func TestCreateOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 空条目
	_, err := env.orders.CreateOrder(ctx, &CreateOrderInput{MerchantID: "m1", UserID: "u1"})
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	// 非法数量
	_, err = env.orders.CreateOrder(ctx, &CreateOrderInput{
		MerchantID: "m1", UserID: "u1",
		Items: []CreateOrderItemInput{{ProductID: "p1", ProductName: "x", UnitPrice: 100, Quantity: 0}},
	})
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	// 折扣超过总额
	_, err = env.orders.CreateOrder(ctx, &CreateOrderInput{
		MerchantID: "m1", UserID: "u1", DiscountAmount: 200,
		Items: []CreateOrderItemInput{{ProductID: "p1", ProductName: "x", UnitPrice: 100, Quantity: 1}},
	})
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, 100000)

	got, err := env.orders.Transition(ctx, order.ID, model.OrderStatusConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, got.Status)

	got, err = env.orders.Transition(ctx, order.ID, model.OrderStatusPreparing, "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPreparing, got.Status)

	// 非法边
	_, err = env.orders.Transition(ctx, order.ID, model.OrderStatusCompleted, "")
	assert.True(t, apperr.IsKind(err, apperr.InvalidTransition))

	// 不存在的订单
	_, err = env.orders.Transition(ctx, "missing", model.OrderStatusConfirmed, "")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestCancelRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, 100000)

	_, err := env.orders.Transition(ctx, order.ID, model.OrderStatusCancelled, "")
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	got, err := env.orders.Transition(ctx, order.ID, model.OrderStatusCancelled, "用户不想要了")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
	assert.Equal(t, "用户不想要了", got.CancelReason)
	assert.NotNil(t, got.CancelledAt)
}

func TestApplyPaymentCapture(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, 150000)

	got, err := env.orders.ApplyPaymentCapture(ctx, order.ID, "momo")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
	assert.NotEmpty(t, got.PaymentNumber)
	assert.NotNil(t, got.PaidAt)

	// 流水落库
	payments, err := env.store.Payments().ListPaidOnDay(ctx, "m1", *got.PaidAt)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(150000), payments[0].Amount)
	assert.Equal(t, order.OrderNumber, payments[0].OrderNumber)

	// 发件箱事件落库
	pending, err := env.store.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.EventPaymentCaptured, pending[0].EventType)
	assert.Equal(t, testTopic, pending[0].Topic)

	// 重复入账拒绝
	_, err = env.orders.ApplyPaymentCapture(ctx, order.ID, "momo")
	assert.True(t, apperr.IsKind(err, apperr.InvalidState))
}

func TestConcurrentPaymentCapture(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, 150000)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.orders.ApplyPaymentCapture(ctx, order.ID, "momo")
		}()
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		if err == nil {
			success++
		} else {
			assert.True(t, apperr.IsKind(err, apperr.InvalidState) || apperr.IsKind(err, apperr.ConcurrencyConflict),
				"意外错误: %v", err)
		}
	}
	assert.Equal(t, 1, success, "同一订单并发入账只能成功一次")

	// 支付流水只能有一行，否则对账"实收"侧会重复计数
	got, err := env.store.Orders().GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PaidAt)
	payments, err := env.store.Payments().ListPaidOnDay(ctx, "m1", *got.PaidAt)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestGetTodayStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	o1 := env.createOrder(t, 100000)
	env.createOrder(t, 50000)

	_, err := env.verify.VerifyByCode(ctx, o1.VerificationCode, testOperator)
	require.NoError(t, err)

	stats, err := env.orders.GetTodayStats(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.OrderCount)
	assert.Equal(t, 1, stats.PendingCount)
	assert.Equal(t, 1, stats.VerifiedCount)
	assert.Equal(t, int64(100000), stats.TotalIncome)
	assert.InDelta(t, 0.5, stats.VerificationRate, 1e-9)
}
