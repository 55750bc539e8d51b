package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinow/internal/model"
	"vinow/pkg/apperr"
)

func newTestOrder(id string) *model.Order {
	return &model.Order{
		ID:               id,
		OrderNumber:      "ORD-" + id,
		MerchantID:       "m1",
		UserID:           "u1",
		Status:           model.OrderStatusPending,
		TotalAmount:      100000,
		FinalAmount:      100000,
		Currency:         "VND",
		PaymentStatus:    model.PaymentStatusPending,
		VerificationCode: "CODE" + id,
	}
}

func TestOrderCreateAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	order := newTestOrder("o1")
	require.NoError(t, store.Orders().Create(ctx, order))

	got, err := store.Orders().GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-o1", got.OrderNumber)

	got, err = store.Orders().GetByOrderNumber(ctx, "ORD-o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", got.ID)

	got, err = store.Orders().GetByVerificationCode(ctx, "CODEo1")
	require.NoError(t, err)
	assert.Equal(t, "o1", got.ID)

	_, err = store.Orders().GetByID(ctx, "missing")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestUpdateStatusConditional(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Orders().Create(ctx, newTestOrder("o1")))

	err := store.Orders().UpdateStatus(ctx, "o1", model.OrderStatusPending, model.OrderStatusVerified, nil)
	require.NoError(t, err)

	got, err := store.Orders().GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusVerified, got.Status)
	assert.NotNil(t, got.VerifiedAt)

	// 前置状态不匹配：并发冲突
	err = store.Orders().UpdateStatus(ctx, "o1", model.OrderStatusPending, model.OrderStatusCancelled, nil)
	assert.True(t, apperr.IsKind(err, apperr.ConcurrencyConflict))
}

func TestUpdateStatusRace(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Orders().Create(ctx, newTestOrder("o1")))

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.Orders().UpdateStatus(ctx, "o1", model.OrderStatusPending, model.OrderStatusVerified, nil)
		}()
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		if err == nil {
			success++
		} else {
			assert.True(t, apperr.IsKind(err, apperr.ConcurrencyConflict))
		}
	}
	assert.Equal(t, 1, success, "条件更新只能有一个赢家")
}

func TestUpdateStatusAppliesExtraColumns(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Orders().Create(ctx, newTestOrder("o1")))

	extra := map[string]interface{}{
		"pre_refund_status": model.OrderStatusPending,
		"refund_reason":     "商品缺货",
	}
	require.NoError(t, store.Orders().UpdateStatus(ctx, "o1", model.OrderStatusPending, model.OrderStatusRefunding, extra))

	got, err := store.Orders().GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusRefunding, got.Status)
	assert.Equal(t, model.OrderStatusPending, got.PreRefundStatus)
	assert.Equal(t, "商品缺货", got.RefundReason)
}

func TestListVerifiedOnDay(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Orders().Create(ctx, newTestOrder("o1")))
	require.NoError(t, store.Orders().Create(ctx, newTestOrder("o2")))
	require.NoError(t, store.Orders().UpdateStatus(ctx, "o1", model.OrderStatusPending, model.OrderStatusVerified, nil))

	verified, err := store.Orders().ListVerifiedOnDay(ctx, "m1", time.Now())
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.Equal(t, "o1", verified[0].ID)
}

func TestDailySummaryUpsert(t *testing.T) {
	store := New()
	ctx := context.Background()
	day := time.Now()

	first := &model.FinanceDailySummary{MerchantID: "m1", SummaryDate: day, TotalIncome: 100}
	require.NoError(t, store.Finance().UpsertDailySummary(ctx, first))

	second := &model.FinanceDailySummary{MerchantID: "m1", SummaryDate: day, TotalIncome: 250}
	require.NoError(t, store.Finance().UpsertDailySummary(ctx, second))

	// 覆盖写，不产生第二行
	assert.Equal(t, first.ID, second.ID)

	got, err := store.Finance().GetDailySummary(ctx, "m1", day)
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.TotalIncome)
}

func TestOutboxLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	msg := &model.OutboxMessage{MessageKey: "o1", EventType: "order.verified", Topic: "t", Payload: "{}"}
	require.NoError(t, store.Outbox().Create(ctx, msg))
	require.NotZero(t, msg.ID)

	pending, err := store.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, store.Outbox().IncrementRetry(ctx, msg.ID))
	require.NoError(t, store.Outbox().MarkSent(ctx, msg.ID))

	pending, err = store.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGetReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Orders().Create(ctx, newTestOrder("o1")))

	got, err := store.Orders().GetByID(ctx, "o1")
	require.NoError(t, err)
	got.Status = model.OrderStatusCancelled

	again, err := store.Orders().GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, again.Status, "调用方修改返回值不应影响存储")
}
