package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinow/internal/model"
	"vinow/pkg/apperr"
)

func TestRefundFromPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, 100000)

	got, err := env.refunds.RequestRefund(ctx, order.ID, &RefundRequestInput{
		Reason:      "商品与描述不符",
		Explanation: "照片里有牛肉，实物没有",
		Evidence:    []string{"https://cdn.example.com/evidence/1.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusRefunding, got.Status)
	assert.Equal(t, model.OrderStatusPending, got.PreRefundStatus)
	assert.Equal(t, "商品与描述不符", got.RefundReason)
	assert.NotEmpty(t, got.RefundEvidence)

	// 拒绝后恢复到 PENDING
	got, err = env.refunds.RejectRefund(ctx, order.ID, "admin1", "凭证不足")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, got.Status)
	assert.Equal(t, "凭证不足", got.RefundRejectReason)
	assert.Equal(t, "admin1", got.RefundProcessedBy)

	// 恢复后订单可以正常核销
	_, err = env.verify.VerifyByCode(ctx, order.VerificationCode, testOperator)
	require.NoError(t, err)
}

func TestRefundFromVerifiedRestoresVerified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, 100000)
	verified, err := env.verify.VerifyByCode(ctx, order.VerificationCode, testOperator)
	require.NoError(t, err)
	firstVerifiedAt := verified.VerifiedAt
	require.NotNil(t, firstVerifiedAt)

	got, err := env.refunds.RequestRefund(ctx, order.ID, &RefundRequestInput{Reason: "吃完拉肚子"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusRefunding, got.Status)
	assert.Equal(t, model.OrderStatusVerified, got.PreRefundStatus)

	// 拒绝后必须恢复到 VERIFIED，且不重打核销时间
	got, err = env.refunds.RejectRefund(ctx, order.ID, "admin1", "超出售后时效")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusVerified, got.Status)
	require.NotNil(t, got.VerifiedAt)
	assert.Equal(t, firstVerifiedAt.Unix(), got.VerifiedAt.Unix())
}

func TestApproveRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, 150000)
	_, err := env.refunds.RequestRefund(ctx, order.ID, &RefundRequestInput{Reason: "不想要了"})
	require.NoError(t, err)

	got, err := env.refunds.ApproveRefund(ctx, order.ID, "admin1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusRefunded, got.Status)
	assert.Equal(t, "admin1", got.RefundProcessedBy)
	assert.NotNil(t, got.RefundedAt)

	// 终态后不可再操作
	_, err = env.refunds.ApproveRefund(ctx, order.ID, "admin1")
	assert.True(t, apperr.IsKind(err, apperr.InvalidState))
	_, err = env.verify.VerifyByCode(ctx, order.VerificationCode, testOperator)
	assert.True(t, apperr.IsKind(err, apperr.InvalidState))

	// 发件箱有退款事件
	pending, err := env.store.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	var found bool
	for _, msg := range pending {
		if msg.EventType == model.EventOrderRefunded {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRefundValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, 100000)

	// 原因必填
	_, err := env.refunds.RequestRefund(ctx, order.ID, &RefundRequestInput{})
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	// 已完成的订单不能退款
	_, err = env.verify.VerifyByCode(ctx, order.VerificationCode, testOperator)
	require.NoError(t, err)
	_, err = env.orders.Transition(ctx, order.ID, model.OrderStatusCompleted, "")
	require.NoError(t, err)
	_, err = env.refunds.RequestRefund(ctx, order.ID, &RefundRequestInput{Reason: "不想要了"})
	assert.True(t, apperr.IsKind(err, apperr.InvalidTransition))

	// 不在退款流程里的订单不能审批
	other := env.createOrder(t, 100000)
	_, err = env.refunds.ApproveRefund(ctx, other.ID, "admin1")
	assert.True(t, apperr.IsKind(err, apperr.InvalidState))

	// 拒绝原因必填
	_, err = env.refunds.RequestRefund(ctx, other.ID, &RefundRequestInput{Reason: "不想要了"})
	require.NoError(t, err)
	_, err = env.refunds.RejectRefund(ctx, other.ID, "admin1", "")
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

// 端到端：下单 -> 支付 -> 核销 -> 申请退款 -> 拒绝恢复 -> 完成
func TestOrderLifecycleEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order, err := env.orders.CreateOrder(ctx, &CreateOrderInput{
		MerchantID:    "m1",
		UserID:        "u1",
		PaymentMethod: "momo",
		Items: []CreateOrderItemInput{
			{ProductID: "p1", ProductName: "Set ăn 2 người", UnitPrice: 150000, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150000), order.FinalAmount)

	_, err = env.orders.ApplyPaymentCapture(ctx, order.ID, "momo")
	require.NoError(t, err)

	verified, err := env.verify.VerifyByCode(ctx, order.VerificationCode, testOperator)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusVerified, verified.Status)

	_, err = env.refunds.RequestRefund(ctx, order.ID, &RefundRequestInput{Reason: "分量太少"})
	require.NoError(t, err)

	restored, err := env.refunds.RejectRefund(ctx, order.ID, "admin1", "已核销且无质量问题")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusVerified, restored.Status)

	completed, err := env.orders.Transition(ctx, order.ID, model.OrderStatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
}
