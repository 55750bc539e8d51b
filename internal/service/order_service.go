package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"vinow/internal/model"
	"vinow/internal/repository"
	"vinow/pkg/apperr"
	"vinow/pkg/idgen"
)

// ============================================================================
// 订单服务
// ============================================================================
//
// 订单的创建、状态流转与支付入账。状态流转一律走条件更新，
// 非法流转在更新前拦截，并发冲突由存储层的 CAS 语义兜底。

type OrderService struct {
	store repository.DataStore
	ids   *idgen.Generator
	topic string // 订单事件 Kafka 主题
}

func NewOrderService(store repository.DataStore, ids *idgen.Generator, topic string) *OrderService {
	return &OrderService{store: store, ids: ids, topic: topic}
}

type CreateOrderInput struct {
	MerchantID     string                 `json:"merchant_id" binding:"required"`
	StoreID        string                 `json:"store_id"`
	UserID         string                 `json:"user_id" binding:"required"`
	PaymentMethod  string                 `json:"payment_method"`
	DiscountAmount int64                  `json:"discount_amount"`
	Items          []CreateOrderItemInput `json:"items" binding:"required"`
}

type CreateOrderItemInput struct {
	ProductID   string `json:"product_id" binding:"required"`
	ProductName string `json:"product_name" binding:"required"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

// CreateOrder 创建订单
//
// 金额以 VND 最小单位整数计；total 由条目累加得出，
// final = total - discount，任何一侧为负都拒绝。
func (s *OrderService) CreateOrder(ctx context.Context, input *CreateOrderInput) (*model.Order, error) {
	if len(input.Items) == 0 {
		return nil, apperr.ValidationErr("订单条目不能为空")
	}
	if input.DiscountAmount < 0 {
		return nil, apperr.ValidationErr("折扣金额不能为负")
	}

	var totalAmount int64
	items := make([]model.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, apperr.ValidationErr("商品 %s 数量必须为正", item.ProductID)
		}
		if item.UnitPrice < 0 {
			return nil, apperr.ValidationErr("商品 %s 单价不能为负", item.ProductID)
		}
		subtotal := item.UnitPrice * int64(item.Quantity)
		totalAmount += subtotal
		items = append(items, model.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Subtotal:    subtotal,
		})
	}

	finalAmount := totalAmount - input.DiscountAmount
	if finalAmount < 0 {
		return nil, apperr.ValidationErr("折扣金额不能超过订单总额")
	}

	order := &model.Order{
		ID:               uuid.NewString(),
		OrderNumber:      s.ids.OrderNumber(),
		MerchantID:       input.MerchantID,
		StoreID:          input.StoreID,
		UserID:           input.UserID,
		Status:           model.OrderStatusPending,
		TotalAmount:      totalAmount,
		DiscountAmount:   input.DiscountAmount,
		FinalAmount:      finalAmount,
		Currency:         "VND",
		PaymentMethod:    input.PaymentMethod,
		PaymentStatus:    model.PaymentStatusPending,
		VerificationCode: s.ids.VerificationCode(),
		Items:            items,
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}

	if err := s.store.Orders().Create(ctx, order); err != nil {
		return nil, err
	}

	log.Printf("[OrderService] 订单创建成功: %s 金额=%d", order.OrderNumber, order.FinalAmount)
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.store.Orders().GetByID(ctx, id)
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return s.store.Orders().GetByOrderNumber(ctx, orderNumber)
}

func (s *OrderService) ListMerchantOrders(ctx context.Context, merchantID string, page, pageSize int) ([]*model.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.store.Orders().ListByMerchant(ctx, merchantID, page, pageSize)
}

// Transition 订单状态流转
//
// 先查当前状态做合法性预检，再走条件更新。预检与更新之间
// 状态可能被并发改掉，此时条件更新命不中行，返回并发冲突。
func (s *OrderService) Transition(ctx context.Context, orderID, targetStatus, reason string) (*model.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !model.CanTransitionTo(order.Status, targetStatus) {
		return nil, apperr.InvalidTransitionErr("订单 %s 不允许从 %s 流转到 %s", order.OrderNumber, order.Status, targetStatus)
	}

	var extra map[string]interface{}
	if targetStatus == model.OrderStatusCancelled {
		if reason == "" {
			return nil, apperr.ValidationErr("取消订单必须填写原因")
		}
		extra = map[string]interface{}{"cancel_reason": reason}
	}

	fromStatus := order.Status
	err = s.store.Transact(ctx, func(tx repository.DataStore) error {
		if err := tx.Orders().UpdateStatus(ctx, orderID, fromStatus, targetStatus, extra); err != nil {
			return err
		}
		if targetStatus == model.OrderStatusCancelled {
			order.Status = targetStatus
			return enqueueOrderEvent(ctx, tx, s.topic, model.EventOrderCancelled, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[OrderService] 订单状态流转: %s %s -> %s", order.OrderNumber, fromStatus, targetStatus)
	return s.store.Orders().GetByID(ctx, orderID)
}

// ApplyPaymentCapture 支付到账回调
//
// 同一事务内：更新订单支付侧字段、追加支付流水、写入发件箱事件。
// 支付流水是对账任务的"实收"侧数据源，必须与订单更新原子落库。
func (s *OrderService) ApplyPaymentCapture(ctx context.Context, orderID, paymentMethod string) (*model.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == model.PaymentStatusPaid {
		return nil, apperr.InvalidStateErr("订单 %s 已支付，不可重复入账", order.OrderNumber)
	}

	now := time.Now()
	paymentNumber := s.ids.PaymentNumber()

	err = s.store.Transact(ctx, func(tx repository.DataStore) error {
		updates := map[string]interface{}{
			"payment_status": model.PaymentStatusPaid,
			"payment_number": paymentNumber,
			"payment_method": paymentMethod,
			"paid_at":        &now,
		}
		if err := tx.Orders().UpdatePayment(ctx, orderID, model.PaymentStatusPending, updates); err != nil {
			return err
		}

		record := &model.PaymentRecord{
			ID:            uuid.NewString(),
			PaymentNumber: paymentNumber,
			OrderNumber:   order.OrderNumber,
			MerchantID:    order.MerchantID,
			Amount:        order.FinalAmount,
			PaymentMethod: paymentMethod,
			PaidAt:        now,
		}
		if err := tx.Payments().Create(ctx, record); err != nil {
			return err
		}

		return enqueueOrderEvent(ctx, tx, s.topic, model.EventPaymentCaptured, order)
	})
	if err != nil {
		// 条件更新失败说明另一个回调抢先入账，对调用方来说就是重复支付
		if apperr.IsKind(err, apperr.ConcurrencyConflict) {
			if current, rerr := s.store.Orders().GetByID(ctx, orderID); rerr == nil && current.PaymentStatus == model.PaymentStatusPaid {
				return nil, apperr.InvalidStateErr("订单 %s 已支付，不可重复入账", order.OrderNumber)
			}
		}
		return nil, err
	}

	log.Printf("[OrderService] 支付入账: %s 流水号=%s 金额=%d", order.OrderNumber, paymentNumber, order.FinalAmount)
	return s.store.Orders().GetByID(ctx, orderID)
}

// TodayStats 商户当日订单实时统计（只读，不落库）
type TodayStats struct {
	OrderCount       int     `json:"order_count"`
	PendingCount     int     `json:"pending_count"`
	VerifiedCount    int     `json:"verified_count"`
	TotalIncome      int64   `json:"total_income"`
	VerificationRate float64 `json:"verification_rate"` // 已核销 / 当日订单数
}

func (s *OrderService) GetTodayStats(ctx context.Context, merchantID string) (*TodayStats, error) {
	orders, err := s.store.Orders().ListCreatedOnDay(ctx, merchantID, time.Now())
	if err != nil {
		return nil, err
	}

	stats := &TodayStats{OrderCount: len(orders)}
	for _, order := range orders {
		switch order.Status {
		case model.OrderStatusVerified, model.OrderStatusCompleted:
			stats.VerifiedCount++
			stats.TotalIncome += order.FinalAmount
		default:
			if model.IsRedeemable(order.Status) {
				stats.PendingCount++
			}
		}
	}
	if stats.OrderCount > 0 {
		stats.VerificationRate = float64(stats.VerifiedCount) / float64(stats.OrderCount)
	}
	return stats, nil
}
