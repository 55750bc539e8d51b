package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OrderStatusPending   = "PENDING"   // 待核销
	OrderStatusConfirmed = "CONFIRMED" // 商家已接单
	OrderStatusPreparing = "PREPARING" // 备货中
	OrderStatusReady     = "READY"     // 待取货
	OrderStatusVerified  = "VERIFIED"  // 已核销
	OrderStatusCompleted = "COMPLETED" // 已完成
	OrderStatusCancelled = "CANCELLED" // 已取消
	OrderStatusRefunding = "REFUNDING" // 退款中
	OrderStatusRefunded  = "REFUNDED"  // 已退款
)

const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusFailed   = "FAILED"
	PaymentStatusRefunded = "REFUNDED"
)

// ValidStatusTransitions 订单状态机
//
// REFUNDING 到 PENDING / VERIFIED 的边是退款被拒后的恢复边，
// 恢复目标取订单进入 REFUNDING 时记录的 PreRefundStatus。
// COMPLETED / CANCELLED / REFUNDED 为终态，记录保留不删，供审计与对账。
var ValidStatusTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusVerified, OrderStatusCancelled, OrderStatusRefunding},
	OrderStatusConfirmed: {OrderStatusPreparing, OrderStatusVerified, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusVerified, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusVerified, OrderStatusCancelled},
	OrderStatusVerified:  {OrderStatusCompleted, OrderStatusRefunding},
	OrderStatusRefunding: {OrderStatusRefunded, OrderStatusPending, OrderStatusVerified},
}

// RedeemableStatuses 允许核销的状态集合
//
// 订单是预付凭证，下单即付款，PENDING 即可到店核销；
// 走接单备货流程的订单在 CONFIRMED / PREPARING / READY 同样可核销。
var RedeemableStatuses = map[string]bool{
	OrderStatusPending:   true,
	OrderStatusConfirmed: true,
	OrderStatusPreparing: true,
	OrderStatusReady:     true,
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

func IsRedeemable(status string) bool {
	return RedeemableStatuses[status]
}

// IsTerminal 判断是否终态
func IsTerminal(status string) bool {
	_, hasOutgoing := ValidStatusTransitions[status]
	return !hasOutgoing
}

type Order struct {
	ID          string `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderNumber string `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_number"`
	MerchantID  string `gorm:"type:varchar(36);index;not null" json:"merchant_id"`
	StoreID     string `gorm:"type:varchar(36);index" json:"store_id"`
	UserID      string `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Status      string `gorm:"type:varchar(20);index;not null" json:"status"`

	TotalAmount    int64  `gorm:"not null" json:"total_amount"`
	DiscountAmount int64  `gorm:"not null;default:0" json:"discount_amount"`
	FinalAmount    int64  `gorm:"not null" json:"final_amount"`
	Currency       string `gorm:"type:varchar(8);not null;default:VND" json:"currency"`

	PaymentMethod string `gorm:"type:varchar(20)" json:"payment_method"`
	PaymentStatus string `gorm:"type:varchar(20);not null;default:PENDING" json:"payment_status"`
	PaymentNumber string `gorm:"type:varchar(64);index" json:"payment_number"`

	// VerificationCode 建单时生成，全局唯一且不可变
	VerificationCode string `gorm:"type:varchar(16);uniqueIndex;not null" json:"verification_code"`

	// PreRefundStatus 进入 REFUNDING 时记录的前置状态，退款被拒时据此恢复
	PreRefundStatus    string         `gorm:"type:varchar(20)" json:"pre_refund_status,omitempty"`
	RefundReason       string         `gorm:"type:varchar(256)" json:"refund_reason,omitempty"`
	RefundExplanation  string         `gorm:"type:varchar(1024)" json:"refund_explanation,omitempty"`
	RefundEvidence     datatypes.JSON `gorm:"type:json" json:"refund_evidence,omitempty"`
	RefundProcessedBy  string         `gorm:"type:varchar(36)" json:"refund_processed_by,omitempty"`
	RefundRejectReason string         `gorm:"type:varchar(512)" json:"refund_reject_reason,omitempty"`

	CancelReason string `gorm:"type:varchar(512)" json:"cancel_reason,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`

	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     string `gorm:"type:varchar(36);index;not null" json:"order_id"`
	ProductID   string `gorm:"type:varchar(36);not null" json:"product_id"`
	ProductName string `gorm:"type:varchar(200);not null" json:"product_name"`
	UnitPrice   int64  `gorm:"not null" json:"unit_price"`
	Quantity    int    `gorm:"not null" json:"quantity"`
	Subtotal    int64  `gorm:"not null" json:"subtotal"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// StatusTimestamps 返回目标状态对应要打的时间戳字段
func StatusTimestamps(targetStatus string, now time.Time) map[string]interface{} {
	switch targetStatus {
	case OrderStatusVerified:
		return map[string]interface{}{"verified_at": &now}
	case OrderStatusCompleted:
		return map[string]interface{}{"completed_at": &now}
	case OrderStatusCancelled:
		return map[string]interface{}{"cancelled_at": &now}
	case OrderStatusRefunded:
		return map[string]interface{}{"refunded_at": &now}
	default:
		return nil
	}
}
