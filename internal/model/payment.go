package model

import (
	"time"
)

// ============================================================================
// 支付流水实体
// ============================================================================
//
// PaymentRecord 由支付回调写入，记录每一笔实际到账，是日对账的"实际"侧。
//
// 【流水表设计原则】
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 每笔流水必须关联订单号 —— 便于对账
// 3. 支付网关本身是外部协作方，这里只记录它报告的结果
type PaymentRecord struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	PaymentNumber string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_number"`
	OrderNumber   string    `gorm:"type:varchar(64);index;not null" json:"order_number"`
	MerchantID    string    `gorm:"type:varchar(36);index;not null" json:"merchant_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	PaymentMethod string    `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaidAt        time.Time `gorm:"index;not null" json:"paid_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PaymentRecord) TableName() string {
	return "payment_records"
}
