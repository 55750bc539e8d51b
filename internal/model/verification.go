package model

import (
	"time"
)

const (
	VerificationMethodCode  = "code"
	VerificationMethodQR    = "qr"
	VerificationMethodBatch = "batch"
)

// VerificationRecord 核销记录表
//
// 每次核销成功恰好写入一行，只追加，不修改，不删除。
// 核销记录是日对账与员工核销统计的数据源。
type VerificationRecord struct {
	ID                 string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID            string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"order_id"`
	MerchantID         string    `gorm:"type:varchar(36);index;not null" json:"merchant_id"`
	StoreID            string    `gorm:"type:varchar(36);index" json:"store_id"`
	StaffID            string    `gorm:"type:varchar(36);not null" json:"staff_id"`
	StaffName          string    `gorm:"type:varchar(100);not null" json:"staff_name"`
	VerificationMethod string    `gorm:"type:varchar(16);not null" json:"verification_method"`
	CreatedAt          time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (VerificationRecord) TableName() string {
	return "verification_records"
}
