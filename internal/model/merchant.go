package model

import (
	"time"
)

const (
	MerchantStatusActive   = "active"
	MerchantStatusDisabled = "disabled"
)

type Merchant struct {
	ID     string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name   string `gorm:"type:varchar(200);not null" json:"name"`
	Status string `gorm:"type:varchar(20);index;not null;default:active" json:"status"`

	// CommissionRate 平台抽佣比例，十进制字符串（如 "0.02"），避免浮点误差
	CommissionRate string `gorm:"type:varchar(16);not null;default:0.02" json:"commission_rate"`

	BankAccount string    `gorm:"type:varchar(50)" json:"bank_account"`
	BankName    string    `gorm:"type:varchar(100)" json:"bank_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Merchant) TableName() string {
	return "merchants"
}
