package repository

import (
	"context"
	"time"

	"vinow/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func (r *PaymentRepository) Create(ctx context.Context, record *model.PaymentRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return wrapDB(err, "创建支付流水失败")
	}
	return nil
}

func (r *PaymentRepository) ListPaidOnDay(ctx context.Context, merchantID string, day time.Time) ([]*model.PaymentRecord, error) {
	start, end := dayBounds(day)

	var records []*model.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND paid_at >= ? AND paid_at < ?", merchantID, start, end).
		Find(&records).Error
	if err != nil {
		return nil, wrapDB(err, "查询支付流水失败")
	}
	return records, nil
}
