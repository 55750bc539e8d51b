package repository

import (
	"context"
	"errors"
	"time"

	"vinow/internal/model"
	"vinow/pkg/apperr"

	"gorm.io/gorm"
)

type VerificationRepository struct {
	db *gorm.DB
}

func (r *VerificationRepository) Create(ctx context.Context, record *model.VerificationRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return wrapDB(err, "创建核销记录失败")
	}
	return nil
}

func (r *VerificationRepository) GetByOrderID(ctx context.Context, orderID string) (*model.VerificationRecord, error) {
	var record model.VerificationRecord
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("核销记录不存在: order=%s", orderID)
		}
		return nil, wrapDB(err, "查询核销记录失败")
	}
	return &record, nil
}

func (r *VerificationRepository) ListByMerchant(ctx context.Context, merchantID string, start, end time.Time) ([]*model.VerificationRecord, error) {
	var records []*model.VerificationRecord
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND created_at >= ? AND created_at < ?", merchantID, start, end).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, wrapDB(err, "查询核销记录失败")
	}
	return records, nil
}
