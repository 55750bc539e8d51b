package repository

import (
	"context"
	"errors"

	"vinow/internal/model"
	"vinow/pkg/apperr"

	"gorm.io/gorm"
)

type MerchantRepository struct {
	db *gorm.DB
}

func (r *MerchantRepository) Create(ctx context.Context, merchant *model.Merchant) error {
	if err := r.db.WithContext(ctx).Create(merchant).Error; err != nil {
		return wrapDB(err, "创建商户失败")
	}
	return nil
}

func (r *MerchantRepository) GetByID(ctx context.Context, id string) (*model.Merchant, error) {
	var merchant model.Merchant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&merchant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("商户不存在: %s", id)
		}
		return nil, wrapDB(err, "查询商户失败")
	}
	return &merchant, nil
}

func (r *MerchantRepository) ListActive(ctx context.Context) ([]*model.Merchant, error) {
	var merchants []*model.Merchant
	err := r.db.WithContext(ctx).
		Where("status = ?", model.MerchantStatusActive).
		Find(&merchants).Error
	if err != nil {
		return nil, wrapDB(err, "查询活跃商户失败")
	}
	return merchants, nil
}
