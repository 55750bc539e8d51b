package repository

import (
	"context"
	"errors"
	"time"

	"vinow/internal/model"
	"vinow/pkg/apperr"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func (r *OrderRepository) Create(ctx context.Context, order *model.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return wrapDB(err, "创建订单失败")
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("订单不存在: %s", id)
		}
		return nil, wrapDB(err, "查询订单失败")
	}
	return &order, nil
}

func (r *OrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("order_number = ?", orderNumber).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("订单不存在: %s", orderNumber)
		}
		return nil, wrapDB(err, "查询订单失败")
	}
	return &order, nil
}

func (r *OrderRepository) GetByVerificationCode(ctx context.Context, code string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("verification_code = ?", code).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("核销码无效")
		}
		return nil, wrapDB(err, "查询订单失败")
	}
	return &order, nil
}

// UpdateStatus 条件更新：只有当前状态仍为 fromStatus 时才能命中行，
// RowsAffected 为 0 说明并发竞争中输给了另一次转换
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string, extra map[string]interface{}) error {
	updates := map[string]interface{}{
		"status": toStatus,
	}
	for k, v := range model.StatusTimestamps(toStatus, time.Now()) {
		updates[k] = v
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return wrapDB(result.Error, "更新订单状态失败")
	}

	if result.RowsAffected == 0 {
		return apperr.ConflictErr("订单 %s 状态已被并发修改", id)
	}

	return nil
}

// UpdatePayment 与 UpdateStatus 同样的条件更新：支付状态作为 WHERE 条件，
// 两个并发回调只有一个能命中行，另一个收到冲突而不会重复记账
func (r *OrderRepository) UpdatePayment(ctx context.Context, id, fromPaymentStatus string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", id, fromPaymentStatus).
		Updates(updates)

	if result.Error != nil {
		return wrapDB(result.Error, "更新订单支付信息失败")
	}
	if result.RowsAffected == 0 {
		return apperr.ConflictErr("订单 %s 支付状态已被并发修改", id)
	}
	return nil
}

func (r *OrderRepository) ListByMerchant(ctx context.Context, merchantID string, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{}).Where("merchant_id = ?", merchantID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapDB(err, "统计订单数失败")
	}

	err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	if err != nil {
		return nil, 0, wrapDB(err, "查询订单列表失败")
	}

	return orders, total, nil
}

func (r *OrderRepository) ListCreatedOnDay(ctx context.Context, merchantID string, day time.Time) ([]*model.Order, error) {
	start, end := dayBounds(day)

	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND created_at >= ? AND created_at < ?", merchantID, start, end).
		Find(&orders).Error
	if err != nil {
		return nil, wrapDB(err, "查询当日订单失败")
	}
	return orders, nil
}

func (r *OrderRepository) ListVerifiedOnDay(ctx context.Context, merchantID string, day time.Time) ([]*model.Order, error) {
	start, end := dayBounds(day)

	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND verified_at >= ? AND verified_at < ?", merchantID, start, end).
		Find(&orders).Error
	if err != nil {
		return nil, wrapDB(err, "查询当日核销订单失败")
	}
	return orders, nil
}
