package repository

import (
	"context"

	"vinow/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func (r *OutboxRepository) Create(ctx context.Context, msg *model.OutboxMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return wrapDB(err, "写入发件箱失败")
	}
	return nil
}

func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, wrapDB(err, "查询待发送消息失败")
	}
	return messages, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", model.OutboxStatusSent).Error
	if err != nil {
		return wrapDB(err, "更新消息状态失败")
	}
	return nil
}

func (r *OutboxRepository) IncrementRetry(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
	if err != nil {
		return wrapDB(err, "增加重试次数失败")
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", model.OutboxStatusFailed).Error
	if err != nil {
		return wrapDB(err, "标记消息失败状态失败")
	}
	return nil
}
