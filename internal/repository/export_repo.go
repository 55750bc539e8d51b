package repository

import (
	"context"
	"time"

	"vinow/internal/model"

	"gorm.io/gorm"
)

type ExportRepository struct {
	db *gorm.DB
}

func (r *ExportRepository) Create(ctx context.Context, export *model.ReportExport) error {
	if err := r.db.WithContext(ctx).Create(export).Error; err != nil {
		return wrapDB(err, "创建报表导出记录失败")
	}
	return nil
}

func (r *ExportRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*model.ReportExport, error) {
	var exports []*model.ReportExport
	err := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Limit(limit).
		Find(&exports).Error
	if err != nil {
		return nil, wrapDB(err, "查询过期报表失败")
	}
	return exports, nil
}

func (r *ExportRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&model.ReportExport{}, "id = ?", id).Error; err != nil {
		return wrapDB(err, "删除报表记录失败")
	}
	return nil
}
