package repository

import (
	"context"
	"errors"
	"time"

	"vinow/internal/model"
	"vinow/pkg/apperr"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FinanceRepository struct {
	db *gorm.DB
}

// UpsertDailySummary 按 (merchant_id, summary_date) 幂等写入，
// 冲突时覆盖汇总列，重跑同一天不会产生第二行
func (r *FinanceRepository) UpsertDailySummary(ctx context.Context, summary *model.FinanceDailySummary) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "merchant_id"}, {Name: "summary_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_income", "order_count", "successful_orders", "failed_orders",
				"coupon_deduction", "platform_fee", "refund_amount",
				"settlement_amount", "method_breakdown", "updated_at",
			}),
		}).
		Create(summary).Error
	if err != nil {
		return wrapDB(err, "写入日汇总失败")
	}
	return nil
}

func (r *FinanceRepository) GetDailySummary(ctx context.Context, merchantID string, date time.Time) (*model.FinanceDailySummary, error) {
	start, _ := dayBounds(date)

	var summary model.FinanceDailySummary
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND summary_date = ?", merchantID, start).
		First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("日汇总不存在: merchant=%s date=%s", merchantID, start.Format("2006-01-02"))
		}
		return nil, wrapDB(err, "查询日汇总失败")
	}
	return &summary, nil
}

func (r *FinanceRepository) ListDailySummaries(ctx context.Context, merchantID string, start, end time.Time) ([]*model.FinanceDailySummary, error) {
	var summaries []*model.FinanceDailySummary
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND summary_date >= ? AND summary_date <= ?", merchantID, start, end).
		Order("summary_date").
		Find(&summaries).Error
	if err != nil {
		return nil, wrapDB(err, "查询日汇总列表失败")
	}
	return summaries, nil
}

func (r *FinanceRepository) CreateSettlement(ctx context.Context, record *model.SettlementRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		// 撞上 uk_merchant_period：并发请求已为该周期写过结算
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ConflictErr("结算周期已存在: merchant=%s", record.MerchantID)
		}
		return wrapDB(err, "创建结算记录失败")
	}
	return nil
}

func (r *FinanceRepository) GetSettlementByPeriod(ctx context.Context, merchantID string, start, end time.Time) (*model.SettlementRecord, error) {
	var record model.SettlementRecord
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND start_date = ? AND end_date = ?", merchantID, start, end).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("结算记录不存在: merchant=%s", merchantID)
		}
		return nil, wrapDB(err, "查询结算记录失败")
	}
	return &record, nil
}

func (r *FinanceRepository) UpdateSettlementStatus(ctx context.Context, id, status, failureReason string, settledAt *time.Time) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	}
	if settledAt != nil {
		updates["settled_at"] = settledAt
	}

	result := r.db.WithContext(ctx).
		Model(&model.SettlementRecord{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return wrapDB(result.Error, "更新结算状态失败")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFoundErr("结算记录不存在: %s", id)
	}
	return nil
}

// UpsertReconciliationLog 按 (merchant_id, reconciliation_date) 幂等写入
func (r *FinanceRepository) UpsertReconciliationLog(ctx context.Context, logRow *model.ReconciliationLog) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "merchant_id"}, {Name: "reconciliation_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"expected_total", "actual_total", "difference",
				"status", "mismatched_orders", "notes", "updated_at",
			}),
		}).
		Create(logRow).Error
	if err != nil {
		return wrapDB(err, "写入对账日志失败")
	}
	return nil
}

func (r *FinanceRepository) GetReconciliationLog(ctx context.Context, merchantID string, date time.Time) (*model.ReconciliationLog, error) {
	start, _ := dayBounds(date)

	var logRow model.ReconciliationLog
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND reconciliation_date = ?", merchantID, start).
		First(&logRow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("对账日志不存在: merchant=%s", merchantID)
		}
		return nil, wrapDB(err, "查询对账日志失败")
	}
	return &logRow, nil
}
