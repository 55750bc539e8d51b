package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"vinow/internal/model"
	"vinow/internal/repository"
	"vinow/pkg/apperr"
	"vinow/pkg/idgen"
)

// ============================================================================
// 周结算服务
// ============================================================================
//
// 累加周期内的日汇总生成结算单。按 (merchant_id, start_date, end_date)
// 判重：同一周期已有记录时原样返回旧记录，重跑不会二次打款。
// 周期内毛收入为零则不生成记录——没有可结算的钱就没有结算单。

type SettlementService struct {
	store repository.DataStore
	ids   *idgen.Generator
}

func NewSettlementService(store repository.DataStore, ids *idgen.Generator) *SettlementService {
	return &SettlementService{store: store, ids: ids}
}

// ProcessSettlement 生成并执行指定商户指定周期的结算
//
// 返回 (nil, nil) 表示周期内无可结算金额，属正常情况而非错误。
func (s *SettlementService) ProcessSettlement(ctx context.Context, merchantID string, startDate, endDate time.Time) (*model.SettlementRecord, error) {
	startDate = dateOnly(startDate)
	endDate = dateOnly(endDate)
	if endDate.Before(startDate) {
		return nil, apperr.ValidationErr("结算周期非法: %s ~ %s", startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	}

	// 幂等检查：同一周期已结算过，直接返回旧记录
	existing, err := s.store.Finance().GetSettlementByPeriod(ctx, merchantID, startDate, endDate)
	if err == nil {
		log.Printf("[SettlementService] 周期已结算，跳过: 商户=%s 结算单=%s", merchantID, existing.SettlementNumber)
		return existing, nil
	}
	if !apperr.IsKind(err, apperr.NotFound) {
		return nil, err
	}

	merchant, err := s.store.Merchants().GetByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	summaries, err := s.store.Finance().ListDailySummaries(ctx, merchantID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	var gross, fee, refund int64
	for _, summary := range summaries {
		gross += summary.TotalIncome
		fee += summary.PlatformFee
		refund += summary.RefundAmount
	}
	if gross == 0 {
		log.Printf("[SettlementService] 周期内无收入，不生成结算单: 商户=%s", merchantID)
		return nil, nil
	}

	record := &model.SettlementRecord{
		ID:               uuid.NewString(),
		MerchantID:       merchantID,
		SettlementNumber: s.ids.SettlementNumber(),
		SettlementDate:   dateOnly(time.Now()),
		StartDate:        startDate,
		EndDate:          endDate,
		GrossAmount:      gross,
		PlatformFee:      fee,
		RefundAmount:     refund,
		NetAmount:        gross - fee - refund,
		BankAccount:      merchant.BankAccount,
		BankName:         merchant.BankName,
		Status:           model.SettlementStatusPending,
	}
	if err := s.store.Finance().CreateSettlement(ctx, record); err != nil {
		// 唯一索引兜底：手动触发与定时任务赛跑时输家直接复用赢家的记录
		if apperr.IsKind(err, apperr.ConcurrencyConflict) {
			winner, gerr := s.store.Finance().GetSettlementByPeriod(ctx, merchantID, startDate, endDate)
			if gerr != nil {
				return nil, gerr
			}
			log.Printf("[SettlementService] 周期已被并发结算，复用: 商户=%s 结算单=%s", merchantID, winner.SettlementNumber)
			return winner, nil
		}
		return nil, err
	}

	// 打款流程：pending -> processing -> completed。
	// 银行渠道尚未接入，processing 之后直接记成功。
	// TODO: 接入银行打款渠道后，completed 改由渠道回调驱动
	if err := s.store.Finance().UpdateSettlementStatus(ctx, record.ID, model.SettlementStatusProcessing, "", nil); err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.store.Finance().UpdateSettlementStatus(ctx, record.ID, model.SettlementStatusCompleted, "", &now); err != nil {
		return nil, err
	}
	record.Status = model.SettlementStatusCompleted
	record.SettledAt = &now

	log.Printf("[SettlementService] 结算完成: 商户=%s 结算单=%s 净额=%d", merchantID, record.SettlementNumber, record.NetAmount)
	return record, nil
}

// dateOnly 截断到自然日零点
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
