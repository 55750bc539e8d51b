package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"

	"vinow/internal/model"
	"vinow/internal/repository"
	"vinow/pkg/apperr"
)

// ============================================================================
// 日对账服务
// ============================================================================
//
// 订单侧与支付流水侧的双向核对：
//   - 应收 = 当日核销订单的实付金额之和（订单侧）
//   - 实收 = 当日到账支付流水的金额之和（流水侧）
//
// 两侧合计不等即 mismatched，逐单找出缺流水或金额不符的订单号
// 记入日志。对账日志按 (merchant_id, reconciliation_date) 幂等覆盖。

type ReconciliationService struct {
	store repository.DataStore
}

func NewReconciliationService(store repository.DataStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// RunReconciliation 对指定商户指定日期执行对账
func (s *ReconciliationService) RunReconciliation(ctx context.Context, merchantID string, day time.Time) (*model.ReconciliationLog, error) {
	orders, err := s.store.Orders().ListVerifiedOnDay(ctx, merchantID, day)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.Payments().ListPaidOnDay(ctx, merchantID, day)
	if err != nil {
		return nil, err
	}

	// 流水按订单号聚合：同一订单可能有多笔到账（部分支付渠道分笔）
	paidByOrder := make(map[string]int64, len(payments))
	var actualTotal int64
	for _, payment := range payments {
		paidByOrder[payment.OrderNumber] += payment.Amount
		actualTotal += payment.Amount
	}

	var expectedTotal int64
	var mismatched []string
	for _, order := range orders {
		expectedTotal += order.FinalAmount
		paid, ok := paidByOrder[order.OrderNumber]
		if !ok || paid != order.FinalAmount {
			mismatched = append(mismatched, order.OrderNumber)
		}
	}

	status := model.ReconciliationStatusMatched
	notes := ""
	if expectedTotal != actualTotal || len(mismatched) > 0 {
		status = model.ReconciliationStatusMismatched
		notes = fmt.Sprintf("应收=%d 实收=%d 不匹配订单数=%d", expectedTotal, actualTotal, len(mismatched))
	}

	var mismatchedJSON datatypes.JSON
	if len(mismatched) > 0 {
		raw, err := json.Marshal(mismatched)
		if err != nil {
			return nil, apperr.Wrap(err, "序列化不匹配订单列表失败")
		}
		mismatchedJSON = datatypes.JSON(raw)
	}

	logRow := &model.ReconciliationLog{
		MerchantID:         merchantID,
		ReconciliationDate: dateOnly(day),
		ExpectedTotal:      expectedTotal,
		ActualTotal:        actualTotal,
		Difference:         expectedTotal - actualTotal,
		Status:             status,
		MismatchedOrders:   mismatchedJSON,
		Notes:              notes,
	}
	if err := s.store.Finance().UpsertReconciliationLog(ctx, logRow); err != nil {
		return nil, err
	}

	if status == model.ReconciliationStatusMismatched {
		log.Printf("[ReconciliationService] 对账不平: 商户=%s 日期=%s 差额=%d 不匹配=%d 单",
			merchantID, dateOnly(day).Format("2006-01-02"), logRow.Difference, len(mismatched))
	} else {
		log.Printf("[ReconciliationService] 对账平: 商户=%s 日期=%s 金额=%d",
			merchantID, dateOnly(day).Format("2006-01-02"), actualTotal)
	}
	return logRow, nil
}

func (s *ReconciliationService) GetReconciliationLog(ctx context.Context, merchantID string, day time.Time) (*model.ReconciliationLog, error) {
	return s.store.Finance().GetReconciliationLog(ctx, merchantID, day)
}
