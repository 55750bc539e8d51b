package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"vinow/internal/model"
	"vinow/internal/repository"
	"vinow/pkg/apperr"
)

// ============================================================================
// 财务日汇总服务
// ============================================================================
//
// 以"订单创建日"为口径汇总单商户单日的经营数据，写入日汇总表。
// (merchant_id, summary_date) 唯一键 + 覆盖式 upsert，任务重跑天然幂等。
//
// 【口径】
//   - 收入    = 当日创建且已核销/已完成订单的实付金额之和
//   - 退款    = 当日创建且已退款订单的实付金额之和
//   - 券抵扣  = 当日创建订单的折扣金额之和
//   - 平台费  = 收入 × 商户佣金比例，十进制计算后四舍五入到整数
//   - 可结算  = 收入 - 平台费 - 退款
//
// 零订单的日子同样写入一行全零汇总，报表侧据此区分
// "当天没生意"与"汇总任务没跑"。

type FinanceService struct {
	store       repository.DataStore
	defaultRate string // 商户未配置佣金比例时的兜底值
}

func NewFinanceService(store repository.DataStore, defaultRate string) *FinanceService {
	return &FinanceService{store: store, defaultRate: defaultRate}
}

// GenerateDailySummary 生成指定商户指定日期的财务日汇总
func (s *FinanceService) GenerateDailySummary(ctx context.Context, merchantID string, day time.Time) (*model.FinanceDailySummary, error) {
	merchant, err := s.store.Merchants().GetByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	orders, err := s.store.Orders().ListCreatedOnDay(ctx, merchantID, day)
	if err != nil {
		return nil, err
	}

	var (
		totalIncome     int64
		refundAmount    int64
		couponDeduction int64
		successful      int
		failed          int
	)
	methodBreakdown := make(map[string]int64)

	for _, order := range orders {
		couponDeduction += order.DiscountAmount

		switch order.Status {
		case model.OrderStatusVerified, model.OrderStatusCompleted:
			totalIncome += order.FinalAmount
			successful++
			method := order.PaymentMethod
			if method == "" {
				method = "unknown"
			}
			methodBreakdown[method] += order.FinalAmount
		case model.OrderStatusRefunded:
			refundAmount += order.FinalAmount
			failed++
		case model.OrderStatusCancelled:
			failed++
		}
	}

	platformFee, err := s.platformFee(merchant, totalIncome)
	if err != nil {
		return nil, err
	}

	breakdown, err := json.Marshal(methodBreakdown)
	if err != nil {
		return nil, apperr.Wrap(err, "序列化支付方式拆分失败")
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	summary := &model.FinanceDailySummary{
		MerchantID:       merchantID,
		SummaryDate:      dayStart,
		TotalIncome:      totalIncome,
		OrderCount:       len(orders),
		SuccessfulOrders: successful,
		FailedOrders:     failed,
		CouponDeduction:  couponDeduction,
		PlatformFee:      platformFee,
		RefundAmount:     refundAmount,
		SettlementAmount: totalIncome - platformFee - refundAmount,
		MethodBreakdown:  datatypes.JSON(breakdown),
	}

	if err := s.store.Finance().UpsertDailySummary(ctx, summary); err != nil {
		return nil, err
	}

	log.Printf("[FinanceService] 日汇总完成: 商户=%s 日期=%s 收入=%d 可结算=%d",
		merchantID, dayStart.Format("2006-01-02"), totalIncome, summary.SettlementAmount)
	return summary, nil
}

func (s *FinanceService) GetDailySummary(ctx context.Context, merchantID string, day time.Time) (*model.FinanceDailySummary, error) {
	return s.store.Finance().GetDailySummary(ctx, merchantID, day)
}

// platformFee 按商户佣金比例计算平台服务费
//
// 比例是十进制字符串，全程 decimal 运算，最后四舍五入取整，
// 避免 float64 在大金额上的精度漂移。
func (s *FinanceService) platformFee(merchant *model.Merchant, income int64) (int64, error) {
	rateStr := merchant.CommissionRate
	if rateStr == "" {
		rateStr = s.defaultRate
	}
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return 0, apperr.ValidationErr("商户 %s 佣金比例非法: %s", merchant.ID, rateStr)
	}
	fee := decimal.NewFromInt(income).Mul(rate).Round(0)
	return fee.IntPart(), nil
}
