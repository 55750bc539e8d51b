package service

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"

	"vinow/internal/model"
	"vinow/internal/repository"
	"vinow/pkg/apperr"
)

// ============================================================================
// 核销服务
// ============================================================================
//
// 到店核销的三种入口：核销码、二维码、批量。三种入口收敛到同一条
// redeem 路径：可核销状态检查 -> 条件更新到 VERIFIED -> 写核销记录。
//
// 【防重复核销】
// 不加分布式锁。条件更新（WHERE id AND status）本身就是互斥点：
// 两个并发核销同一订单，只有一个能把状态改走，输掉的一方重读订单，
// 发现已不可核销，报"订单已核销或状态不允许"。

type VerifyService struct {
	store repository.DataStore
	topic string
}

func NewVerifyService(store repository.DataStore, topic string) *VerifyService {
	return &VerifyService{store: store, topic: topic}
}

// Operator 核销操作员（商户店员）
type Operator struct {
	StaffID   string `json:"staff_id" binding:"required"`
	StaffName string `json:"staff_name" binding:"required"`
}

// VerifyByCode 按核销码核销
func (s *VerifyService) VerifyByCode(ctx context.Context, code string, operator Operator) (*model.Order, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.ValidationErr("核销码不能为空")
	}

	order, err := s.store.Orders().GetByVerificationCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.redeem(ctx, order, operator, model.VerificationMethodCode)
}

// VerifyByQR 按二维码核销
//
// 二维码载荷两种形态：带 order_ 前缀的订单ID，或裸核销码。
// 解不出来的载荷一律按参数错误处理，不向调用方泄露存在性信息。
func (s *VerifyService) VerifyByQR(ctx context.Context, payload string, operator Operator) (*model.Order, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, apperr.ValidationErr("二维码内容不能为空")
	}

	var (
		order *model.Order
		err   error
	)
	if orderID, ok := strings.CutPrefix(payload, "order_"); ok {
		if orderID == "" {
			return nil, apperr.ValidationErr("二维码内容无法识别")
		}
		order, err = s.store.Orders().GetByID(ctx, orderID)
	} else {
		order, err = s.store.Orders().GetByVerificationCode(ctx, payload)
	}
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.ValidationErr("二维码内容无法识别")
		}
		return nil, err
	}
	return s.redeem(ctx, order, operator, model.VerificationMethodQR)
}

// BatchFailure 批量核销中单笔失败的订单和原因
type BatchFailure struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// BatchResult 批量核销结果，每个输入恰好落在 succeeded 或 failed 一侧，
// 重复传入的订单号按出现次数各算一次结果
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// BatchVerify 批量核销，逐单独立处理，单个失败不影响其余
func (s *VerifyService) BatchVerify(ctx context.Context, orderIDs []string, operator Operator) (*BatchResult, error) {
	if len(orderIDs) == 0 {
		return nil, apperr.ValidationErr("订单列表不能为空")
	}

	result := &BatchResult{
		Succeeded: make([]string, 0, len(orderIDs)),
		Failed:    make([]BatchFailure, 0),
	}
	for _, orderID := range orderIDs {
		order, err := s.store.Orders().GetByID(ctx, orderID)
		if err == nil {
			_, err = s.redeem(ctx, order, operator, model.VerificationMethodBatch)
		}
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{OrderID: orderID, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, orderID)
	}

	log.Printf("[VerifyService] 批量核销完成: 成功=%d 失败=%d", len(result.Succeeded), len(result.Failed))
	return result, nil
}

// GetVerificationRecord 查询订单的核销记录
func (s *VerifyService) GetVerificationRecord(ctx context.Context, orderID string) (*model.VerificationRecord, error) {
	return s.store.Verifications().GetByOrderID(ctx, orderID)
}

// redeem 核销主路径，三种入口共用
func (s *VerifyService) redeem(ctx context.Context, order *model.Order, operator Operator, method string) (*model.Order, error) {
	if operator.StaffID == "" {
		return nil, apperr.ValidationErr("核销人不能为空")
	}
	if !model.IsRedeemable(order.Status) {
		return nil, apperr.InvalidStateErr("订单 %s 已核销或状态不允许核销", order.OrderNumber)
	}

	fromStatus := order.Status
	err := s.store.Transact(ctx, func(tx repository.DataStore) error {
		if err := tx.Orders().UpdateStatus(ctx, order.ID, fromStatus, model.OrderStatusVerified, nil); err != nil {
			return err
		}

		record := &model.VerificationRecord{
			ID:                 uuid.NewString(),
			OrderID:            order.ID,
			MerchantID:         order.MerchantID,
			StoreID:            order.StoreID,
			StaffID:            operator.StaffID,
			StaffName:          operator.StaffName,
			VerificationMethod: method,
		}
		if err := tx.Verifications().Create(ctx, record); err != nil {
			return err
		}

		order.Status = model.OrderStatusVerified
		return enqueueOrderEvent(ctx, tx, s.topic, model.EventOrderVerified, order)
	})
	if err != nil {
		// 条件更新输给了并发方：重读订单把冲突翻译成业务语义。
		// 状态已离开可核销集合说明被别人核销/取消了，报状态错误；
		// 仍可核销则是真正的短暂冲突，让调用方重试。
		if apperr.IsKind(err, apperr.ConcurrencyConflict) {
			current, rerr := s.store.Orders().GetByID(ctx, order.ID)
			if rerr == nil && !model.IsRedeemable(current.Status) {
				return nil, apperr.InvalidStateErr("订单 %s 已核销或状态不允许核销", order.OrderNumber)
			}
		}
		return nil, err
	}

	log.Printf("[VerifyService] 核销成功: %s 方式=%s 店员=%s", order.OrderNumber, method, operator.StaffID)
	return s.store.Orders().GetByID(ctx, order.ID)
}
