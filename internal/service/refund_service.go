package service

import (
	"context"
	"encoding/json"
	"log"

	"gorm.io/datatypes"

	"vinow/internal/model"
	"vinow/internal/repository"
	"vinow/pkg/apperr"
)

// ============================================================================
// 退款服务
// ============================================================================
//
// 三步工单流：申请（进入 REFUNDING）-> 审批通过（REFUNDED 终态）
// 或审批拒绝（恢复到申请前的状态）。
//
// 【恢复语义】
// 进入 REFUNDING 时把前置状态原样记到 PreRefundStatus，拒绝时读它恢复。
// 不按"有没有核销时间"猜测前置状态——核销过再退款被拒的订单
// 必须回到 VERIFIED，而不是凭时间戳推断。

type RefundService struct {
	store repository.DataStore
	topic string
}

func NewRefundService(store repository.DataStore, topic string) *RefundService {
	return &RefundService{store: store, topic: topic}
}

type RefundRequestInput struct {
	Reason      string   `json:"reason" binding:"required"`
	Explanation string   `json:"explanation"`
	Evidence    []string `json:"evidence"` // 凭证图片 URL 列表
}

// RequestRefund 用户发起退款申请
//
// 仅允许从 PENDING（未核销）或 VERIFIED（已核销未完成）进入退款流程，
// 对应状态机中通往 REFUNDING 的两条边。
func (s *RefundService) RequestRefund(ctx context.Context, orderID string, input *RefundRequestInput) (*model.Order, error) {
	if input.Reason == "" {
		return nil, apperr.ValidationErr("退款原因不能为空")
	}

	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransitionTo(order.Status, model.OrderStatusRefunding) {
		return nil, apperr.InvalidTransitionErr("订单 %s 当前状态 %s 不允许申请退款", order.OrderNumber, order.Status)
	}

	extra := map[string]interface{}{
		"pre_refund_status":  order.Status,
		"refund_reason":      input.Reason,
		"refund_explanation": input.Explanation,
	}
	if len(input.Evidence) > 0 {
		evidence, err := json.Marshal(input.Evidence)
		if err != nil {
			return nil, apperr.ValidationErr("退款凭证格式错误")
		}
		extra["refund_evidence"] = datatypes.JSON(evidence)
	}

	if err := s.store.Orders().UpdateStatus(ctx, orderID, order.Status, model.OrderStatusRefunding, extra); err != nil {
		return nil, err
	}

	log.Printf("[RefundService] 退款申请受理: %s 前置状态=%s", order.OrderNumber, order.Status)
	return s.store.Orders().GetByID(ctx, orderID)
}

// ApproveRefund 审批通过，订单进入 REFUNDED 终态
func (s *RefundService) ApproveRefund(ctx context.Context, orderID, processedBy string) (*model.Order, error) {
	if processedBy == "" {
		return nil, apperr.ValidationErr("审批人不能为空")
	}

	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusRefunding {
		return nil, apperr.InvalidStateErr("订单 %s 不在退款流程中", order.OrderNumber)
	}

	extra := map[string]interface{}{
		"refund_processed_by": processedBy,
	}
	err = s.store.Transact(ctx, func(tx repository.DataStore) error {
		if err := tx.Orders().UpdateStatus(ctx, orderID, model.OrderStatusRefunding, model.OrderStatusRefunded, extra); err != nil {
			return err
		}
		order.Status = model.OrderStatusRefunded
		return enqueueOrderEvent(ctx, tx, s.topic, model.EventOrderRefunded, order)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[RefundService] 退款审批通过: %s 审批人=%s 金额=%d", order.OrderNumber, processedBy, order.FinalAmount)
	return s.store.Orders().GetByID(ctx, orderID)
}

// RejectRefund 审批拒绝，订单恢复到申请退款前的状态
func (s *RefundService) RejectRefund(ctx context.Context, orderID, processedBy, rejectReason string) (*model.Order, error) {
	if processedBy == "" {
		return nil, apperr.ValidationErr("审批人不能为空")
	}
	if rejectReason == "" {
		return nil, apperr.ValidationErr("拒绝原因不能为空")
	}

	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusRefunding {
		return nil, apperr.InvalidStateErr("订单 %s 不在退款流程中", order.OrderNumber)
	}

	restoreStatus := order.PreRefundStatus
	if restoreStatus == "" {
		// 历史数据兜底：没记前置状态时按未核销处理
		restoreStatus = model.OrderStatusPending
	}

	extra := map[string]interface{}{
		"refund_processed_by":  processedBy,
		"refund_reject_reason": rejectReason,
		"pre_refund_status":    "",
	}
	if restoreStatus == model.OrderStatusVerified {
		// 恢复边不重打核销时间，保留首次核销的时刻
		extra["verified_at"] = order.VerifiedAt
	}
	if err := s.store.Orders().UpdateStatus(ctx, orderID, model.OrderStatusRefunding, restoreStatus, extra); err != nil {
		return nil, err
	}

	log.Printf("[RefundService] 退款审批拒绝: %s 恢复状态=%s", order.OrderNumber, restoreStatus)
	return s.store.Orders().GetByID(ctx, orderID)
}
