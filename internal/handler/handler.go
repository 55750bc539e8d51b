package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"vinow/internal/job"
	"vinow/internal/service"
	"vinow/pkg/apperr"
	"vinow/pkg/response"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	orderService          *service.OrderService
	verifyService         *service.VerifyService
	refundService         *service.RefundService
	financeService        *service.FinanceService
	settlementService     *service.SettlementService
	reconciliationService *service.ReconciliationService
	financeJobs           *job.FinanceJobs
}

func NewHandler(
	orderService *service.OrderService,
	verifyService *service.VerifyService,
	refundService *service.RefundService,
	financeService *service.FinanceService,
	settlementService *service.SettlementService,
	reconciliationService *service.ReconciliationService,
	financeJobs *job.FinanceJobs,
) *Handler {
	return &Handler{
		orderService:          orderService,
		verifyService:         verifyService,
		refundService:         refundService,
		financeService:        financeService,
		settlementService:     settlementService,
		reconciliationService: reconciliationService,
		financeJobs:           financeJobs,
	}
}

// respondError 把服务层错误翻译成业务错误码
func respondError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		response.BusinessError(c, response.CodeOrderNotFound, err.Error())
	case apperr.InvalidTransition:
		response.BusinessError(c, response.CodeInvalidTransition, err.Error())
	case apperr.InvalidState:
		response.BusinessError(c, response.CodeOrderStatusInvalid, err.Error())
	case apperr.Validation:
		response.ParamError(c, err.Error())
	case apperr.ConcurrencyConflict:
		response.BusinessError(c, response.CodeConcurrencyConflict, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 订单相关接口
// ============================================================

// CreateOrder 创建订单
// POST /api/v1/order/create
func (h *Handler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// GetOrder 查询订单详情
// GET /api/v1/order/detail?order_id=xxx
func (h *Handler) GetOrder(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		response.ParamError(c, "order_id 参数错误")
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// ListOrders 商户订单列表
// GET /api/v1/order/list?merchant_id=xxx&page=1&page_size=20
func (h *Handler) ListOrders(c *gin.Context) {
	merchantID := c.Query("merchant_id")
	if merchantID == "" {
		response.ParamError(c, "merchant_id 参数错误")
		return
	}
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 20)

	orders, total, err := h.orderService.ListMerchantOrders(c.Request.Context(), merchantID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"orders": orders,
		"total":  total,
	})
}

// TransitionRequest 状态流转请求
type TransitionRequest struct {
	OrderID      string `json:"order_id" binding:"required"`
	TargetStatus string `json:"target_status" binding:"required"`
	Reason       string `json:"reason"`
}

// TransitionOrder 订单状态流转
// POST /api/v1/order/transition
func (h *Handler) TransitionOrder(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.Transition(c.Request.Context(), req.OrderID, req.TargetStatus, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// PaymentCaptureRequest 支付到账回调请求
type PaymentCaptureRequest struct {
	OrderID       string `json:"order_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// CapturePayment 支付到账回调
// POST /api/v1/order/payment/capture
func (h *Handler) CapturePayment(c *gin.Context) {
	var req PaymentCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.ApplyPaymentCapture(c.Request.Context(), req.OrderID, req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// TodayStats 商户当日统计
// GET /api/v1/order/stats/today?merchant_id=xxx
func (h *Handler) TodayStats(c *gin.Context) {
	merchantID := c.Query("merchant_id")
	if merchantID == "" {
		response.ParamError(c, "merchant_id 参数错误")
		return
	}

	stats, err := h.orderService.GetTodayStats(c.Request.Context(), merchantID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, stats)
}

// ============================================================
// 核销相关接口
// ============================================================

// VerifyCodeRequest 核销码核销请求
type VerifyCodeRequest struct {
	Code      string `json:"code" binding:"required"`
	StaffID   string `json:"staff_id" binding:"required"`
	StaffName string `json:"staff_name" binding:"required"`
}

// VerifyByCode 核销码核销
// POST /api/v1/verify/code
func (h *Handler) VerifyByCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	operator := service.Operator{StaffID: req.StaffID, StaffName: req.StaffName}
	order, err := h.verifyService.VerifyByCode(c.Request.Context(), req.Code, operator)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// VerifyQRRequest 二维码核销请求
type VerifyQRRequest struct {
	Payload   string `json:"payload" binding:"required"`
	StaffID   string `json:"staff_id" binding:"required"`
	StaffName string `json:"staff_name" binding:"required"`
}

// VerifyByQR 二维码核销
// POST /api/v1/verify/qr
func (h *Handler) VerifyByQR(c *gin.Context) {
	var req VerifyQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	operator := service.Operator{StaffID: req.StaffID, StaffName: req.StaffName}
	order, err := h.verifyService.VerifyByQR(c.Request.Context(), req.Payload, operator)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// BatchVerifyRequest 批量核销请求
type BatchVerifyRequest struct {
	OrderIDs  []string `json:"order_ids" binding:"required"`
	StaffID   string   `json:"staff_id" binding:"required"`
	StaffName string   `json:"staff_name" binding:"required"`
}

// BatchVerify 批量核销
// POST /api/v1/verify/batch
func (h *Handler) BatchVerify(c *gin.Context) {
	var req BatchVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	operator := service.Operator{StaffID: req.StaffID, StaffName: req.StaffName}
	result, err := h.verifyService.BatchVerify(c.Request.Context(), req.OrderIDs, operator)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 退款相关接口
// ============================================================

// RefundRequestBody 退款申请请求
type RefundRequestBody struct {
	OrderID     string   `json:"order_id" binding:"required"`
	Reason      string   `json:"reason" binding:"required"`
	Explanation string   `json:"explanation"`
	Evidence    []string `json:"evidence"`
}

// RequestRefund 退款申请
// POST /api/v1/refund/request
func (h *Handler) RequestRefund(c *gin.Context) {
	var req RefundRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	input := &service.RefundRequestInput{
		Reason:      req.Reason,
		Explanation: req.Explanation,
		Evidence:    req.Evidence,
	}
	order, err := h.refundService.RequestRefund(c.Request.Context(), req.OrderID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// RefundDecisionRequest 退款审批请求
type RefundDecisionRequest struct {
	OrderID      string `json:"order_id" binding:"required"`
	ProcessedBy  string `json:"processed_by" binding:"required"`
	RejectReason string `json:"reject_reason"`
}

// ApproveRefund 退款审批通过
// POST /api/v1/refund/approve
func (h *Handler) ApproveRefund(c *gin.Context) {
	var req RefundDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.refundService.ApproveRefund(c.Request.Context(), req.OrderID, req.ProcessedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// RejectRefund 退款审批拒绝
// POST /api/v1/refund/reject
func (h *Handler) RejectRefund(c *gin.Context) {
	var req RefundDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.refundService.RejectRefund(c.Request.Context(), req.OrderID, req.ProcessedBy, req.RejectReason)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// ============================================================
// 财务查询与任务触发接口
// ============================================================

// GetDailySummary 查询财务日汇总
// GET /api/v1/finance/summary?merchant_id=xxx&date=2026-08-25
func (h *Handler) GetDailySummary(c *gin.Context) {
	merchantID := c.Query("merchant_id")
	day, ok := dateQuery(c, "date")
	if merchantID == "" || !ok {
		response.ParamError(c, "merchant_id 或 date 参数错误")
		return
	}

	summary, err := h.financeService.GetDailySummary(c.Request.Context(), merchantID, day)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, summary)
}

// GetReconciliation 查询对账日志
// GET /api/v1/finance/reconciliation?merchant_id=xxx&date=2026-08-25
func (h *Handler) GetReconciliation(c *gin.Context) {
	merchantID := c.Query("merchant_id")
	day, ok := dateQuery(c, "date")
	if merchantID == "" || !ok {
		response.ParamError(c, "merchant_id 或 date 参数错误")
		return
	}

	logRow, err := h.reconciliationService.GetReconciliationLog(c.Request.Context(), merchantID, day)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, logRow)
}

// TriggerDailySummary 手工触发日汇总跑批（运维用）
// POST /api/v1/jobs/daily-summary/trigger
func (h *Handler) TriggerDailySummary(c *gin.Context) {
	if err := h.financeJobs.RunDailySummary(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "日汇总任务已执行"})
}

// TriggerSettlement 手工触发周结算跑批（运维用）
// POST /api/v1/jobs/settlement/trigger
func (h *Handler) TriggerSettlement(c *gin.Context) {
	if err := h.financeJobs.RunWeeklySettlement(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "周结算任务已执行"})
}

// TriggerReconciliation 手工触发日对账跑批（运维用）
// POST /api/v1/jobs/reconciliation/trigger
func (h *Handler) TriggerReconciliation(c *gin.Context) {
	if err := h.financeJobs.RunDailyReconciliation(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "日对账任务已执行"})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func dateQuery(c *gin.Context, key string) (time.Time, bool) {
	day, err := time.ParseInLocation("2006-01-02", c.Query(key), time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
