// Package memory 提供 repository.DataStore 的进程内存实现，
// 供测试与本地开发使用，通过 storage.driver=memory 在组装期选择。
//
// 与 MySQL 实现保持同一并发语义：UpdateStatus 是条件更新，
// 状态不匹配时返回 ConcurrencyConflict。
//
// 事务语义是近似的：Transact 全程持有事务锁保证互相串行，
// 但不支持回滚——调用方约定先做条件更新、后做纯插入，
// 条件更新失败时事务内尚未发生任何写入。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"vinow/internal/model"
	"vinow/internal/repository"
	"vinow/pkg/apperr"
)

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	orders        map[string]*model.Order              // by id
	byOrderNumber map[string]string                    // order_number -> id
	byCode        map[string]string                    // verification_code -> id
	verifications map[string]*model.VerificationRecord // by order_id
	payments      []*model.PaymentRecord
	merchants     map[string]*model.Merchant
	summaries     map[string]*model.FinanceDailySummary // merchant|date
	settlements   map[string]*model.SettlementRecord    // by id
	recons        map[string]*model.ReconciliationLog   // merchant|date
	exports       map[string]*model.ReportExport
	outbox        []*model.OutboxMessage
	nextOutboxID  int64
	nextSummaryID int64
	nextReconID   int64
}

var _ repository.DataStore = (*Store)(nil)

func New() *Store {
	return &Store{
		orders:        make(map[string]*model.Order),
		byOrderNumber: make(map[string]string),
		byCode:        make(map[string]string),
		verifications: make(map[string]*model.VerificationRecord),
		merchants:     make(map[string]*model.Merchant),
		summaries:     make(map[string]*model.FinanceDailySummary),
		settlements:   make(map[string]*model.SettlementRecord),
		recons:        make(map[string]*model.ReconciliationLog),
		exports:       make(map[string]*model.ReportExport),
	}
}

func (s *Store) Orders() repository.OrderStore               { return (*orderStore)(s) }
func (s *Store) Verifications() repository.VerificationStore { return (*verificationStore)(s) }
func (s *Store) Payments() repository.PaymentStore           { return (*paymentStore)(s) }
func (s *Store) Merchants() repository.MerchantStore         { return (*merchantStore)(s) }
func (s *Store) Finance() repository.FinanceStore            { return (*financeStore)(s) }
func (s *Store) Exports() repository.ExportStore             { return (*exportStore)(s) }
func (s *Store) Outbox() repository.OutboxStore              { return (*outboxStore)(s) }

func (s *Store) Transact(ctx context.Context, fn func(repository.DataStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

func dayKey(merchantID string, day time.Time) string {
	return merchantID + "|" + day.Format("2006-01-02")
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.Add(24 * time.Hour)
}

func inDay(t time.Time, day time.Time) bool {
	start, end := dayBounds(day)
	return !t.Before(start) && t.Before(end)
}

func cloneOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Items = append([]model.OrderItem(nil), o.Items...)
	return &cp
}

// ----------------------------------------------------------------------------
// OrderStore
// ----------------------------------------------------------------------------

type orderStore Store

func (s *orderStore) Create(ctx context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return apperr.ConflictErr("订单ID重复: %s", order.ID)
	}
	if _, exists := s.byCode[order.VerificationCode]; exists {
		return apperr.ConflictErr("核销码重复: %s", order.VerificationCode)
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	s.orders[order.ID] = cloneOrder(order)
	s.byOrderNumber[order.OrderNumber] = order.ID
	s.byCode[order.VerificationCode] = order.ID
	return nil
}

func (s *orderStore) GetByID(ctx context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFoundErr("订单不存在: %s", id)
	}
	return cloneOrder(order), nil
}

func (s *orderStore) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byOrderNumber[orderNumber]
	if !ok {
		return nil, apperr.NotFoundErr("订单不存在: %s", orderNumber)
	}
	return cloneOrder(s.orders[id]), nil
}

func (s *orderStore) GetByVerificationCode(ctx context.Context, code string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, apperr.NotFoundErr("核销码无效")
	}
	return cloneOrder(s.orders[id]), nil
}

func (s *orderStore) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string, extra map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok || order.Status != fromStatus {
		return apperr.ConflictErr("订单 %s 状态已被并发修改", id)
	}

	now := time.Now()
	order.Status = toStatus
	order.UpdatedAt = now
	applyColumns(order, model.StatusTimestamps(toStatus, now))
	applyColumns(order, extra)
	return nil
}

func (s *orderStore) UpdatePayment(ctx context.Context, id, fromPaymentStatus string, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok || order.PaymentStatus != fromPaymentStatus {
		return apperr.ConflictErr("订单 %s 支付状态已被并发修改", id)
	}
	order.UpdatedAt = time.Now()
	applyColumns(order, updates)
	return nil
}

func (s *orderStore) ListByMerchant(ctx context.Context, merchantID string, page, pageSize int) ([]*model.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*model.Order
	for _, o := range s.orders {
		if o.MerchantID == merchantID {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *orderStore) ListCreatedOnDay(ctx context.Context, merchantID string, day time.Time) ([]*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.Order
	for _, o := range s.orders {
		if o.MerchantID == merchantID && inDay(o.CreatedAt, day) {
			result = append(result, cloneOrder(o))
		}
	}
	return result, nil
}

func (s *orderStore) ListVerifiedOnDay(ctx context.Context, merchantID string, day time.Time) ([]*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.Order
	for _, o := range s.orders {
		if o.MerchantID == merchantID && o.VerifiedAt != nil && inDay(*o.VerifiedAt, day) {
			result = append(result, cloneOrder(o))
		}
	}
	return result, nil
}

// applyColumns 将列名到值的更新映射应用到内存订单上，
// 与 GORM 实现接受的列名保持一一对应
func applyColumns(order *model.Order, updates map[string]interface{}) {
	for col, val := range updates {
		switch col {
		case "verified_at":
			order.VerifiedAt = val.(*time.Time)
		case "completed_at":
			order.CompletedAt = val.(*time.Time)
		case "cancelled_at":
			order.CancelledAt = val.(*time.Time)
		case "refunded_at":
			order.RefundedAt = val.(*time.Time)
		case "paid_at":
			order.PaidAt = val.(*time.Time)
		case "cancel_reason":
			order.CancelReason = val.(string)
		case "pre_refund_status":
			order.PreRefundStatus = val.(string)
		case "refund_reason":
			order.RefundReason = val.(string)
		case "refund_explanation":
			order.RefundExplanation = val.(string)
		case "refund_evidence":
			order.RefundEvidence = val.(datatypes.JSON)
		case "refund_processed_by":
			order.RefundProcessedBy = val.(string)
		case "refund_reject_reason":
			order.RefundRejectReason = val.(string)
		case "payment_status":
			order.PaymentStatus = val.(string)
		case "payment_number":
			order.PaymentNumber = val.(string)
		case "payment_method":
			order.PaymentMethod = val.(string)
		}
	}
}

// ----------------------------------------------------------------------------
// VerificationStore
// ----------------------------------------------------------------------------

type verificationStore Store

func (s *verificationStore) Create(ctx context.Context, record *model.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.verifications[record.OrderID]; exists {
		return apperr.ConflictErr("订单 %s 已有核销记录", record.OrderID)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	cp := *record
	s.verifications[record.OrderID] = &cp
	return nil
}

func (s *verificationStore) GetByOrderID(ctx context.Context, orderID string) (*model.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.verifications[orderID]
	if !ok {
		return nil, apperr.NotFoundErr("核销记录不存在: order=%s", orderID)
	}
	cp := *record
	return &cp, nil
}

func (s *verificationStore) ListByMerchant(ctx context.Context, merchantID string, start, end time.Time) ([]*model.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.VerificationRecord
	for _, r := range s.verifications {
		if r.MerchantID == merchantID && !r.CreatedAt.Before(start) && r.CreatedAt.Before(end) {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// ----------------------------------------------------------------------------
// PaymentStore
// ----------------------------------------------------------------------------

type paymentStore Store

func (s *paymentStore) Create(ctx context.Context, record *model.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	cp := *record
	s.payments = append(s.payments, &cp)
	return nil
}

func (s *paymentStore) ListPaidOnDay(ctx context.Context, merchantID string, day time.Time) ([]*model.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.PaymentRecord
	for _, r := range s.payments {
		if r.MerchantID == merchantID && inDay(r.PaidAt, day) {
			cp := *r
			result = append(result, &cp)
		}
	}
	return result, nil
}

// ----------------------------------------------------------------------------
// MerchantStore
// ----------------------------------------------------------------------------

type merchantStore Store

func (s *merchantStore) Create(ctx context.Context, merchant *model.Merchant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.merchants[merchant.ID]; exists {
		return apperr.ConflictErr("商户ID重复: %s", merchant.ID)
	}
	cp := *merchant
	s.merchants[merchant.ID] = &cp
	return nil
}

func (s *merchantStore) GetByID(ctx context.Context, id string) (*model.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merchant, ok := s.merchants[id]
	if !ok {
		return nil, apperr.NotFoundErr("商户不存在: %s", id)
	}
	cp := *merchant
	return &cp, nil
}

func (s *merchantStore) ListActive(ctx context.Context) ([]*model.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.Merchant
	for _, m := range s.merchants {
		if m.Status == model.MerchantStatusActive {
			cp := *m
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ----------------------------------------------------------------------------
// FinanceStore
// ----------------------------------------------------------------------------

type financeStore Store

func (s *financeStore) UpsertDailySummary(ctx context.Context, summary *model.FinanceDailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey(summary.MerchantID, summary.SummaryDate)
	now := time.Now()

	if existing, ok := s.summaries[key]; ok {
		summary.ID = existing.ID
		summary.CreatedAt = existing.CreatedAt
	} else {
		s.nextSummaryID++
		summary.ID = s.nextSummaryID
		summary.CreatedAt = now
	}
	summary.UpdatedAt = now

	cp := *summary
	s.summaries[key] = &cp
	return nil
}

func (s *financeStore) GetDailySummary(ctx context.Context, merchantID string, date time.Time) (*model.FinanceDailySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, ok := s.summaries[dayKey(merchantID, date)]
	if !ok {
		return nil, apperr.NotFoundErr("日汇总不存在: merchant=%s date=%s", merchantID, date.Format("2006-01-02"))
	}
	cp := *summary
	return &cp, nil
}

func (s *financeStore) ListDailySummaries(ctx context.Context, merchantID string, start, end time.Time) ([]*model.FinanceDailySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.FinanceDailySummary
	for _, summary := range s.summaries {
		if summary.MerchantID != merchantID {
			continue
		}
		d := summary.SummaryDate
		if !d.Before(start) && !d.After(end) {
			cp := *summary
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SummaryDate.Before(result[j].SummaryDate) })
	return result, nil
}

func (s *financeStore) CreateSettlement(ctx context.Context, record *model.SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.settlements[record.ID]; exists {
		return apperr.ConflictErr("结算记录ID重复: %s", record.ID)
	}
	// 与 MySQL 的 uk_merchant_period 唯一索引对齐：同一周期只能有一条
	for _, existing := range s.settlements {
		if existing.MerchantID == record.MerchantID &&
			existing.StartDate.Equal(record.StartDate) && existing.EndDate.Equal(record.EndDate) {
			return apperr.ConflictErr("结算周期已存在: merchant=%s", record.MerchantID)
		}
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	cp := *record
	s.settlements[record.ID] = &cp
	return nil
}

func (s *financeStore) GetSettlementByPeriod(ctx context.Context, merchantID string, start, end time.Time) (*model.SettlementRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.settlements {
		if record.MerchantID == merchantID && record.StartDate.Equal(start) && record.EndDate.Equal(end) {
			cp := *record
			return &cp, nil
		}
	}
	return nil, apperr.NotFoundErr("结算记录不存在: merchant=%s", merchantID)
}

func (s *financeStore) UpdateSettlementStatus(ctx context.Context, id, status, failureReason string, settledAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.settlements[id]
	if !ok {
		return apperr.NotFoundErr("结算记录不存在: %s", id)
	}
	record.Status = status
	if failureReason != "" {
		record.FailureReason = failureReason
	}
	if settledAt != nil {
		record.SettledAt = settledAt
	}
	record.UpdatedAt = time.Now()
	return nil
}

func (s *financeStore) UpsertReconciliationLog(ctx context.Context, logRow *model.ReconciliationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey(logRow.MerchantID, logRow.ReconciliationDate)
	now := time.Now()

	if existing, ok := s.recons[key]; ok {
		logRow.ID = existing.ID
		logRow.CreatedAt = existing.CreatedAt
	} else {
		s.nextReconID++
		logRow.ID = s.nextReconID
		logRow.CreatedAt = now
	}
	logRow.UpdatedAt = now

	cp := *logRow
	s.recons[key] = &cp
	return nil
}

func (s *financeStore) GetReconciliationLog(ctx context.Context, merchantID string, date time.Time) (*model.ReconciliationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logRow, ok := s.recons[dayKey(merchantID, date)]
	if !ok {
		return nil, apperr.NotFoundErr("对账日志不存在: merchant=%s", merchantID)
	}
	cp := *logRow
	return &cp, nil
}

// ----------------------------------------------------------------------------
// ExportStore
// ----------------------------------------------------------------------------

type exportStore Store

func (s *exportStore) Create(ctx context.Context, export *model.ReportExport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}
	cp := *export
	s.exports[export.ID] = &cp
	return nil
}

func (s *exportStore) ListExpired(ctx context.Context, before time.Time, limit int) ([]*model.ReportExport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.ReportExport
	for _, export := range s.exports {
		if export.ExpiresAt.Before(before) {
			cp := *export
			result = append(result, &cp)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (s *exportStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.exports, id)
	return nil
}

// ----------------------------------------------------------------------------
// OutboxStore
// ----------------------------------------------------------------------------

type outboxStore Store

func (s *outboxStore) Create(ctx context.Context, msg *model.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOutboxID++
	msg.ID = s.nextOutboxID
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	cp := *msg
	s.outbox = append(s.outbox, &cp)
	return nil
}

func (s *outboxStore) ListPending(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.OutboxMessage
	for _, msg := range s.outbox {
		if msg.Status == model.OutboxStatusPending {
			cp := *msg
			result = append(result, &cp)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (s *outboxStore) MarkSent(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(msg *model.OutboxMessage) {
		msg.Status = model.OutboxStatusSent
	})
}

func (s *outboxStore) IncrementRetry(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(msg *model.OutboxMessage) {
		msg.RetryCount++
	})
}

func (s *outboxStore) MarkFailed(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(msg *model.OutboxMessage) {
		msg.Status = model.OutboxStatusFailed
	})
}

func (s *outboxStore) updateOutbox(id int64, apply func(*model.OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.outbox {
		if msg.ID == id {
			apply(msg)
			msg.UpdatedAt = time.Now()
			return nil
		}
	}
	return apperr.NotFoundErr("发件箱消息不存在: %d", id)
}
