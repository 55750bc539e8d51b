package repository

import (
	"context"
	"time"

	"vinow/internal/model"
	"vinow/pkg/apperr"

	"gorm.io/gorm"
)

// ============================================================================
// 数据存储能力接口
// ============================================================================
//
// 核心层只依赖 DataStore 接口，不直接依赖任何驱动。两个实现：
//   - repository.New(db)  —— MySQL/GORM，生产环境
//   - memory.New()        —— 进程内存，测试与本地开发
//
// 实现选择在组装期（cmd/server/main.go）由配置决定，不在运行期兜底切换。
//
// 【并发约定】
// OrderStore.UpdateStatus 是整个系统唯一的互斥点：条件更新
// （WHERE id = ? AND status = ?）即乐观并发检查，两个并发调用
// 只有一个能命中行，输掉的一方收到 ConcurrencyConflict。
// 两个实现必须保持同一语义。

type DataStore interface {
	Orders() OrderStore
	Verifications() VerificationStore
	Payments() PaymentStore
	Merchants() MerchantStore
	Finance() FinanceStore
	Exports() ExportStore
	Outbox() OutboxStore

	// Transact 在一个事务内执行 fn，fn 收到的 DataStore 绑定到该事务
	Transact(ctx context.Context, fn func(DataStore) error) error
}

type OrderStore interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	GetByVerificationCode(ctx context.Context, code string) (*model.Order, error)

	// UpdateStatus 条件更新订单状态，extra 为随状态一起写入的附加列
	UpdateStatus(ctx context.Context, id, fromStatus, toStatus string, extra map[string]interface{}) error

	// UpdatePayment 条件更新支付侧字段，不触碰订单状态。
	// 仅当支付状态仍为 fromPaymentStatus 时生效，否则返回 ConcurrencyConflict，
	// 防止重复回调重复入账
	UpdatePayment(ctx context.Context, id, fromPaymentStatus string, updates map[string]interface{}) error

	ListByMerchant(ctx context.Context, merchantID string, page, pageSize int) ([]*model.Order, int64, error)

	// ListCreatedOnDay 当天创建的订单（日汇总数据源）
	ListCreatedOnDay(ctx context.Context, merchantID string, day time.Time) ([]*model.Order, error)

	// ListVerifiedOnDay 当天核销的订单（对账"应收"侧数据源）
	ListVerifiedOnDay(ctx context.Context, merchantID string, day time.Time) ([]*model.Order, error)
}

type VerificationStore interface {
	Create(ctx context.Context, record *model.VerificationRecord) error
	GetByOrderID(ctx context.Context, orderID string) (*model.VerificationRecord, error)
	ListByMerchant(ctx context.Context, merchantID string, start, end time.Time) ([]*model.VerificationRecord, error)
}

type PaymentStore interface {
	Create(ctx context.Context, record *model.PaymentRecord) error

	// ListPaidOnDay 当天到账的支付流水（对账"实收"侧数据源）
	ListPaidOnDay(ctx context.Context, merchantID string, day time.Time) ([]*model.PaymentRecord, error)
}

type MerchantStore interface {
	Create(ctx context.Context, merchant *model.Merchant) error
	GetByID(ctx context.Context, id string) (*model.Merchant, error)
	ListActive(ctx context.Context) ([]*model.Merchant, error)
}

type FinanceStore interface {
	UpsertDailySummary(ctx context.Context, summary *model.FinanceDailySummary) error
	GetDailySummary(ctx context.Context, merchantID string, date time.Time) (*model.FinanceDailySummary, error)
	ListDailySummaries(ctx context.Context, merchantID string, start, end time.Time) ([]*model.FinanceDailySummary, error)

	CreateSettlement(ctx context.Context, record *model.SettlementRecord) error
	GetSettlementByPeriod(ctx context.Context, merchantID string, start, end time.Time) (*model.SettlementRecord, error)
	UpdateSettlementStatus(ctx context.Context, id, status, failureReason string, settledAt *time.Time) error

	UpsertReconciliationLog(ctx context.Context, logRow *model.ReconciliationLog) error
	GetReconciliationLog(ctx context.Context, merchantID string, date time.Time) (*model.ReconciliationLog, error)
}

type ExportStore interface {
	Create(ctx context.Context, export *model.ReportExport) error
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*model.ReportExport, error)
	Delete(ctx context.Context, id string) error
}

type OutboxStore interface {
	Create(ctx context.Context, msg *model.OutboxMessage) error
	ListPending(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	IncrementRetry(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

// Store MySQL/GORM 实现
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Orders() OrderStore               { return &OrderRepository{db: s.db} }
func (s *Store) Verifications() VerificationStore { return &VerificationRepository{db: s.db} }
func (s *Store) Payments() PaymentStore           { return &PaymentRepository{db: s.db} }
func (s *Store) Merchants() MerchantStore         { return &MerchantRepository{db: s.db} }
func (s *Store) Finance() FinanceStore            { return &FinanceRepository{db: s.db} }
func (s *Store) Exports() ExportStore             { return &ExportRepository{db: s.db} }
func (s *Store) Outbox() OutboxStore              { return &OutboxRepository{db: s.db} }

func (s *Store) Transact(ctx context.Context, fn func(DataStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// dayBounds 返回 day 所在自然日的 [起, 止) 时间
func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.Add(24 * time.Hour)
}

func wrapDB(err error, format string, args ...interface{}) error {
	return apperr.Wrap(err, format, args...)
}
