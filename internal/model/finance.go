package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SettlementStatusPending    = "pending"
	SettlementStatusProcessing = "processing"
	SettlementStatusCompleted  = "completed"
	SettlementStatusFailed     = "failed"
)

const (
	ReconciliationStatusMatched    = "matched"
	ReconciliationStatusMismatched = "mismatched"
)

// FinanceDailySummary 财务日汇总表
//
// (merchant_id, summary_date) 联合唯一，日汇总任务按该键幂等写入，
// 重跑同一天只会覆盖同一行，不会产生重复记录。
type FinanceDailySummary struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID  string    `gorm:"type:varchar(36);uniqueIndex:uk_merchant_date;not null" json:"merchant_id"`
	SummaryDate time.Time `gorm:"type:date;uniqueIndex:uk_merchant_date;not null" json:"summary_date"`

	TotalIncome      int64 `gorm:"not null" json:"total_income"`
	OrderCount       int   `gorm:"not null" json:"order_count"`
	SuccessfulOrders int   `gorm:"not null" json:"successful_orders"`
	FailedOrders     int   `gorm:"not null" json:"failed_orders"`
	CouponDeduction  int64 `gorm:"not null;default:0" json:"coupon_deduction"`
	PlatformFee      int64 `gorm:"not null;default:0" json:"platform_fee"`
	RefundAmount     int64 `gorm:"not null;default:0" json:"refund_amount"`

	// SettlementAmount = TotalIncome - PlatformFee - RefundAmount
	SettlementAmount int64 `gorm:"not null;default:0" json:"settlement_amount"`

	// MethodBreakdown 按支付方式拆分的收入，JSON 形如 {"momo": 120000, "cash": 30000}
	MethodBreakdown datatypes.JSON `gorm:"type:json" json:"method_breakdown"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FinanceDailySummary) TableName() string {
	return "finance_daily_summaries"
}

// SettlementRecord 结算记录表
//
// 按 (merchant_id, start_date, end_date) 判重：同一周期已有记录时
// 直接返回旧记录，重跑周结算不会二次结算。唯一索引兜底并发写入。
type SettlementRecord struct {
	ID               string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	MerchantID       string    `gorm:"type:varchar(36);uniqueIndex:uk_merchant_period;not null" json:"merchant_id"`
	SettlementNumber string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"settlement_number"`
	SettlementDate   time.Time `gorm:"type:date;not null" json:"settlement_date"`
	StartDate        time.Time `gorm:"type:date;uniqueIndex:uk_merchant_period;not null" json:"start_date"`
	EndDate          time.Time `gorm:"type:date;uniqueIndex:uk_merchant_period;not null" json:"end_date"`

	GrossAmount  int64 `gorm:"not null" json:"gross_amount"`
	PlatformFee  int64 `gorm:"not null;default:0" json:"platform_fee"`
	RefundAmount int64 `gorm:"not null;default:0" json:"refund_amount"`
	NetAmount    int64 `gorm:"not null" json:"net_amount"`

	BankAccount   string     `gorm:"type:varchar(50)" json:"bank_account"`
	BankName      string     `gorm:"type:varchar(100)" json:"bank_name"`
	Status        string     `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
	FailureReason string     `gorm:"type:varchar(500)" json:"failure_reason,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SettlementRecord) TableName() string {
	return "settlement_records"
}

// ReconciliationLog 对账日志表
//
// (merchant_id, reconciliation_date) 联合唯一，幂等覆盖写。
// ExpectedTotal 来自订单侧（当日核销），ActualTotal 来自支付流水侧。
type ReconciliationLog struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID         string    `gorm:"type:varchar(36);uniqueIndex:uk_merchant_recon_date;not null" json:"merchant_id"`
	ReconciliationDate time.Time `gorm:"type:date;uniqueIndex:uk_merchant_recon_date;not null" json:"reconciliation_date"`

	ExpectedTotal int64 `gorm:"not null" json:"expected_total"`
	ActualTotal   int64 `gorm:"not null" json:"actual_total"`
	Difference    int64 `gorm:"not null" json:"difference"`

	Status string `gorm:"type:varchar(20);not null" json:"status"`

	// MismatchedOrders 不匹配订单号列表，JSON 数组
	MismatchedOrders datatypes.JSON `gorm:"type:json" json:"mismatched_orders"`
	Notes            string         `gorm:"type:varchar(1000)" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ReconciliationLog) TableName() string {
	return "reconciliation_logs"
}

// ReportExport 报表导出记录表，过期后由清理任务删除文件与记录
type ReportExport struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	MerchantID   string    `gorm:"type:varchar(36);index;not null" json:"merchant_id"`
	ReportType   string    `gorm:"type:varchar(20);not null" json:"report_type"`
	FileName     string    `gorm:"type:varchar(200);not null" json:"file_name"`
	FilePath     string    `gorm:"type:varchar(500);not null" json:"file_path"`
	FileSize     int64     `gorm:"not null;default:0" json:"file_size"`
	ExportFormat string    `gorm:"type:varchar(10);not null" json:"export_format"`
	ExpiresAt    time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ReportExport) TableName() string {
	return "report_exports"
}
