package job

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"vinow/internal/repository"
	"vinow/internal/service"
)

// ============================================================================
// 财务定时任务
// ============================================================================
//
// 四个跑批任务，按商户扇出执行：
//   - 日汇总：每天凌晨汇总昨天的经营数据
//   - 周结算：每周一结算上一个自然周（周一到周日）
//   - 日对账：每天核对昨天订单侧与流水侧的金额
//   - 报表清理：删除过期的导出文件与记录
//
// 【隔离语义】
// 单个商户失败只计入 ErrorCount，不中断其余商户；
// 只有商户列表本身查不出来才算任务级失败。

type FinanceJobs struct {
	store          repository.DataStore
	finance        *service.FinanceService
	settlement     *service.SettlementService
	reconciliation *service.ReconciliationService

	merchantTimeout time.Duration // 单商户处理超时
	concurrency     int           // 商户并发处理数
	cleanupBatch    int
}

func NewFinanceJobs(
	store repository.DataStore,
	finance *service.FinanceService,
	settlement *service.SettlementService,
	reconciliation *service.ReconciliationService,
	merchantTimeout time.Duration,
	concurrency int,
) *FinanceJobs {
	if concurrency < 1 {
		concurrency = 1
	}
	return &FinanceJobs{
		store:           store,
		finance:         finance,
		settlement:      settlement,
		reconciliation:  reconciliation,
		merchantTimeout: merchantTimeout,
		concurrency:     concurrency,
		cleanupBatch:    500,
	}
}

// Summary 单次跑批结果
type Summary struct {
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`
}

// RunDailySummary 日汇总：处理昨天
func (j *FinanceJobs) RunDailySummary(ctx context.Context) error {
	yesterday := time.Now().AddDate(0, 0, -1)
	summary, err := j.forEachMerchant(ctx, "DailySummary", func(ctx context.Context, merchantID string) error {
		_, err := j.finance.GenerateDailySummary(ctx, merchantID, yesterday)
		return err
	})
	if err != nil {
		return err
	}
	log.Printf("[DailySummary] 跑批完成: 日期=%s 成功=%d 失败=%d",
		yesterday.Format("2006-01-02"), summary.SuccessCount, summary.ErrorCount)
	return nil
}

// RunWeeklySettlement 周结算：结算上一个自然周（周一到周日）
func (j *FinanceJobs) RunWeeklySettlement(ctx context.Context) error {
	start, end := previousWeek(time.Now())
	summary, err := j.forEachMerchant(ctx, "WeeklySettlement", func(ctx context.Context, merchantID string) error {
		_, err := j.settlement.ProcessSettlement(ctx, merchantID, start, end)
		return err
	})
	if err != nil {
		return err
	}
	log.Printf("[WeeklySettlement] 跑批完成: 周期=%s~%s 成功=%d 失败=%d",
		start.Format("2006-01-02"), end.Format("2006-01-02"), summary.SuccessCount, summary.ErrorCount)
	return nil
}

// RunDailyReconciliation 日对账：核对昨天
func (j *FinanceJobs) RunDailyReconciliation(ctx context.Context) error {
	yesterday := time.Now().AddDate(0, 0, -1)
	summary, err := j.forEachMerchant(ctx, "DailyReconciliation", func(ctx context.Context, merchantID string) error {
		_, err := j.reconciliation.RunReconciliation(ctx, merchantID, yesterday)
		return err
	})
	if err != nil {
		return err
	}
	log.Printf("[DailyReconciliation] 跑批完成: 日期=%s 成功=%d 失败=%d",
		yesterday.Format("2006-01-02"), summary.SuccessCount, summary.ErrorCount)
	return nil
}

// RunReportCleanup 报表清理：删除过期导出的文件与记录
//
// 远端文件（http/https 路径）由对象存储的生命周期策略负责，
// 这里只清记录；本地文件先删盘上的再删记录，文件已不存在视作成功，
// 其他 I/O 错误保留记录等下一轮重试。
func (j *FinanceJobs) RunReportCleanup(ctx context.Context) error {
	expired, err := j.store.Exports().ListExpired(ctx, time.Now(), j.cleanupBatch)
	if err != nil {
		return err
	}

	var summary Summary
	for _, export := range expired {
		if err := removeExportFile(export.FilePath); err != nil {
			log.Printf("[ReportCleanup] 删除文件失败: id=%s path=%s err=%v", export.ID, export.FilePath, err)
			summary.ErrorCount++
			continue
		}
		if err := j.store.Exports().Delete(ctx, export.ID); err != nil {
			log.Printf("[ReportCleanup] 删除记录失败: id=%s err=%v", export.ID, err)
			summary.ErrorCount++
			continue
		}
		summary.SuccessCount++
	}

	log.Printf("[ReportCleanup] 跑批完成: 过期=%d 清理=%d 失败=%d", len(expired), summary.SuccessCount, summary.ErrorCount)
	return nil
}

func removeExportFile(path string) error {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// forEachMerchant 按商户扇出执行 fn，带并发上限与单商户超时
func (j *FinanceJobs) forEachMerchant(ctx context.Context, jobName string, fn func(ctx context.Context, merchantID string) error) (*Summary, error) {
	merchants, err := j.store.Merchants().ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		summary Summary
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, j.concurrency)

	for _, merchant := range merchants {
		merchantID := merchant.ID

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			merchantCtx, cancel := context.WithTimeout(ctx, j.merchantTimeout)
			defer cancel()

			if err := fn(merchantCtx, merchantID); err != nil {
				log.Printf("[%s] 商户处理失败: 商户=%s err=%v", jobName, merchantID, err)
				mu.Lock()
				summary.ErrorCount++
				mu.Unlock()
				return
			}
			mu.Lock()
			summary.SuccessCount++
			mu.Unlock()
		}()
	}
	wg.Wait()

	return &summary, nil
}

// previousWeek 返回 now 之前最近一个完整自然周的 [周一, 周日]
func previousWeek(now time.Time) (time.Time, time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// 本周一（周日算上周的第 7 天）
	offset := (int(today.Weekday()) + 6) % 7
	thisMonday := today.AddDate(0, 0, -offset)

	start := thisMonday.AddDate(0, 0, -7)
	end := thisMonday.AddDate(0, 0, -1)
	return start, end
}
