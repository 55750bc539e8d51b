package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"vinow/internal/config"
	"vinow/internal/handler"
	"vinow/internal/infrastructure/cache"
	"vinow/internal/infrastructure/database"
	"vinow/internal/infrastructure/mq"
	"vinow/internal/job"
	"vinow/internal/repository"
	"vinow/internal/repository/memory"
	"vinow/internal/service"
	"vinow/pkg/idgen"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 数据存储：组装期按配置选择实现
	var store repository.DataStore
	switch cfg.Storage.Driver {
	case "memory":
		log.Println("使用内存存储（仅限本地开发）")
		store = memory.New()
	default:
		db, err := database.NewMySQL(&cfg.MySQL)
		if err != nil {
			log.Fatalf("初始化 MySQL 失败: %v", err)
		}
		store = repository.New(db)
	}

	// Redis：仅用于多实例下定时任务抢锁，未启用时单实例直跑
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(&cfg.Redis)
		if err != nil {
			log.Fatalf("初始化 Redis 失败: %v", err)
		}
	}

	// Kafka：发件箱事件出口，未启用时事件留在发件箱表里
	var publisher job.EventPublisher
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(&cfg.Kafka)
		if err != nil {
			log.Fatalf("初始化 Kafka 失败: %v", err)
		}
		defer producer.Close()
		publisher = producer
	}

	// 业务服务
	ids := idgen.New()
	topic := cfg.Kafka.Topic.OrderEvents
	orderService := service.NewOrderService(store, ids, topic)
	verifyService := service.NewVerifyService(store, topic)
	refundService := service.NewRefundService(store, topic)
	financeService := service.NewFinanceService(store, cfg.Business.DefaultCommissionRate)
	settlementService := service.NewSettlementService(store, ids)
	reconciliationService := service.NewReconciliationService(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 后台任务
	financeJobs := job.NewFinanceJobs(
		store,
		financeService,
		settlementService,
		reconciliationService,
		time.Duration(cfg.Jobs.MerchantTimeoutSeconds)*time.Second,
		cfg.Jobs.MerchantConcurrency,
	)

	scheduler := job.NewScheduler(redisClient)
	scheduler.AddDaily("daily_summary", cfg.Jobs.DailySummaryHour, financeJobs.RunDailySummary)
	scheduler.AddWeekly("weekly_settlement", time.Weekday(cfg.Jobs.SettlementWeekday), cfg.Jobs.SettlementHour, financeJobs.RunWeeklySettlement)
	scheduler.AddDaily("daily_reconciliation", cfg.Jobs.ReconciliationHour, financeJobs.RunDailyReconciliation)
	scheduler.AddDaily("report_cleanup", cfg.Jobs.ReportCleanupHour, financeJobs.RunReportCleanup)
	scheduler.Start(ctx)

	var outboxSender *job.OutboxSender
	if publisher != nil {
		outboxSender = job.NewOutboxSender(store, publisher, cfg.Business.MaxRetryCount)
		go outboxSender.Start(ctx)
	}

	// HTTP 服务
	h := handler.NewHandler(
		orderService,
		verifyService,
		refundService,
		financeService,
		settlementService,
		reconciliationService,
		financeJobs,
	)
	router := handler.SetupRouter(h)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 停止后台任务
	cancel()
	scheduler.Stop()
	if outboxSender != nil {
		outboxSender.Stop()
	}

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已退出")
}
