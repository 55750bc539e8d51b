package database

import (
	"fmt"
	"log"
	"time"

	"vinow/internal/config"
	"vinow/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewMySQL 建立 MySQL 连接并迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// 把驱动的唯一键冲突翻译成 gorm.ErrDuplicatedKey，仓储层靠它识别撞唯一索引
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 DB 失败: %w", err)
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(
		&model.Merchant{},
		&model.Order{},
		&model.OrderItem{},
		&model.VerificationRecord{},
		&model.PaymentRecord{},
		&model.FinanceDailySummary{},
		&model.SettlementRecord{},
		&model.ReconciliationLog{},
		&model.ReportExport{},
		&model.OutboxMessage{},
	)
	if err != nil {
		return nil, fmt.Errorf("自动迁移表结构失败: %w", err)
	}

	log.Println("MySQL 连接成功")
	return db, nil
}
