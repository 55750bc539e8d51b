package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config 全局配置结构，进程启动时加载一次，按引用传给需要的组件
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// StorageConfig 数据存储选型，在组装期决定使用哪种 DataStore 实现
//
// driver: mysql | memory（memory 仅用于本地开发与测试）
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	OrderEvents string `mapstructure:"order_events"`
}

type BusinessConfig struct {
	// DefaultCommissionRate 商户未单独配置时的平台抽佣比例（十进制字符串）
	DefaultCommissionRate string `mapstructure:"default_commission_rate"`
	MaxRetryCount         int    `mapstructure:"max_retry_count"`
}

// JobsConfig 定时任务触发时刻
type JobsConfig struct {
	DailySummaryHour       int `mapstructure:"daily_summary_hour"`       // 日汇总：每天
	SettlementWeekday      int `mapstructure:"settlement_weekday"`       // 周结算：0=周日 1=周一 ...
	SettlementHour         int `mapstructure:"settlement_hour"`          // 周结算：当天几点
	ReconciliationHour     int `mapstructure:"reconciliation_hour"`      // 日对账：每天
	ReportCleanupHour      int `mapstructure:"report_cleanup_hour"`      // 报表清理：每天
	MerchantTimeoutSeconds int `mapstructure:"merchant_timeout_seconds"` // 单商户处理超时
	MerchantConcurrency    int `mapstructure:"merchant_concurrency"`     // 商户并发处理数
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("storage.driver", "mysql")
	viper.SetDefault("business.default_commission_rate", "0.02")
	viper.SetDefault("business.max_retry_count", 3)
	viper.SetDefault("jobs.daily_summary_hour", 1)
	viper.SetDefault("jobs.settlement_weekday", 1)
	viper.SetDefault("jobs.settlement_hour", 2)
	viper.SetDefault("jobs.reconciliation_hour", 3)
	viper.SetDefault("jobs.report_cleanup_hour", 4)
	viper.SetDefault("jobs.merchant_timeout_seconds", 30)
	viper.SetDefault("jobs.merchant_concurrency", 8)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return config, nil
}
