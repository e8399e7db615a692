package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
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
	PurchaseResult string `mapstructure:"purchase_result"`
	CreditChange   string `mapstructure:"credit_change"`
}

type BusinessConfig struct {
	// CreditAdjustLimit 单次调额上限（绝对值），表单侧的策略而非账本约束，0 表示不限
	CreditAdjustLimit float64 `mapstructure:"credit_adjust_limit"`
	// LockRetryIntervalMs / LockMaxRetries 实体锁的有界等待参数
	LockRetryIntervalMs int `mapstructure:"lock_retry_interval_ms"`
	LockMaxRetries      int `mapstructure:"lock_max_retries"`
	// MaxRetryCount 发件箱投递的最大重试次数
	MaxRetryCount int `mapstructure:"max_retry_count"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件，缺失的键走默认值
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("storage.path", "data/pos.json")
	viper.SetDefault("business.credit_adjust_limit", 100)
	viper.SetDefault("business.lock_retry_interval_ms", 100)
	viper.SetDefault("business.lock_max_retries", 30)
	viper.SetDefault("business.max_retry_count", 3)
	viper.SetDefault("kafka.topic.purchase_result", "pos.purchase.result")
	viper.SetDefault("kafka.topic.credit_change", "pos.credit.change")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("读取配置文件失败，使用默认配置: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
