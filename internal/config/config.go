package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/gorm/logger"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`       // 服务器配置
	Database    DatabaseConfig    `mapstructure:"database"`     // PostgreSQL配置
	Scoring     ScoringConfig     `mapstructure:"scoring"`      // 打分任务配置
	EventSource EventSourceConfig `mapstructure:"event_source"` // 主行为事件源
	Kafka       KafkaConfig       `mapstructure:"kafka"`        // 实时信号 / 打分结果消息
	Metrics     MetricsConfig     `mapstructure:"metrics"`      // prometheus
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig PostgreSQL数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（URL形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	SQLLogLevel     string        `mapstructure:"sql_log_level"`     // silent/error/warn/info
}

// ScoringConfig 意向打分相关配置
type ScoringConfig struct {
	RegistryTTL       time.Duration `mapstructure:"registry_ttl"`       // 打分配置缓存 TTL
	ClassificationTTL time.Duration `mapstructure:"classification_ttl"` // 分类规则缓存 TTL
	DefaultRangeDays  int           `mapstructure:"default_range_days"` // 批量任务默认回溯天数
	RealtimeDays      int           `mapstructure:"realtime_days"`      // 实时任务回溯天数
	PersonalDomains   []string      `mapstructure:"personal_domains"`   // 个人/免费邮箱域名，直接跳过
	PublishScored     bool          `mapstructure:"publish_scored"`     // 是否推送 intent.scored 消息
}

// EventSourceConfig 主事件源（分析仓库导出接口）
type EventSourceConfig struct {
	Kind       string `mapstructure:"kind"`        // http / none
	BaseURL    string `mapstructure:"base_url"`    // API基础地址
	Path       string `mapstructure:"path"`        // 导出接口路径
	Timeout    int    `mapstructure:"timeout"`     // 请求超时（秒）
	RetryCount int    `mapstructure:"retry_count"` // 重试次数
	AuthToken  string `mapstructure:"auth_token"`  // Bearer Token
	Proxy      string `mapstructure:"proxy"`       // 代理地址
}

// KafkaConfig 实时信号消费 / 打分结果推送
type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	SignalsTopic string   `mapstructure:"signals_topic"` // 原始行为事件
	ScoredTopic  string   `mapstructure:"scored_topic"`  // 打分结果
	GroupID      string   `mapstructure:"group_id"`
}

// MetricsConfig prometheus 配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DefaultPersonalDomains 常见个人邮箱域名
var DefaultPersonalDomains = []string{
	"gmail.com", "googlemail.com", "yahoo.com", "hotmail.com", "outlook.com",
	"live.com", "aol.com", "icloud.com", "me.com", "proton.me", "protonmail.com",
	"gmx.com", "mail.com", "yandex.com", "qq.com", "163.com",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.sql_log_level", "warn")
	v.SetDefault("scoring.registry_ttl", 60*time.Second)
	v.SetDefault("scoring.classification_ttl", 5*time.Minute)
	v.SetDefault("scoring.default_range_days", 30)
	v.SetDefault("scoring.realtime_days", 30)
	v.SetDefault("scoring.personal_domains", DefaultPersonalDomains)
	v.SetDefault("scoring.publish_scored", true)
	v.SetDefault("event_source.kind", "http")
	v.SetDefault("event_source.path", "/events/export")
	v.SetDefault("event_source.timeout", 30)
	v.SetDefault("event_source.retry_count", 1)
	v.SetDefault("kafka.signals_topic", "signals.raw")
	v.SetDefault("kafka.scored_topic", "intent.scored")
	v.SetDefault("kafka.group_id", "intent-engine")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	dir := os.Getenv("INTENT_CONFIG_DIR")
	if dir == "" {
		dir = "./config"
	}
	return LoadConfigFrom(dir)
}

// LoadConfigFrom 从指定目录读取 config.yaml
func LoadConfigFrom(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("EVENT_SOURCE_AUTH_TOKEN"); v != "" {
		cfg.EventSource.AuthToken = v
	}
	if v := os.Getenv("EVENT_SOURCE_PROXY"); v != "" {
		cfg.EventSource.Proxy = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Kafka.Brokers = brokers
	}
}

// GormLogLevel 把配置中的 sql_log_level 转成 gorm 日志级别
func (d *DatabaseConfig) GormLogLevel() logger.LogLevel {
	switch strings.ToLower(d.SQLLogLevel) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
