package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// CommentConfig 定义评论服务的核心业务配置
type CommentConfig struct {
	CacheTTL    time.Duration // 分页列表缓存有效期，默认 5 分钟
	MaxFileSize int64         // 单个附件最大字节数，默认 5 MiB
}

// CaptchaConfig 定义验证码配置
type CaptchaConfig struct {
	Enabled bool          // 是否启用验证码，默认启用
	TTL     time.Duration // 挑战有效期，默认 5 分钟
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 服务配置（列表缓存、验证码、搜索索引共用）
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// KafkaConfig 定义评论事件总线配置
type KafkaConfig struct {
	Enabled       bool     // 是否启用事件发布与消费，默认关闭
	Brokers       []string // Kafka broker 地址列表
	Topic         string   // 评论事件 topic，默认 "comment-events"
	IndexerGroup  string   // 搜索索引消费组 ID
	NotifierGroup string   // WebSocket 广播消费组 ID
}

// StorageConfig 定义附件内容存储配置
type StorageConfig struct {
	Type string // 存储类型: "filesystem" 或 "s3"，默认 "filesystem"

	// filesystem
	BasePath string // 附件落盘目录，默认 "./data/attachments"

	// s3 (MinIO 兼容)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3Bucket    string
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	Comment  CommentConfig  // 评论服务配置
	Captcha  CaptchaConfig  // 验证码配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
	Kafka    KafkaConfig    // 事件总线配置
	Storage  StorageConfig  // 附件存储配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: COMMENTBOX_
// 例如: COMMENTBOX_SERVER_PORT, COMMENTBOX_DATABASE_DSN
//
// 返回值:
//   - *Config: 加载成功的配置对象
//   - error: 配置验证失败时返回错误
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("commentbox")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("comment.cache_ttl", "5m")
	viper.SetDefault("comment.max_file_size", 5*1024*1024)
	viper.SetDefault("captcha.enabled", true)
	viper.SetDefault("captcha.ttl", "5m")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", "localhost:9092")
	viper.SetDefault("kafka.topic", "comment-events")
	viper.SetDefault("kafka.indexer_group", "commentbox-indexer")
	viper.SetDefault("kafka.notifier_group", "commentbox-notifier")
	viper.SetDefault("storage.type", "filesystem")
	viper.SetDefault("storage.base_path", "./data/attachments")
	viper.SetDefault("storage.s3_endpoint", "")
	viper.SetDefault("storage.s3_access_key", "")
	viper.SetDefault("storage.s3_secret_key", "")
	viper.SetDefault("storage.s3_use_ssl", false)
	viper.SetDefault("storage.s3_bucket", "commentbox-attachments")

	cacheTTL, err := time.ParseDuration(viper.GetString("comment.cache_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid comment.cache_ttl: %w", err)
	}

	maxFileSize := viper.GetInt64("comment.max_file_size")
	if maxFileSize <= 0 {
		maxFileSize = 5 * 1024 * 1024
	}

	captchaTTL, err := time.ParseDuration(viper.GetString("captcha.ttl"))
	if err != nil {
		captchaTTL = 5 * time.Minute
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	dbType := viper.GetString("database.type")
	switch dbType {
	case "", "mysql", "postgres":
	default:
		return nil, fmt.Errorf("invalid database.type %q: must be \"mysql\", \"postgres\" or empty", dbType)
	}
	if dbType != "" && viper.GetString("database.dsn") == "" {
		return nil, fmt.Errorf("database.dsn is required when database.type is set")
	}

	kafkaEnabled := viper.GetBool("kafka.enabled")
	kafkaBrokers := parseList(viper.GetString("kafka.brokers"))
	if kafkaEnabled && len(kafkaBrokers) == 0 {
		return nil, fmt.Errorf("kafka.brokers must not be empty when kafka is enabled")
	}

	storageType := viper.GetString("storage.type")
	switch storageType {
	case "filesystem", "s3":
	default:
		return nil, fmt.Errorf("invalid storage.type %q: must be \"filesystem\" or \"s3\"", storageType)
	}
	if storageType == "s3" && viper.GetString("storage.s3_endpoint") == "" {
		return nil, fmt.Errorf("storage.s3_endpoint is required when storage.type is \"s3\"")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Comment: CommentConfig{
			CacheTTL:    cacheTTL,
			MaxFileSize: maxFileSize,
		},
		Captcha: CaptchaConfig{
			Enabled: viper.GetBool("captcha.enabled"),
			TTL:     captchaTTL,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type:            dbType,
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Enabled:       kafkaEnabled,
			Brokers:       kafkaBrokers,
			Topic:         viper.GetString("kafka.topic"),
			IndexerGroup:  viper.GetString("kafka.indexer_group"),
			NotifierGroup: viper.GetString("kafka.notifier_group"),
		},
		Storage: StorageConfig{
			Type:        storageType,
			BasePath:    viper.GetString("storage.base_path"),
			S3Endpoint:  viper.GetString("storage.s3_endpoint"),
			S3AccessKey: viper.GetString("storage.s3_access_key"),
			S3SecretKey: viper.GetString("storage.s3_secret_key"),
			S3UseSSL:    viper.GetBool("storage.s3_use_ssl"),
			S3Bucket:    viper.GetString("storage.s3_bucket"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	// 尝试当前目录的 .env
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	// 尝试父目录的 .env（从 backend/ 目录运行时）
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
