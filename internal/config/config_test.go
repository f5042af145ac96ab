package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"COMMENTBOX_SERVER_HOST",
		"COMMENTBOX_SERVER_PORT",
		"COMMENTBOX_COMMENT_CACHE_TTL",
		"COMMENTBOX_COMMENT_MAX_FILE_SIZE",
		"COMMENTBOX_CAPTCHA_ENABLED",
		"COMMENTBOX_CORS_ALLOWED_ORIGINS",
		"COMMENTBOX_LOG_LEVEL",
		"COMMENTBOX_DATABASE_TYPE",
		"COMMENTBOX_DATABASE_DSN",
		"COMMENTBOX_KAFKA_ENABLED",
		"COMMENTBOX_KAFKA_BROKERS",
		"COMMENTBOX_STORAGE_TYPE",
		"COMMENTBOX_STORAGE_S3_ENDPOINT",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	clearEnv := func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
	}

	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 5*time.Minute, cfg.Comment.CacheTTL)
		assert.Equal(t, int64(5*1024*1024), cfg.Comment.MaxFileSize)
		assert.True(t, cfg.Captcha.Enabled)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "", cfg.Database.Type)
		assert.False(t, cfg.Kafka.Enabled)
		assert.Equal(t, "comment-events", cfg.Kafka.Topic)
		assert.Equal(t, "filesystem", cfg.Storage.Type)
	})

	t.Run("环境变量覆盖默认值", func(t *testing.T) {
		clearEnv()
		os.Setenv("COMMENTBOX_SERVER_PORT", "9090")
		os.Setenv("COMMENTBOX_COMMENT_CACHE_TTL", "30s")
		os.Setenv("COMMENTBOX_CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test")
		os.Setenv("COMMENTBOX_KAFKA_ENABLED", "true")
		os.Setenv("COMMENTBOX_KAFKA_BROKERS", "kafka1:9092,kafka2:9092")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Comment.CacheTTL)
		assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORS.AllowedOrigins)
		assert.True(t, cfg.Kafka.Enabled)
		assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.Kafka.Brokers)
	})

	t.Run("数据库类型非法时报错", func(t *testing.T) {
		clearEnv()
		os.Setenv("COMMENTBOX_DATABASE_TYPE", "oracle")
		os.Setenv("COMMENTBOX_DATABASE_DSN", "whatever")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("启用数据库但缺少DSN时报错", func(t *testing.T) {
		clearEnv()
		os.Setenv("COMMENTBOX_DATABASE_TYPE", "postgres")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("S3存储缺少端点时报错", func(t *testing.T) {
		clearEnv()
		os.Setenv("COMMENTBOX_STORAGE_TYPE", "s3")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList("a, b"))
	assert.Equal(t, []string{"a"}, parseList("a,,"))
	assert.Empty(t, parseList("  "))
}
