package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"ChordScroll/logger"
	"ChordScroll/model"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ServerAddr      string
	WebAppDir       string // 浏览器端页面目录
	TranscriptFile  string // 为空时使用内置演示歌谱
	WatchTranscript bool   // 文件变化时自动重新加载
	DefaultBPM      float64
	ScrollRate      model.ScrollRate

	// 日志配置
	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool

	// Load 时回退到默认值的配置项；logger 初始化之后由调用方输出
	Warnings []string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded, relying on environment and defaults", logger.ErrorField(err))
	}

	cfg := &Config{
		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		WebAppDir:       getEnv("WEB_APP_DIR", "web/ui"),
		TranscriptFile:  getEnv("TRANSCRIPT_FILE", ""),
		WatchTranscript: getEnvBool("WATCH_TRANSCRIPT", true),
		DefaultBPM:      getEnvFloat("DEFAULT_BPM", model.DefaultTempo),
		ScrollRate:      model.ScrollRate(getEnvFloat("DEFAULT_SCROLL_RATE", float64(model.DefaultScrollRate))).Clamp(),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
		LogMaxSize:      getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups:   getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:       getEnvInt("LOG_MAX_AGE", 28),
		LogCompress:     getEnvBool("LOG_COMPRESS", false),
	}

	// 与时钟使用同一校验：间隔必须为正，否则回退到默认值
	if _, err := model.Interval(cfg.DefaultBPM); err != nil {
		cfg.Warnings = append(cfg.Warnings,
			fmt.Sprintf("invalid DEFAULT_BPM (%v), using %v", err, model.DefaultTempo))
		cfg.DefaultBPM = model.DefaultTempo
	}

	return cfg
}

// LoggerConfig 转换为 logger 包的配置
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      logger.LogLevel(c.LogLevel),
		OutputPath: c.LogFile,
		MaxSize:    c.LogMaxSize,
		MaxBackups: c.LogMaxBackups,
		MaxAge:     c.LogMaxAge,
		Compress:   c.LogCompress,
	}
}
