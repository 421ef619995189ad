package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"wine-tasting/internal/infra/ai"
	"wine-tasting/internal/infra/setup"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	DB              setup.DBConfig
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	KeyPrefix       string // Redis Key 前缀
	JWTSecret       string
	JWTExpiryHours  int
	ServerPort      string
	LogLevel        string
	AppEnv          string // development / production
	CORSOrigins     []string
	RateLimitMax    int
	RateLimitWindow time.Duration
	RoomIdleTTL     time.Duration // 没有玩家连接的房间在内存中保留多久
	GameStaleAfter  time.Duration // 多久没有更新的游戏会被自动结束
	OpenAIAPIKey    string
	OpenAIModel     string
}

// LoadConfig 从 .env 文件 (如果存在) 和环境变量加载配置
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	cfg := &Config{
		DB: setup.DBConfig{
			Driver:   envOr("DB_DRIVER", setup.DriverMySQL),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			Name:     os.Getenv("DB_NAME"),
		},
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:       envOr("REDIS_KEY_PREFIX", "wt:"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		ServerPort:      envOr("SERVER_PORT", "8080"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		AppEnv:          envOr("APP_ENV", "development"),
		CORSOrigins:     splitList(envOr("CORS_ALLOWED_ORIGIN", "http://localhost:3000")),
		RateLimitWindow: time.Second,
		OpenAIAPIKey:    strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:     envOr("OPENAI_MODEL", ai.DefaultModel),
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTExpiryHours, err = envInt("JWT_EXPIRY_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = envInt("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	if cfg.RoomIdleTTL, err = envDuration("ROOM_IDLE_TTL", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.GameStaleAfter, err = envDuration("GAME_STALE_AFTER", 24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	if _, err := cfg.DB.DSN(); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", cfg.RateLimitMax)
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("environment variable %s must be a positive duration (e.g. 2h): %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
