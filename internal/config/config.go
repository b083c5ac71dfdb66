// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 服務啟動時載入一次的環境設定
type Config struct {
	Port          string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	TokenTTL      time.Duration
	WorkerCount   int
}

// Load 讀取環境變數並回傳設定，必要變數缺少時回傳錯誤
func Load() (*Config, error) {
	// .env 不存在時忽略
	_ = godotenv.Load()

	cfg := &Config{
		Port:          "8080",
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		TokenTTL:      24 * time.Hour,
		WorkerCount:   1,
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("環境變數 DATABASE_URL 未設定")
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("環境變數 REDIS_ADDR 未設定")
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("無效的 REDIS_DB: %v", err)
		}
		cfg.RedisDB = n
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("環境變數 JWT_SECRET 未設定")
	}

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("無效的 TOKEN_TTL: %q", v)
		}
		cfg.TokenTTL = d
	}

	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("無效的 WORKER_COUNT: %q", v)
		}
		cfg.WorkerCount = n
	}

	return cfg, nil
}
