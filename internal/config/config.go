package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBSource string
	Port     string
	Env      string

	// Site base URL, used to build the gateway notify/return URLs.
	SiteURL string

	// Payment gateway (ZPay protocol) credentials.
	ZPayPID        string
	ZPayKey        string
	ZPayGatewayURL string

	// Completion API.
	AIAPIKey  string
	AIBaseURL string
	AIModel   string
	AITimeout time.Duration

	// Identity provider verify endpoint.
	AuthVerifyURL string

	// Requests per second allowed on the AI routes.
	AIRateLimit float64
}

func Load() (*Config, error) {
	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	zpayPID := os.Getenv("ZPAY_PID")
	zpayKey := os.Getenv("ZPAY_PKEY")
	if zpayPID == "" || zpayKey == "" {
		return nil, fmt.Errorf("ZPAY_PID and ZPAY_PKEY environment variables are required")
	}

	aiKey := os.Getenv("OPENROUTER_API_KEY")
	if aiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable is required")
	}

	authVerifyURL := os.Getenv("AUTH_VERIFY_URL")
	if authVerifyURL == "" {
		return nil, fmt.Errorf("AUTH_VERIFY_URL environment variable is required")
	}

	timeout := 120 * time.Second
	if v := os.Getenv("AI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid AI_TIMEOUT: %w", err)
		}
		timeout = d
	}

	rateLimit := 2.0
	if v := os.Getenv("AI_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid AI_RATE_LIMIT: %w", err)
		}
		rateLimit = f
	}

	return &Config{
		DBSource:       dbSource,
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		SiteURL:        getEnv("SITE_URL", "http://localhost:8080"),
		ZPayPID:        zpayPID,
		ZPayKey:        zpayKey,
		ZPayGatewayURL: getEnv("ZPAY_GATEWAY_URL", "https://z-pay.cn/submit.php"),
		AIAPIKey:       aiKey,
		AIBaseURL:      getEnv("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		AIModel:        getEnv("AI_MODEL", "anthropic/claude-3.5-sonnet"),
		AITimeout:      timeout,
		AuthVerifyURL:  authVerifyURL,
		AIRateLimit:    rateLimit,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
