package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL string // 指定があれば POSTGRES_* より優先

	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5433）

	JWTSecret string // JWT署名シークレット（顧客トークンの検証用）

	GoEnv string // dev/prod

	Checkout CheckoutConfig

	PaymentGatewayURL string // 空なら決済はスタブ
	PaymentAPIKey     string

	RedisAddr    string // 空なら通知はログのみ
	RedisChannel string

	OTelStdout bool // トレースを標準出力に出す
}

// チェックアウト周りの設定
type CheckoutConfig struct {
	CheckoutTTL           time.Duration
	CartTTL               time.Duration
	ReservationGrace      time.Duration
	SweepInterval         time.Duration
	MaxItemQuantity       int64
	LowStockThreshold     int64
	ReserveMaxAttempts    int
	DefaultCurrency       string
	FreeShippingThreshold int64
}

// 既定値
func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		CheckoutTTL:           30 * time.Minute,
		CartTTL:               720 * time.Hour,
		ReservationGrace:      5 * time.Minute,
		SweepInterval:         time.Minute,
		MaxItemQuantity:       100,
		LowStockThreshold:     5,
		ReserveMaxAttempts:    3,
		DefaultCurrency:       "JPY",
		FreeShippingThreshold: 5000,
	}
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: os.Getenv("PORT"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv: os.Getenv("GO_ENV"),

		PaymentGatewayURL: os.Getenv("PAYMENT_GATEWAY_URL"),
		PaymentAPIKey:     os.Getenv("PAYMENT_API_KEY"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisChannel: getenvDefault("REDIS_CHANNEL", "orders.created"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.DatabaseURL == "" {
		pgPort, err := mustAtoi("POSTGRES_PORT")
		if err != nil {
			return Config{}, err
		}
		cfg.PostgresPort = pgPort

		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
		if cfg.PostgresHost == "" {
			return Config{}, fmt.Errorf("POSTGRES_HOST is required")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.PaymentGatewayURL != "" {
		if _, err := url.ParseRequestURI(cfg.PaymentGatewayURL); err != nil {
			return Config{}, fmt.Errorf("PAYMENT_GATEWAY_URL must be url: %w", err)
		}
	}

	otel, err := optBool("OTEL_STDOUT", false)
	if err != nil {
		return Config{}, err
	}
	cfg.OTelStdout = otel

	co, err := loadCheckout()
	if err != nil {
		return Config{}, err
	}
	cfg.Checkout = co

	return cfg, nil
}

// DSN（DATABASE_URL 優先）
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort,
	)
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

func loadCheckout() (CheckoutConfig, error) {
	d := DefaultCheckoutConfig()
	var err error

	if d.CheckoutTTL, err = optDuration("CHECKOUT_TTL", d.CheckoutTTL); err != nil {
		return CheckoutConfig{}, err
	}
	if d.CartTTL, err = optDuration("CART_TTL", d.CartTTL); err != nil {
		return CheckoutConfig{}, err
	}
	if d.ReservationGrace, err = optDuration("RESERVATION_GRACE", d.ReservationGrace); err != nil {
		return CheckoutConfig{}, err
	}
	if d.SweepInterval, err = optDuration("SWEEP_INTERVAL", d.SweepInterval); err != nil {
		return CheckoutConfig{}, err
	}
	if d.MaxItemQuantity, err = optInt64("MAX_ITEM_QUANTITY", d.MaxItemQuantity); err != nil {
		return CheckoutConfig{}, err
	}
	if d.LowStockThreshold, err = optInt64("LOW_STOCK_THRESHOLD", d.LowStockThreshold); err != nil {
		return CheckoutConfig{}, err
	}
	attempts, err := optInt64("RESERVE_MAX_ATTEMPTS", int64(d.ReserveMaxAttempts))
	if err != nil {
		return CheckoutConfig{}, err
	}
	d.ReserveMaxAttempts = int(attempts)
	if d.FreeShippingThreshold, err = optInt64("FREE_SHIPPING_THRESHOLD", d.FreeShippingThreshold); err != nil {
		return CheckoutConfig{}, err
	}
	d.DefaultCurrency = getenvDefault("DEFAULT_CURRENCY", d.DefaultCurrency)

	//範囲チェック
	if d.CheckoutTTL <= 0 || d.CartTTL <= 0 || d.SweepInterval <= 0 {
		return CheckoutConfig{}, fmt.Errorf("CHECKOUT_TTL, CART_TTL and SWEEP_INTERVAL must be positive")
	}
	if d.ReservationGrace < 0 {
		return CheckoutConfig{}, fmt.Errorf("RESERVATION_GRACE must not be negative")
	}
	if d.MaxItemQuantity < 1 {
		return CheckoutConfig{}, fmt.Errorf("MAX_ITEM_QUANTITY must be >= 1")
	}
	if d.ReserveMaxAttempts < 1 {
		return CheckoutConfig{}, fmt.Errorf("RESERVE_MAX_ATTEMPTS must be >= 1")
	}
	if len(d.DefaultCurrency) != 3 {
		return CheckoutConfig{}, fmt.Errorf("DEFAULT_CURRENCY must be 3 letters")
	}

	return d, nil
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func getenvDefault(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func optInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func optDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func optBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be bool: %w", key, err)
	}
	return b, nil
}
