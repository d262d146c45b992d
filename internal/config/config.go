package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	Env      string
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（服务端原子入流，Relay 异步转 Kafka）
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	// 上游签发 JWT 的共享密钥
	JWTSecret string

	// 结算/发起支付接口限流
	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration

	// 支付网关接入参数。HashSecret 只存在服务端，绝不下发。
	VNPTmnCode    string
	VNPHashSecret string
	VNPPayURL     string
	VNPReturnURL  string
	// GatewayExpire 网关支付尝试有效期
	GatewayExpire time.Duration
	// CallbackCacheTTL 回调结果码缓存时长
	CallbackCacheTTL time.Duration
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "bookstore.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "bookstore-order-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "bookstore-notification"),
		OrderEventStream:   getEnv("ORDER_EVENT_STREAM", "bookstore:order_events"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "bookstore-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "bookstore-relay-1"),
		JWTSecret:          getEnv("JWT_SECRET", "dev-jwt-secret"),
		CheckoutRateLimit:  60,
		CheckoutRateWindow: time.Minute,
		VNPTmnCode:         getEnv("VNP_TMN_CODE", ""),
		VNPHashSecret:      getEnv("VNP_HASH_SECRET", ""),
		VNPPayURL:          getEnv("VNP_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
		VNPReturnURL:       getEnv("VNP_RETURN_URL", "http://localhost:8080/api/payments/vnpay/return"),
		GatewayExpire:      15 * time.Minute,
		CallbackCacheTTL:   24 * time.Hour,
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("CHECKOUT_RATE_LIMIT", cfg.CheckoutRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_RATE_LIMIT must be > 0")
	}
	cfg.CheckoutRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("CHECKOUT_RATE_WINDOW_SEC", int(cfg.CheckoutRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_RATE_WINDOW_SEC must be > 0")
	}
	cfg.CheckoutRateWindow = time.Duration(rateWindowSec) * time.Second

	expireMin, err := getEnvInt("GATEWAY_EXPIRE_MIN", int(cfg.GatewayExpire.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid GATEWAY_EXPIRE_MIN: %w", err)
	}
	if expireMin <= 0 {
		return AppConfig{}, fmt.Errorf("GATEWAY_EXPIRE_MIN must be > 0")
	}
	cfg.GatewayExpire = time.Duration(expireMin) * time.Minute

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.OrderEventStream == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM must not be empty")
	}
	if cfg.OrderEventGroup == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
	}
	if cfg.OrderEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_CONSUMER must not be empty")
	}
	if cfg.JWTSecret == "" {
		return AppConfig{}, fmt.Errorf("JWT_SECRET must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
