package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	awspkg "checkout-service/pkg/aws"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

// Config holds all configuration for the checkout service.
type Config struct {
	Env         string
	Port        string
	ServiceName string

	StoreDriver      string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	MongoURI         string
	MongoDB          string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PayosClientID    string
	PayosAPIKey      string
	PayosChecksumKey string
	PayosBaseURL     string
	PayosReturnURL   string
	PayosCancelURL   string
	PayosTimeout     time.Duration

	BankID          string
	BankAccountNo   string
	BankAccountName string
	BankQRTemplate  string

	WalletReceivingAddress string
	WalletTokenAddress     string
	WalletTokenDecimals    int32
	WalletExchangeRate     string

	JWTSecret string

	PaymentSNSTopicARN   string
	NotificationQueueURL string
	KafkaBrokers         []string
	KafkaTopic           string
	SMTPHost             string
	SMTPPort             string
	SMTPUser             string
	SMTPPassword         string
	SMTPFrom             string
	NotifyQueueSize      int
	NotifyWorkers        int
	NotifyIdempotencyTTL time.Duration
	WebhookLockTTL       time.Duration

	MetricsEnabled     bool
	MetricsNamespace   string
	CloudWatchLogGroup string
	CORSOrigins        []string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
}

// SecretSource is the part of the Secrets Manager client LoadConfig needs.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig reads configuration from the environment (and .env when
// present), applies the Secrets Manager override when AWS_USE_SECRETS=true,
// then validates.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := FromEnv()

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if awsCfg, err := awspkg.LoadAWSConfig(ctx); err == nil {
			cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables with defaults.
func FromEnv() *Config {
	return &Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8094"),
		ServiceName: getEnv("SERVICE_NAME", "checkout-service"),

		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Ho_Chi_Minh"),
		MongoURI:         os.Getenv("MONGO_URL"),
		MongoDB:          getEnv("MONGO_DB", "checkout"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		PayosClientID:    os.Getenv("PAYOS_CLIENT_ID"),
		PayosAPIKey:      os.Getenv("PAYOS_API_KEY"),
		PayosChecksumKey: os.Getenv("PAYOS_CHECKSUM_KEY"),
		PayosBaseURL:     getEnv("PAYOS_BASE_URL", "https://api-merchant.payos.vn"),
		PayosReturnURL:   os.Getenv("PAYOS_RETURN_URL"),
		PayosCancelURL:   os.Getenv("PAYOS_CANCEL_URL"),
		PayosTimeout:     getEnvDuration("PAYOS_TIMEOUT", 10*time.Second),

		BankID:          os.Getenv("BANK_ID"),
		BankAccountNo:   os.Getenv("BANK_ACCOUNT_NO"),
		BankAccountName: os.Getenv("BANK_ACCOUNT_NAME"),
		BankQRTemplate:  getEnv("BANK_QR_TEMPLATE", "compact2"),

		WalletReceivingAddress: os.Getenv("WALLET_RECEIVING_ADDRESS"),
		WalletTokenAddress:     os.Getenv("WALLET_TOKEN_ADDRESS"),
		WalletTokenDecimals:    int32(getEnvInt("WALLET_TOKEN_DECIMALS", 18)),
		WalletExchangeRate:     getEnv("WALLET_EXCHANGE_RATE", "1"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		PaymentSNSTopicARN:   os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
		NotificationQueueURL: os.Getenv("NOTIFICATION_QUEUE_URL"),
		KafkaBrokers:         splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:           getEnv("KAFKA_PAYMENT_TOPIC", "checkout-payment-events"),
		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPPort:             getEnv("SMTP_PORT", "587"),
		SMTPUser:             os.Getenv("SMTP_USER"),
		SMTPPassword:         os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:             os.Getenv("SMTP_FROM"),
		NotifyQueueSize:      getEnvInt("NOTIFY_QUEUE_SIZE", 256),
		NotifyWorkers:        getEnvInt("NOTIFY_WORKERS", 4),
		NotifyIdempotencyTTL: getEnvDuration("NOTIFY_IDEMPOTENCY_TTL", 24*time.Hour),
		WebhookLockTTL:       getEnvDuration("WEBHOOK_LOCK_TTL", 10*time.Second),

		MetricsEnabled:     os.Getenv("METRICS_ENABLED") == "true",
		MetricsNamespace:   getEnv("METRICS_NAMESPACE", "ECommerce/Checkout"),
		CloudWatchLogGroup: os.Getenv("CLOUDWATCH_LOG_GROUP"),
		CORSOrigins:        splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
	}
}

// ApplySecrets overrides DB and PayOS credentials with values found in
// Secrets Manager. Missing secrets leave the env values in place.
func (c *Config) ApplySecrets(ctx context.Context, sm SecretSource) {
	if m, err := sm.GetSecretMap(ctx, "checkout/DB_CREDENTIALS"); err == nil {
		override(&c.PostgresUser, m, "POSTGRES_USER")
		override(&c.PostgresPassword, m, "POSTGRES_PASSWORD")
		override(&c.PostgresDB, m, "POSTGRES_DB")
		override(&c.PostgresHost, m, "POSTGRES_HOST")
		override(&c.PostgresPort, m, "POSTGRES_PORT")
		override(&c.MongoURI, m, "MONGO_URL")
	}
	if m, err := sm.GetSecretMap(ctx, "checkout/PAYOS_CREDENTIALS"); err == nil {
		override(&c.PayosClientID, m, "PAYOS_CLIENT_ID")
		override(&c.PayosAPIKey, m, "PAYOS_API_KEY")
		override(&c.PayosChecksumKey, m, "PAYOS_CHECKSUM_KEY")
	}
	if m, err := sm.GetSecretMap(ctx, "checkout/JWT_SECRET"); err == nil {
		override(&c.JWTSecret, m, "JWT_SECRET")
	}
}

// Validate fails fast on settings the service cannot run without.
func (c *Config) Validate() error {
	var missing []string

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
			missing = append(missing, "POSTGRES_USER/POSTGRES_PASSWORD/POSTGRES_DB/POSTGRES_HOST")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			missing = append(missing, "MONGO_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.PayosClientID == "" {
		missing = append(missing, "PAYOS_CLIENT_ID")
	}
	if c.PayosAPIKey == "" {
		missing = append(missing, "PAYOS_API_KEY")
	}
	if c.PayosChecksumKey == "" {
		missing = append(missing, "PAYOS_CHECKSUM_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func override(dst *string, m map[string]string, key string) {
	if v, ok := m[key]; ok && v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
