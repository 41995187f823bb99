package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment       string
	LogLevel          string
	HTTPAddr          string
	DBDSN             string
	MigrationsEnabled bool

	JWTSecret          string
	CORSAllowedOrigins []string

	StripeSecretKey     string
	StripePublicKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	BusinessTZOffsetHours int
	EvidenceKey           string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	TelegramToken string

	Policy Policy
}

// Policy собирает все бизнес-окна и пороги жизненного цикла бронирования
type Policy struct {
	Currency             string
	MinAnticipation      time.Duration
	RefundBeforeClass    time.Duration
	TeacherConfirmWindow time.Duration
	StudentConfirmWindow time.Duration
	RescheduleExpiry     time.Duration
	RescheduleCutoff     time.Duration
	PayoutDelay          time.Duration
	StudentRefundWindow  time.Duration
	DefaultCommissionPct int64
}

// DefaultPolicy значения по умолчанию, совпадающие с продакшеном
func DefaultPolicy() Policy {
	return Policy{
		Currency:             "mxn",
		MinAnticipation:      time.Hour,
		RefundBeforeClass:    30 * time.Minute,
		TeacherConfirmWindow: 4 * time.Hour,
		StudentConfirmWindow: 5 * time.Minute,
		RescheduleExpiry:     24 * time.Hour,
		RescheduleCutoff:     30 * time.Minute,
		PayoutDelay:          15 * 24 * time.Hour,
		StudentRefundWindow:  24 * time.Hour,
		DefaultCommissionPct: 60,
	}
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	def := DefaultPolicy()

	cfg := &Config{
		Environment:         getEnv("ENV", "development"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DBDSN:               os.Getenv("DB_DSN"),
		MigrationsEnabled:   getBool("MIGRATIONS_ENABLED", true),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		CORSAllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripePublicKey:     os.Getenv("STRIPE_PUBLIC_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
		EvidenceKey:         os.Getenv("EVIDENCE_KEY"),
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            getInt("SMTP_PORT", 587),
		SMTPUsername:        os.Getenv("SMTP_USERNAME"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:            getEnv("SMTP_FROM", "no-reply@onlycation.mx"),
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),

		BusinessTZOffsetHours: getInt("BUSINESS_TZ_OFFSET_HOURS", -6),

		Policy: Policy{
			Currency:             strings.ToLower(getEnv("CURRENCY", def.Currency)),
			MinAnticipation:      getMinutes("MIN_ANTICIPATION_MIN", def.MinAnticipation),
			RefundBeforeClass:    getMinutes("REFUND_BEFORE_CLASS_MIN", def.RefundBeforeClass),
			TeacherConfirmWindow: getMinutes("TEACHER_CONFIRM_WINDOW_MIN", def.TeacherConfirmWindow),
			StudentConfirmWindow: getMinutes("STUDENT_CONFIRM_WINDOW_MIN", def.StudentConfirmWindow),
			RescheduleExpiry:     getHours("RESCHEDULE_EXPIRY_HOURS", def.RescheduleExpiry),
			RescheduleCutoff:     getMinutes("RESCHEDULE_CUTOFF_MIN", def.RescheduleCutoff),
			PayoutDelay:          getDays("PAYOUT_DELAY_DAYS", def.PayoutDelay),
			StudentRefundWindow:  getHours("STUDENT_REFUND_WINDOW_HOURS", def.StudentRefundWindow),
			DefaultCommissionPct: int64(getInt("DEFAULT_COMMISSION_PCT", int(def.DefaultCommissionPct))),
		},
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}
	if cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required but not set")
	}
	if cfg.EvidenceKey == "" {
		return nil, fmt.Errorf("EVIDENCE_KEY is required but not set")
	}
	if cfg.Policy.DefaultCommissionPct < 0 || cfg.Policy.DefaultCommissionPct > 100 {
		return nil, fmt.Errorf("DEFAULT_COMMISSION_PCT must be within 0..100")
	}

	log.Printf("Config loaded (env=%s, addr=%s)\n", cfg.Environment, cfg.HTTPAddr)

	return cfg, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// EmailEnabled true когда настроен SMTP
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using %d\n", key, v, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getMinutes(key string, fallback time.Duration) time.Duration {
	return time.Duration(getInt(key, int(fallback/time.Minute))) * time.Minute
}

func getHours(key string, fallback time.Duration) time.Duration {
	return time.Duration(getInt(key, int(fallback/time.Hour))) * time.Hour
}

func getDays(key string, fallback time.Duration) time.Duration {
	return time.Duration(getInt(key, int(fallback/(24*time.Hour)))) * 24 * time.Hour
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
