package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	SiteID   string

	DBDriver string
	DBDSN    string

	AuthHMACSecret string
	AdminUser      string
	AdminPassHash  string // bcrypt
	DevLogins      bool

	CORSOrigins []string

	LogMode string
	LogFile string

	OracleBaseURL    string
	OracleAPIKey     string
	OracleModel      string
	OracleTimeout    time.Duration
	OracleMaxRetries int

	FallbackFraction   float64
	GradingConcurrency int
	GradingTimeout     time.Duration

	RedisAddr      string
	OracleCacheTTL time.Duration

	AMQPURL      string
	AMQPExchange string
}

// Load seeds the environment from the given .env files (".env" when none
// are named; missing files are ignored) and then reads it.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	defLog := "dev"
	if mode == ModeOnline {
		defLog = "prod"
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		SiteID:   envOr("SITE_ID", "local"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		AdminUser:      envOr("ADMIN_USER", "admin"),
		AdminPassHash:  os.Getenv("ADMIN_PASS_HASH"),
		DevLogins:      envBool("ENABLE_DEV_LOGINS", mode == ModeOffline),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000"),

		LogMode: envOr("LOG_MODE", defLog),
		LogFile: os.Getenv("LOG_FILE"),

		OracleBaseURL:    envOr("ORACLE_BASE_URL", "https://api.openai.com"),
		OracleAPIKey:     os.Getenv("ORACLE_API_KEY"),
		OracleModel:      envOr("ORACLE_MODEL", "gpt-4o-mini"),
		OracleTimeout:    time.Duration(envInt("ORACLE_TIMEOUT_SECONDS", 30)) * time.Second,
		OracleMaxRetries: envInt("ORACLE_MAX_RETRIES", 2),

		FallbackFraction:   clamp01(envFloat("GRADING_FALLBACK_FRACTION", 0.5)),
		GradingConcurrency: envInt("GRADING_CONCURRENCY", 4),
		GradingTimeout:     time.Duration(envInt("GRADING_TIMEOUT_SECONDS", 300)) * time.Second,

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		OracleCacheTTL: time.Duration(envInt("ORACLE_CACHE_TTL_SECONDS", 7*24*3600)) * time.Second,

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: envOr("AMQP_EXCHANGE", "quizgrade.events"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k))); err == nil {
		return n
	}
	return def
}
func envFloat(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(k)), 64); err == nil {
		return f
	}
	return def
}
func clamp01(f float64) float64 {
	switch {
	case f != f || f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
