package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// DatabaseConfig holds the record store connection settings.
type DatabaseConfig struct {
	Driver        string // database/sql driver name: "postgres", "mysql" or "sqlite"
	URL           string
	MaxOpenConns  int
	MaxIdleConns  int
	PendingSource string // View or table the pending records are read from
	RecordsTable  string // Table the sent flag is written to
}

// SMTPConfig holds the outbound mail transport settings.
type SMTPConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	Secure             bool // Implicit TLS; STARTTLS is used when false and offered by the server
	InsecureSkipVerify bool
}

// MailConfig holds the settings applied to every outgoing message.
type MailConfig struct {
	SenderAddress string
	SenderName    string
	SubjectPrefix string
	Cc            []string
}

// TelegramConfig enables run failure alerts when Token is set.
type TelegramConfig struct {
	Token       string
	AdminChatID int64
}

// AppConfig holds all configuration for the application
type AppConfig struct {
	Database         DatabaseConfig
	SMTP             SMTPConfig
	Mail             MailConfig
	Telegram         TelegramConfig
	CronSpecDispatch string
	RunTimeout       time.Duration
	MetricsAddr      string
	LogLevel         string
	Environment      string
}

const (
	defaultSenderName    = "Performance Eficiencia y Mejora"
	defaultSubjectPrefix = "Novedad: "
	defaultPendingSource = "lst_novedades_email_enviar"
	defaultRecordsTable  = "pem_novedades"
)

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.Database.Driver = strings.ToLower(getenv("DB_DRIVER"))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	switch cfg.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	cfg.Database.URL = getenv("DATABASE_URL")
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	if cfg.Database.MaxOpenConns, err = intOr(getenv, "DB_MAX_OPEN_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdleConns, err = intOr(getenv, "DB_MAX_IDLE_CONNS", 10); err != nil {
		return nil, err
	}
	cfg.Database.PendingSource = stringOr(getenv, "DB_PENDING_SOURCE", defaultPendingSource)
	cfg.Database.RecordsTable = stringOr(getenv, "DB_RECORDS_TABLE", defaultRecordsTable)

	cfg.SMTP.Host = getenv("SMTP_HOST")
	if cfg.SMTP.Host == "" {
		return nil, fmt.Errorf("SMTP_HOST is not set")
	}
	if cfg.SMTP.Port, err = intOr(getenv, "SMTP_PORT", 587); err != nil {
		return nil, err
	}
	cfg.SMTP.User = getenv("SMTP_USER")
	cfg.SMTP.Password = getenv("SMTP_PASSWORD")
	if cfg.SMTP.Secure, err = boolOr(getenv, "SMTP_SECURE", false); err != nil {
		return nil, err
	}
	if cfg.SMTP.InsecureSkipVerify, err = boolOr(getenv, "SMTP_INSECURE_SKIP_VERIFY", false); err != nil {
		return nil, err
	}

	cfg.Mail.SenderAddress = stringOr(getenv, "MAIL_SENDER_ADDRESS", cfg.SMTP.User)
	if cfg.Mail.SenderAddress == "" {
		return nil, fmt.Errorf("MAIL_SENDER_ADDRESS is not set and SMTP_USER is empty")
	}
	cfg.Mail.SenderName = stringOr(getenv, "MAIL_SENDER_NAME", defaultSenderName)
	cfg.Mail.SubjectPrefix = defaultSubjectPrefix
	if v := getenv("MAIL_SUBJECT_PREFIX"); v != "" {
		cfg.Mail.SubjectPrefix = v // Not trimmed, the prefix usually ends with a space
	}
	cfg.Mail.Cc = splitList(getenv("MAIL_CC"))

	cfg.Telegram.Token = getenv("TELEGRAM_TOKEN")
	if cfg.Telegram.Token != "" {
		adminIDStr := getenv("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
		}
		cfg.Telegram.AdminChatID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.CronSpecDispatch = stringOr(getenv, "CRON_SPEC_DISPATCH", "* * * * *") // Default: every minute
	if _, err := cron.ParseStandard(cfg.CronSpecDispatch); err != nil {
		return nil, fmt.Errorf("invalid CRON_SPEC_DISPATCH %q: %w", cfg.CronSpecDispatch, err)
	}

	cfg.RunTimeout = 5 * time.Minute
	if v := getenv("RUN_TIMEOUT"); v != "" {
		cfg.RunTimeout, err = time.ParseDuration(v)
		if err != nil || cfg.RunTimeout <= 0 {
			return nil, fmt.Errorf("invalid RUN_TIMEOUT %q", v)
		}
	}

	cfg.MetricsAddr = getenv("METRICS_ADDR")

	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}

func stringOr(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func intOr(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func boolOr(getenv func(string) string, key string, def bool) (bool, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
