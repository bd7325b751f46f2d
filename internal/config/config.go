package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv    string
	Addr      string
	DbDriver  string
	DbDsn     string
	DbLogMode bool
	JwtSecret string
	QrSecret  string
	QrTTL     time.Duration

	CheckInOpensBefore time.Duration
	CheckInClosesAfter time.Duration

	SummaryCacheTTL    time.Duration
	ReportCacheTTL     time.Duration
	AnalyticsCacheTTL  time.Duration
	UserCacheTTL       time.Duration
	CacheSweepInterval time.Duration

	BulkConcurrency int
	BulkThrottle    time.Duration

	MailDriver     string
	MailFrom       string
	SmtpHost       string
	SmtpPort       int
	SmtpUser       string
	SmtpPass       string
	SendgridAPIKey string

	RollbarToken      string
	AllowedOriginsRaw string
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("APP_ADDR", ":8080")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("DB_LOG_MODE", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("QR_SECRET", "")
	v.SetDefault("QR_TTL", 24*time.Hour)
	v.SetDefault("CHECKIN_OPENS_BEFORE", 2*time.Hour)
	v.SetDefault("CHECKIN_CLOSES_AFTER", 1*time.Hour)
	v.SetDefault("CACHE_SUMMARY_TTL", 5*time.Minute)
	v.SetDefault("CACHE_REPORT_TTL", 15*time.Minute)
	v.SetDefault("CACHE_ANALYTICS_TTL", 15*time.Minute)
	v.SetDefault("CACHE_USER_TTL", 10*time.Minute)
	v.SetDefault("CACHE_SWEEP_INTERVAL", 5*time.Minute)
	v.SetDefault("BULK_CONCURRENCY", 1)
	v.SetDefault("BULK_THROTTLE", 100*time.Millisecond)
	v.SetDefault("MAIL_DRIVER", "console")
	v.SetDefault("MAIL_FROM", "Event Attendance <noreply@localhost>")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("ROLLBAR_TOKEN", "")
	v.SetDefault("ALLOWED_ORIGINS", "")
}

func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	defaults(v)
	v.AutomaticEnv()

	cfg := Config{
		AppEnv:             v.GetString("APP_ENV"),
		Addr:               v.GetString("APP_ADDR"),
		DbDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		DbDsn:              v.GetString("DB_DSN"),
		DbLogMode:          v.GetBool("DB_LOG_MODE"),
		JwtSecret:          v.GetString("JWT_SECRET"),
		QrSecret:           v.GetString("QR_SECRET"),
		QrTTL:              v.GetDuration("QR_TTL"),
		CheckInOpensBefore: v.GetDuration("CHECKIN_OPENS_BEFORE"),
		CheckInClosesAfter: v.GetDuration("CHECKIN_CLOSES_AFTER"),
		SummaryCacheTTL:    v.GetDuration("CACHE_SUMMARY_TTL"),
		ReportCacheTTL:     v.GetDuration("CACHE_REPORT_TTL"),
		AnalyticsCacheTTL:  v.GetDuration("CACHE_ANALYTICS_TTL"),
		UserCacheTTL:       v.GetDuration("CACHE_USER_TTL"),
		CacheSweepInterval: v.GetDuration("CACHE_SWEEP_INTERVAL"),
		BulkConcurrency:    v.GetInt("BULK_CONCURRENCY"),
		BulkThrottle:       v.GetDuration("BULK_THROTTLE"),
		MailDriver:         strings.ToLower(v.GetString("MAIL_DRIVER")),
		MailFrom:           v.GetString("MAIL_FROM"),
		SmtpHost:           v.GetString("SMTP_HOST"),
		SmtpPort:           v.GetInt("SMTP_PORT"),
		SmtpUser:           v.GetString("SMTP_USER"),
		SmtpPass:           v.GetString("SMTP_PASS"),
		SendgridAPIKey:     v.GetString("SENDGRID_API_KEY"),
		RollbarToken:       v.GetString("ROLLBAR_TOKEN"),
		AllowedOriginsRaw:  v.GetString("ALLOWED_ORIGINS"),
	}
	if cfg.QrSecret == "" {
		cfg.QrSecret = cfg.JwtSecret
	}

	missing := []string{}
	if cfg.DbDsn == "" && cfg.DbDriver != "memory" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.JwtSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	switch cfg.MailDriver {
	case "smtp":
		if cfg.SmtpHost == "" {
			missing = append(missing, "SMTP_HOST")
		}
		if cfg.SmtpUser == "" {
			missing = append(missing, "SMTP_USER")
		}
		if cfg.SmtpPass == "" {
			missing = append(missing, "SMTP_PASS")
		}
	case "sendgrid":
		if cfg.SendgridAPIKey == "" {
			missing = append(missing, "SENDGRID_API_KEY")
		}
	}

	if len(missing) > 0 {
		return cfg, errors.New("missing env: " + strings.Join(missing, ", "))
	}

	switch cfg.DbDriver {
	case "mysql", "postgres", "memory":
	default:
		return cfg, errors.New("unsupported DB_DRIVER: " + cfg.DbDriver)
	}
	switch cfg.MailDriver {
	case "console", "smtp", "sendgrid":
	default:
		return cfg, errors.New("unsupported MAIL_DRIVER: " + cfg.MailDriver)
	}
	if cfg.CheckInOpensBefore < 0 || cfg.CheckInClosesAfter < 0 {
		return cfg, errors.New("check-in window offsets must not be negative")
	}
	if cfg.CacheSweepInterval <= 0 {
		return cfg, errors.New("CACHE_SWEEP_INTERVAL must be positive")
	}
	if cfg.BulkConcurrency < 1 {
		cfg.BulkConcurrency = 1
	}

	return cfg, nil
}

// AllowedOrigins is ALLOWED_ORIGINS split on commas. Empty means any origin.
func (c Config) AllowedOrigins() []string {
	origins := []string{}
	for _, origin := range strings.Split(c.AllowedOriginsRaw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
