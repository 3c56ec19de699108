package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting of the server and the tablectl CLI.
// Values come from config.yaml first and are overridden by the environment.
type Config struct {
	Port    string `yaml:"PORT"`
	GinMode string `yaml:"GIN_MODE"`

	LogFormat string `yaml:"LOG_FORMAT"`
	LogLevel  string `yaml:"LOG_LEVEL"`

	DBDriver   string `yaml:"DB_DRIVER"`
	DBDSN      string `yaml:"DB_DSN"`
	DBHost     string `yaml:"DB_HOST"`
	DBPort     string `yaml:"DB_PORT"`
	DBUser     string `yaml:"DB_USER"`
	DBPassword string `yaml:"DB_PASSWORD"`
	DBName     string `yaml:"DB_NAME"`

	JWTSecret     string `yaml:"JWT_SECRET"`
	PublicBaseURL string `yaml:"PUBLIC_BASE_URL"`

	SessionTimeout     time.Duration `yaml:"SESSION_TIMEOUT"`
	SweepInterval      time.Duration `yaml:"SWEEP_INTERVAL"`
	ChangePollInterval time.Duration `yaml:"CHANGE_POLL_INTERVAL"`
	SecureCookies      bool          `yaml:"SECURE_COOKIES"`

	CORSOrigins []string `yaml:"CORS_ORIGINS"`
	RateLimit   int      `yaml:"RATE_LIMIT"`

	MidtransServerKey string `yaml:"MIDTRANS_SERVER_KEY"`
	MidtransIsProd    bool   `yaml:"MIDTRANS_IS_PROD"`

	SMTPHost     string `yaml:"SMTP_HOST"`
	SMTPPort     int    `yaml:"SMTP_PORT"`
	SMTPUser     string `yaml:"SMTP_AUTH_EMAIL"`
	SMTPPassword string `yaml:"SMTP_AUTH_PASSWORD"`
	SMTPSender   string `yaml:"SMTP_SENDER_NAME"`

	ReceiptBucket string `yaml:"AWS_S3_BUCKET"`
	AWSRegion     string `yaml:"AWS_S3_REGION"`
	AWSAccessKey  string `yaml:"AWS_ACCESS_KEY"`
	AWSSecretKey  string `yaml:"AWS_SECRET_KEY"`
}

// Default returns the settings used when neither a file nor the environment set a value.
func Default() Config {
	return Config{
		Port:               "8080",
		GinMode:            "debug",
		DBDriver:           "sqlite",
		DBDSN:              "qr_restaurant.db",
		PublicBaseURL:      "http://localhost:8080",
		SessionTimeout:     24 * time.Hour,
		SweepInterval:      5 * time.Minute,
		ChangePollInterval: 500 * time.Millisecond,
		CORSOrigins:        []string{"http://127.0.0.1:5500", "http://localhost:3000"},
		RateLimit:          50,
		SMTPPort:           587,
		AWSRegion:          "ap-southeast-1",
	}
}

// Load reads .env (if present), then the YAML file at path (if present), then
// the process environment.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		path = "config.yaml"
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("GIN_MODE", &cfg.GinMode)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("DB_DRIVER", &cfg.DBDriver)
	str("DB_DSN", &cfg.DBDSN)
	str("DB_HOST", &cfg.DBHost)
	str("DB_PORT", &cfg.DBPort)
	str("DB_USER", &cfg.DBUser)
	str("DB_PASSWORD", &cfg.DBPassword)
	str("DB_NAME", &cfg.DBName)
	str("JWT_SECRET", &cfg.JWTSecret)
	str("PUBLIC_BASE_URL", &cfg.PublicBaseURL)
	str("MIDTRANS_SERVER_KEY", &cfg.MidtransServerKey)
	str("SMTP_HOST", &cfg.SMTPHost)
	str("SMTP_AUTH_EMAIL", &cfg.SMTPUser)
	str("SMTP_AUTH_PASSWORD", &cfg.SMTPPassword)
	str("SMTP_SENDER_NAME", &cfg.SMTPSender)
	str("AWS_S3_BUCKET", &cfg.ReceiptBucket)
	str("AWS_S3_REGION", &cfg.AWSRegion)
	str("AWS_ACCESS_KEY", &cfg.AWSAccessKey)
	str("AWS_SECRET_KEY", &cfg.AWSSecretKey)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}

	durations := map[string]*time.Duration{
		"SESSION_TIMEOUT":      &cfg.SessionTimeout,
		"SWEEP_INTERVAL":       &cfg.SweepInterval,
		"CHANGE_POLL_INTERVAL": &cfg.ChangePollInterval,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"RATE_LIMIT": &cfg.RateLimit,
		"SMTP_PORT":  &cfg.SMTPPort,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"MIDTRANS_IS_PROD": &cfg.MidtransIsProd,
		"SECURE_COOKIES":   &cfg.SecureCookies,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	if c.SweepInterval <= 0 || c.ChangePollInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL and CHANGE_POLL_INTERVAL must be positive")
	}
	return nil
}
