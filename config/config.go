package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port        string
	Environment string

	DBDriver   string // postgres, mysql or sqlite
	DBDSN      string // overrides the discrete DB_* fields when set
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	JWTKey           string
	JWTExpireMinutes int
	SaltRound        int

	UploadDir            string
	MaxUploadBytes       int
	MaxCreateAttachments int
	MaxEditAttachments   int // 0 means no limit

	EmailVerificationExpireMinutes int
	PasswordResetExpireMinutes     int
	ClientURL                      string
	AllowedEmailDomains            []string
	Courses                        []string

	MailProvider   string // smtp, sendgrid or log
	EmailSender    string
	Password       string // SMTP Password
	SMTPHost       string
	SMTPPort       string
	SendGridAPIKey string

	IPFSApiURL       string
	IPFSGatewayURL   string
	LedgerGatewayURL string
	LedgerAPIKey     string

	SweepSchedule string
}

const defaultJWTKey = "defaultSecret"

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "5000"),
		Environment: getEnv("APP_ENV", "development"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:      getEnv("DB_DSN", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "certportal.db"),
		DBPort:     getEnv("DB_PORT", "5432"),

		JWTKey:           getEnv("JWT_SECRET_KEY", defaultJWTKey),
		JWTExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 30),
		SaltRound:        getEnvInt("SALT_ROUND", 10),

		UploadDir:            getEnv("UPLOAD_DIR", "uploads/certifications"),
		MaxUploadBytes:       getEnvInt("MAX_UPLOAD_BYTES", 1<<20),
		MaxCreateAttachments: getEnvInt("MAX_CREATE_ATTACHMENTS", 2),
		MaxEditAttachments:   getEnvInt("MAX_EDIT_ATTACHMENTS", 0),

		EmailVerificationExpireMinutes: getEnvInt("EMAIL_VERIFICATION_EXPIRE_MINUTES", 10),
		PasswordResetExpireMinutes:     getEnvInt("PASSWORD_RESET_EXPIRE_MINUTES", 10),
		ClientURL:                      getEnv("CLIENT_URL", "http://localhost:5173"),
		AllowedEmailDomains:            getEnvList("ALLOWED_EMAIL_DOMAINS", nil),
		Courses:                        getEnvList("COURSES", []string{"BE IT", "BE Computer", "BE Software", "BCA"}),

		MailProvider:   strings.ToLower(getEnv("MAIL_PROVIDER", "log")),
		EmailSender:    getEnv("EMAIL_SENDER", ""),
		Password:       getEnv("PASSWORD", ""),
		SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:       getEnv("SMTP_PORT", "587"),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		IPFSApiURL:       getEnv("IPFS_API_URL", "http://localhost:5001"),
		IPFSGatewayURL:   getEnv("IPFS_GATEWAY_URL", "https://ipfs.io/ipfs/"),
		LedgerGatewayURL: getEnv("LEDGER_GATEWAY_URL", ""),
		LedgerAPIKey:     getEnv("LEDGER_API_KEY", ""),

		SweepSchedule: getEnv("SWEEP_SCHEDULE", "@hourly"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.JWTKey == defaultJWTKey {
		if c.IsProduction() {
			return errors.New("config: JWT_SECRET_KEY must be set in production")
		}
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}

	switch c.MailProvider {
	case "smtp", "sendgrid", "log":
	default:
		return fmt.Errorf("config: unsupported MAIL_PROVIDER %q", c.MailProvider)
	}

	if c.MaxCreateAttachments < 1 {
		return errors.New("config: MAX_CREATE_ATTACHMENTS must be at least 1")
	}
	if c.MaxEditAttachments < 0 {
		return errors.New("config: MAX_EDIT_ATTACHMENTS cannot be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
