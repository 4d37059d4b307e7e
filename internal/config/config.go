package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"billing/internal/logger"
	"billing/internal/metrics"
)

type Config struct {
	// Google Sheets Configuration
	GoogleSheetID      string
	GoogleSheetURL     string
	GoogleSheetsAPIKey string
	BillingRange       string
	ClientRange        string
	SheetTimezone      string

	// Assistant (OpenAI-compatible chat completion) Configuration
	AssistantAPIKey      string
	AssistantBaseURL     string
	AssistantModel       string
	AssistantTemperature float32
	AssistantMaxTokens   int

	// HTTP API Configuration
	HTTPAddr           string
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	DatabasePath       string
	TokenSecret        string
	TokenIssuer        string
	TokenTTL           time.Duration
	MinPasswordLength  int

	// Onboarding Email Configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	AppURL       string

	// Portfolio rating coefficients
	RatingShareWeight   float64
	RatingOverdueWeight float64

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		GoogleSheetID:        getEnv("GOOGLE_SHEET_ID", ""),
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetsAPIKey:   getEnv("GOOGLE_SHEETS_API_KEY", ""),
		BillingRange:         getEnv("BILLING_RANGE", "BaseReceber!A2:AB"),
		ClientRange:          getEnv("CLIENT_RANGE", "BaseClientes!A2:G"),
		SheetTimezone:        getEnv("SHEET_TIMEZONE", "America/Sao_Paulo"),
		AssistantAPIKey:      getEnv("ASSISTANT_API_KEY", ""),
		AssistantBaseURL:     getEnv("ASSISTANT_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
		AssistantModel:       getEnv("ASSISTANT_MODEL", "gemini-2.0-flash"),
		AssistantTemperature: float32(parseFloatEnv("ASSISTANT_TEMPERATURE", 0.3)),
		AssistantMaxTokens:   parseIntEnv("ASSISTANT_MAX_TOKENS", 1024),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:      parseDurationEnv("SHUTDOWN_TIMEOUT", 20*time.Second),
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DatabasePath:         getEnv("DATABASE_PATH", "billing.db"),
		TokenSecret:          getEnv("TOKEN_SECRET", ""),
		TokenIssuer:          getEnv("TOKEN_ISSUER", "billing-dashboard"),
		TokenTTL:             parseDurationEnv("TOKEN_TTL", time.Hour),
		MinPasswordLength:    parseIntEnv("MIN_PASSWORD_LENGTH", 6),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             parseIntEnv("SMTP_PORT", 587),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		MailFrom:             getEnv("MAIL_FROM", ""),
		AppURL:               getEnv("APP_URL", "http://localhost:3000"),
		RatingShareWeight:    parseFloatEnv("RATING_SHARE_WEIGHT", metrics.DefaultRatingConfig().ShareWeight),
		RatingOverdueWeight:  parseFloatEnv("RATING_OVERDUE_WEIGHT", metrics.DefaultRatingConfig().OverdueWeight),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validate checks the settings every command depends on. Command specific
// requirements are checked by the Validate* methods.
func (c *Config) validate() error {
	if c.MinPasswordLength < 6 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be at least 6")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

// ValidateSheets checks the settings needed to read the billing spreadsheet
func (c *Config) ValidateSheets() error {
	if c.GoogleSheetID == "" && c.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_ID or GOOGLE_SHEET_URL is required")
	}
	if c.BillingRange == "" {
		return fmt.Errorf("BILLING_RANGE is required")
	}
	return nil
}

// ValidateAssistant checks the settings needed to call the chat endpoint
func (c *Config) ValidateAssistant() error {
	if c.AssistantAPIKey == "" {
		return fmt.Errorf("ASSISTANT_API_KEY is required")
	}
	if c.AssistantModel == "" {
		return fmt.Errorf("ASSISTANT_MODEL is required")
	}
	return nil
}

// ValidateServe checks the settings needed by the HTTP API
func (c *Config) ValidateServe() error {
	if c.TokenSecret == "" {
		return fmt.Errorf("TOKEN_SECRET is required")
	}
	if len(c.TokenSecret) < 32 {
		return fmt.Errorf("TOKEN_SECRET must be at least 32 characters")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return c.ValidateSheets()
}

// MailEnabled reports whether onboarding emails can be sent
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.MailFrom != ""
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// GetRatingConfig returns the portfolio rating coefficients
func (c *Config) GetRatingConfig() metrics.RatingConfig {
	rc := metrics.DefaultRatingConfig()
	rc.ShareWeight = c.RatingShareWeight
	rc.OverdueWeight = c.RatingOverdueWeight
	return rc
}

// GetSheetLocation returns the time zone the sheet dates are written in
func (c *Config) GetSheetLocation() (*time.Location, error) {
	if c.SheetTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.SheetTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SHEET_TIMEZONE %q: %w", c.SheetTimezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func parseFloatEnv(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
