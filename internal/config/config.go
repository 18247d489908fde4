package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type Config struct {
	// HTTP Server
	Port               string
	CORSAllowedOrigins []string
	RateLimitRPM       int

	// Logging
	LogLevel  string
	LogFormat string

	// Airtable. Missing identifiers only disable the Airtable routes.
	AirtableBaseID         string
	AirtableTableName      string
	AirtablePAT            string
	AirtableAPIURL         string
	AirtableDateField      string
	AirtableInclusiveStart bool
	AirtableMaxPages       int

	// Google Sheets
	SheetsBackend         string
	SheetsDataDir         string
	GoogleSheetID         string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Upstream fetches
	FetchMaxAttempts int
	FetchBaseDelay   time.Duration
	FetchTimeout     time.Duration

	// Audit sinks, disabled when empty
	AuditDBPath  string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8001"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPM:       getEnvInt("RATE_LIMIT_RPM", 120),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		AirtableBaseID:         getEnv("AIRTABLE_BASE_ID", ""),
		AirtableTableName:      getEnv("AIRTABLE_TABLE_NAME", ""),
		AirtablePAT:            getEnv("AIRTABLE_PAT", ""),
		AirtableAPIURL:         getEnv("AIRTABLE_API_URL", "https://api.airtable.com/v0"),
		AirtableDateField:      getEnv("AIRTABLE_DATE_FIELD", "Date"),
		AirtableInclusiveStart: getEnvBool("AIRTABLE_INCLUSIVE_START", false),
		AirtableMaxPages:       getEnvInt("AIRTABLE_MAX_PAGES", 1000),

		SheetsBackend:         strings.ToLower(getEnv("SHEETS_BACKEND", "google")),
		SheetsDataDir:         getEnv("SHEETS_DATA_DIR", "./data"),
		GoogleSheetID:         getEnv("GOOGLE_SHEET_ID", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),

		FetchMaxAttempts: getEnvInt("FETCH_MAX_ATTEMPTS", 3),
		FetchBaseDelay:   getEnvDuration("FETCH_BASE_DELAY", time.Second),
		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 30*time.Second),

		AuditDBPath:  getEnv("AUDIT_DB_PATH", ""),
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ipvops"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "fetch_events"),
	}

	return cfg
}

// Validate checks process-level settings. Per-source credentials are not
// checked here: a source without credentials answers its routes with a
// configuration error instead of stopping the server.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.RateLimitRPM, validation.Min(0), validation.Max(100000)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.AirtableAPIURL, validation.Required, is.URL),
		validation.Field(&c.AirtableMaxPages, validation.Min(1)),
		validation.Field(&c.SheetsBackend, validation.Required, validation.In("google", "memory")),
		validation.Field(&c.SheetsDataDir, validation.When(c.SheetsBackend == "memory", validation.Required)),
		validation.Field(&c.FetchMaxAttempts, validation.Min(1), validation.Max(10)),
		validation.Field(&c.FetchBaseDelay, validation.Min(time.Millisecond), validation.Max(time.Minute)),
		validation.Field(&c.FetchTimeout, validation.Min(time.Second), validation.Max(10*time.Minute)),
		validation.Field(&c.AMQPURL, validation.By(amqpURL)),
		validation.Field(&c.AMQPExchange, validation.When(c.AMQPURL != "", validation.Required)),
		validation.Field(&c.AMQPQueue, validation.When(c.AMQPURL != "", validation.Required)),
	)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// AirtableConfigured reports whether all Airtable identifiers are present.
func (c *Config) AirtableConfigured() bool {
	return c.AirtableBaseID != "" && c.AirtableTableName != "" && c.AirtablePAT != ""
}

func amqpURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid AMQP URL: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return errors.New("scheme must be 'amqp' or 'amqps'")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

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
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
