package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Token signing. TokenSecret is base64-encoded; TokenTTL comes from
	// TOKEN_TTL_MS in milliseconds. Both are required: the process refuses
	// to start without them.
	TokenSecret string
	TokenTTL    time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger export (optional)
	SheetsSpreadsheetID   string
	SheetsSheetName       string
	SheetsOAuthClientFile string
	SheetsOAuthTokenFile  string
	SheetsOAuthClientJSON string
	SheetsOAuthTokenJSON  string

	// Worker
	ReconcileBatchSize int
	ReconcileInterval  time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finledger.db"),

		TokenSecret: getEnv("TOKEN_SECRET", ""),
		TokenTTL:    time.Duration(getEnvInt("TOKEN_TTL_MS", 0)) * time.Millisecond,

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_events"),

		SheetsSpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsSheetName:       getEnv("SHEETS_SHEET_NAME", ""),
		SheetsOAuthClientFile: getEnv("SHEETS_OAUTH_CLIENT_FILE", ""),
		SheetsOAuthTokenFile:  getEnv("SHEETS_OAUTH_TOKEN_FILE", ""),
		SheetsOAuthClientJSON: getEnv("SHEETS_OAUTH_CLIENT_JSON", ""),
		SheetsOAuthTokenJSON:  getEnv("SHEETS_OAUTH_TOKEN_JSON", ""),

		ReconcileBatchSize: getEnvInt("RECONCILE_BATCH_SIZE", 50),
		ReconcileInterval:  getEnvDuration("RECONCILE_INTERVAL", 30*time.Second),
	}

	return cfg
}

// SigningKey decodes the base64 token secret.
func (c *Config) SigningKey() ([]byte, error) {
	if c.TokenSecret == "" {
		return nil, fmt.Errorf("token secret is not set")
	}
	key, err := base64.StdEncoding.DecodeString(c.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("decode token secret: %w", err)
	}
	return key, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate database path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Token secret and TTL are mandatory: a server without them would
	// silently issue unverifiable tokens.
	if c.TokenSecret == "" {
		errors = append(errors, "TOKEN_SECRET is required (base64-encoded signing secret)")
	} else if key, err := base64.StdEncoding.DecodeString(c.TokenSecret); err != nil {
		errors = append(errors, fmt.Sprintf("invalid TOKEN_SECRET: not valid base64: %v", err))
	} else if len(key) < 32 {
		errors = append(errors, fmt.Sprintf("invalid TOKEN_SECRET: decoded key is %d bytes, need at least 32", len(key)))
	}

	if c.TokenTTL <= 0 {
		errors = append(errors, "TOKEN_TTL_MS is required and must be a positive number of milliseconds")
	} else if c.TokenTTL > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at most 30 days", c.TokenTTL))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate sheets export configuration if enabled
	if c.SheetsSpreadsheetID != "" {
		if c.SheetsSheetName == "" {
			errors = append(errors, "sheet name is required when a spreadsheet ID is provided")
		}

		hasClientFile := c.SheetsOAuthClientFile != ""
		hasClientJSON := c.SheetsOAuthClientJSON != ""
		if !hasClientFile && !hasClientJSON {
			errors = append(errors, "either SHEETS_OAUTH_CLIENT_FILE or SHEETS_OAUTH_CLIENT_JSON must be provided for the sheets export")
		}

		hasTokenFile := c.SheetsOAuthTokenFile != ""
		hasTokenJSON := c.SheetsOAuthTokenJSON != ""
		if !hasTokenFile && !hasTokenJSON {
			errors = append(errors, "either SHEETS_OAUTH_TOKEN_FILE or SHEETS_OAUTH_TOKEN_JSON must be provided for the sheets export")
		}

		if hasClientFile {
			if _, err := os.Stat(c.SheetsOAuthClientFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("OAuth client file does not exist: %s", c.SheetsOAuthClientFile))
			}
		}
		if hasTokenFile {
			if _, err := os.Stat(c.SheetsOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("OAuth token file does not exist: %s", c.SheetsOAuthTokenFile))
			}
		}
	}

	// Validate worker configuration
	if c.ReconcileBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid reconcile batch size %d: must be at least 1", c.ReconcileBatchSize))
	} else if c.ReconcileBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid reconcile batch size %d: must be at most 1000", c.ReconcileBatchSize))
	}

	if c.ReconcileInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at least 1 second", c.ReconcileInterval))
	} else if c.ReconcileInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at most 24 hours", c.ReconcileInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
