package config

import (
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
	Port      string
	JWTSecret string

	// Database
	SQLiteDBPath string

	// AMQP (budget-check task queue); empty URL disables the queue and
	// the API falls back to in-process detached checks.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Email gateway (EmailJS-compatible HTTP API)
	EmailEndpoint   string
	EmailServiceID  string
	EmailTemplateID string
	EmailPublicKey  string
	EmailPrivateKey string
	EmailTimeout    time.Duration

	// Scheduler
	SchedulerInterval time.Duration
	DailyRunHour      int // recurring materializer fires daily at this hour
	MonthlyRunDay     int // monthly reminder fires on this day of month
	MonthlyRunHour    int // ...at this hour

	// Budget alerts
	AlertThresholds []int
}

func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8081"),
		JWTSecret: getEnv("JWT_SECRET", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bynlora.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bynlora"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_checks"),

		EmailEndpoint:   getEnv("EMAIL_API_ENDPOINT", "https://api.emailjs.com/api/v1.0/email/send"),
		EmailServiceID:  getEnv("EMAIL_SERVICE_ID", ""),
		EmailTemplateID: getEnv("EMAIL_TEMPLATE_ID", ""),
		EmailPublicKey:  getEnv("EMAIL_PUBLIC_KEY", ""),
		EmailPrivateKey: getEnv("EMAIL_PRIVATE_KEY", ""),
		EmailTimeout:    getEnvDuration("EMAIL_TIMEOUT", 10*time.Second),

		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", time.Minute),
		DailyRunHour:      getEnvInt("DAILY_RUN_HOUR", 0),
		MonthlyRunDay:     getEnvInt("MONTHLY_RUN_DAY", 1),
		MonthlyRunHour:    getEnvInt("MONTHLY_RUN_HOUR", 9),

		AlertThresholds: getEnvIntList("ALERT_THRESHOLDS", []int{30, 50, 90, 100}),
	}
}

// Validate checks the configuration and returns a combined error listing
// every problem found.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.EmailEndpoint != "" {
		if parsed, err := url.Parse(c.EmailEndpoint); err != nil || parsed.Scheme == "" {
			errs = append(errs, fmt.Sprintf("invalid email endpoint '%s'", c.EmailEndpoint))
		}
	}
	if c.EmailTimeout < time.Second || c.EmailTimeout > time.Minute {
		errs = append(errs, fmt.Sprintf("invalid email timeout %v: must be between 1s and 1m", c.EmailTimeout))
	}

	if c.SchedulerInterval < time.Second || c.SchedulerInterval > time.Hour {
		errs = append(errs, fmt.Sprintf("invalid scheduler interval %v: must be between 1s and 1h", c.SchedulerInterval))
	}
	if c.DailyRunHour < 0 || c.DailyRunHour > 23 {
		errs = append(errs, fmt.Sprintf("invalid daily run hour %d: must be between 0 and 23", c.DailyRunHour))
	}
	if c.MonthlyRunDay < 1 || c.MonthlyRunDay > 28 {
		errs = append(errs, fmt.Sprintf("invalid monthly run day %d: must be between 1 and 28", c.MonthlyRunDay))
	}
	if c.MonthlyRunHour < 0 || c.MonthlyRunHour > 23 {
		errs = append(errs, fmt.Sprintf("invalid monthly run hour %d: must be between 0 and 23", c.MonthlyRunHour))
	}

	if len(c.AlertThresholds) == 0 {
		errs = append(errs, "alert thresholds cannot be empty")
	}
	for i, t := range c.AlertThresholds {
		if t <= 0 || t > 100 {
			errs = append(errs, fmt.Sprintf("invalid alert threshold %d: must be between 1 and 100", t))
		}
		if i > 0 && t <= c.AlertThresholds[i-1] {
			errs = append(errs, "alert thresholds must be strictly increasing")
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
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

func getEnvIntList(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, i)
	}
	return out
}
