package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	CompletionDelay     time.Duration
	CompletionInterval  time.Duration
	CompletionBatchSize int

	ChangePollInterval time.Duration
	ChangeBatchSize    int

	QueueName          string
	DefaultCountryCode string

	SMSProvider      string
	EmailProvider    string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	ResendAPIKey     string
	EmailFrom        string

	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	queueName := os.Getenv("QUEUE_NAME")
	if queueName == "" {
		queueName = "Walk-In Queue"
	}

	countryCode := os.Getenv("DEFAULT_COUNTRY_CODE")
	if countryCode == "" {
		countryCode = "+1"
	}

	emailFrom := os.Getenv("EMAIL_FROM")
	if emailFrom == "" {
		emailFrom = "Walk-In Queue <onboarding@resend.dev>"
	}

	return Config{
		Port:                port,
		DatabaseURL:         os.Getenv("DB_DSN"),
		CompletionDelay:     readDurationMillis("COMPLETION_DELAY_MS", 1000),
		CompletionInterval:  readDurationMillis("COMPLETION_SCAN_INTERVAL_MS", 1000),
		CompletionBatchSize: readInt("COMPLETION_BATCH_SIZE", 100),
		ChangePollInterval:  readDurationMillis("CHANGE_POLL_INTERVAL_MS", 1000),
		ChangeBatchSize:     readInt("CHANGE_BATCH_SIZE", 100),
		QueueName:           queueName,
		DefaultCountryCode:  countryCode,
		SMSProvider:         os.Getenv("SMS_PROVIDER"),
		EmailProvider:       os.Getenv("EMAIL_PROVIDER"),
		TwilioAccountSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:          os.Getenv("TWILIO_PHONE_NUMBER"),
		ResendAPIKey:        os.Getenv("RESEND_API_KEY"),
		EmailFrom:           emailFrom,
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:        readBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readDurationMillis(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Millisecond
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
