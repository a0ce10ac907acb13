package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath       string
	OutputDir    string
	ProviderPath string
	LogLevel     string

	AmbiguityMargin float64
	BatchWorkers    int

	LLMBaseURL       string
	LLMAPIKey        string
	LLMModel         string
	CorrectorEnabled bool
	CorrectorTimeout time.Duration
	CorrectorRPS     float64

	RawMailDir        string
	MailProvider      string
	MailLabel         string
	MailFetchMax      int
	MailSubjectFilter string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:       getEnv("DB_PATH", filepath.Join(cwd, "data", "reports.db")),
		OutputDir:    getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		ProviderPath: getEnv("REPORT_CONFIG_PATH", ""),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		AmbiguityMargin: getEnvFloat("CLASSIFIER_AMBIGUITY_MARGIN", 10),
		BatchWorkers:    getEnvInt("BATCH_WORKERS", 4),

		LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		LLMModel:         getEnv("LLM_MODEL", "gpt-4o-mini"),
		CorrectorEnabled: getEnvBool("CORRECTOR_ENABLED", false),
		CorrectorTimeout: getEnvDuration("CORRECTOR_TIMEOUT", 20*time.Second),
		CorrectorRPS:     getEnvFloat("CORRECTOR_RPS", 1),

		RawMailDir:        getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		MailProvider:      getEnv("MAIL_PROVIDER", "imap"),
		MailLabel:         getEnv("MAIL_LABEL", "INBOX"),
		MailFetchMax:      getEnvInt("MAIL_FETCH_MAX", 20),
		MailSubjectFilter: getEnv("MAIL_SUBJECT_FILTER", "Report On Business"),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
