// Package config loads the bot configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Transcription backends.
const (
	TranscriberGemini    = "gemini"
	TranscriberWorkersAI = "workersai"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CachePostgres = "postgres"
)

// Reference data sources.
const (
	ReferenceHTTP     = "http"
	ReferenceBigQuery = "bigquery"
)

var secretPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// Config is the complete runtime configuration. Every field is read from the
// environment variable named by its upper-cased mapstructure key.
type Config struct {
	// Chat platform
	BotToken          string `mapstructure:"bot_token"`
	BotSecret         string `mapstructure:"bot_secret"`
	WebhookPath       string `mapstructure:"webhook_path"`
	PublicURL         string `mapstructure:"public_url"`
	TelegramServerURL string `mapstructure:"telegram_server_url"`
	AdminToken        string `mapstructure:"admin_token"`

	// HTTP server
	Port        string        `mapstructure:"port"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// Spreadsheet endpoints. SheetsURL is the fallback for both.
	SheetsURL    string `mapstructure:"sheets_url"`
	ReferenceURL string `mapstructure:"reference_url"`
	SinkURL      string `mapstructure:"sink_url"`

	// Language model
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`
	GeminiModel     string `mapstructure:"gemini_model"`
	TranscribeModel string `mapstructure:"gemini_transcribe_model"`

	// Speech to text
	Transcriber        string `mapstructure:"transcriber"`
	WorkersAIAccountID string `mapstructure:"workers_ai_account_id"`
	WorkersAIToken     string `mapstructure:"workers_ai_token"`
	WorkersAIModel     string `mapstructure:"workers_ai_model"`
	VoiceArchiveBucket string `mapstructure:"voice_archive_bucket"`

	// Cache
	CacheBackend string `mapstructure:"cache_backend"`
	DatabaseURL  string `mapstructure:"database_url"`

	// Reference data
	ReferenceSource string        `mapstructure:"reference_source"`
	ReferenceMaxAge time.Duration `mapstructure:"reference_max_age"`

	// Google Cloud
	GoogleCredentialsFile string `mapstructure:"google_credentials_file"`

	// Optional sinks and BigQuery
	BigQueryProject        string `mapstructure:"bigquery_project"`
	BigQueryDataset        string `mapstructure:"bigquery_dataset"`
	BigQueryReferenceTable string `mapstructure:"bigquery_reference_table"`
	BigQueryLedgerTable    string `mapstructure:"bigquery_ledger_table"`
	NotionToken            string `mapstructure:"notion_token"`
	NotionDatabaseID       string `mapstructure:"notion_database_id"`

	// Approval
	PendingTTL           time.Duration `mapstructure:"pending_ttl"`
	DebugEcho            bool          `mapstructure:"debug_echo"`
	DefaultCategory      string        `mapstructure:"default_category"`
	DefaultPaymentMethod string        `mapstructure:"default_payment_method"`
	Currency             string        `mapstructure:"currency"`

	// Workers
	Workers    int           `mapstructure:"workers"`
	QueueSize  int           `mapstructure:"queue_size"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaults = map[string]interface{}{
	"bot_token":           "",
	"bot_secret":          "",
	"webhook_path":        "/endpoint",
	"public_url":          "",
	"telegram_server_url": "",
	"admin_token":         "",

	"port":         "8080",
	"http_timeout": 15 * time.Second,

	"sheets_url":    "",
	"reference_url": "",
	"sink_url":      "",

	"gemini_api_key":          "",
	"gemini_model":            "gemini-2.5-flash",
	"gemini_transcribe_model": "",

	"transcriber":           TranscriberGemini,
	"workers_ai_account_id": "",
	"workers_ai_token":      "",
	"workers_ai_model":      "",
	"voice_archive_bucket":  "",

	"cache_backend": CacheMemory,
	"database_url":  "",

	"reference_source":  ReferenceHTTP,
	"reference_max_age": 24 * time.Hour,

	"google_credentials_file": "",

	"bigquery_project":         "",
	"bigquery_dataset":         "finance",
	"bigquery_reference_table": "reference_values",
	"bigquery_ledger_table":    "",
	"notion_token":             "",
	"notion_database_id":       "",

	"pending_ttl":            time.Hour,
	"debug_echo":             true,
	"default_category":       "General",
	"default_payment_method": "Card",
	"currency":               "€",

	"workers":     4,
	"queue_size":  100,
	"job_timeout": 2 * time.Minute,

	"log_level":  "info",
	"log_format": "console",
}

// Keys returns every configuration key, for binding and tests.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flags bound over the environment when present in the flag set.
var flagKeys = map[string]string{
	"port":     "port",
	"env_file": "env-file",
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. Precedence, highest first: flags set on the
// command line, the process environment, the dotenv file named by --env-file
// (or ENV_FILE), then defaults. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := newViper()
	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("Load: bind --%s: %w", name, err)
				}
			}
		}
	}

	// godotenv never overrides variables already set, so the environment
	// keeps precedence over the file.
	if envFile := v.GetString("env_file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("Load: read %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if c.ReferenceURL == "" {
		c.ReferenceURL = c.SheetsURL
	}
	if c.SinkURL == "" {
		c.SinkURL = c.SheetsURL
	}
	c.Transcriber = strings.ToLower(strings.TrimSpace(c.Transcriber))
	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	c.ReferenceSource = strings.ToLower(strings.TrimSpace(c.ReferenceSource))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// Validate checks required settings and combinations.
func (c *Config) Validate() error {
	var errs []error

	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if !secretPattern.MatchString(c.BotSecret) {
		errs = append(errs, errors.New("BOT_SECRET must be 1-256 characters of A-Z, a-z, 0-9, _ and -"))
	}
	if !strings.HasPrefix(c.WebhookPath, "/") {
		errs = append(errs, errors.New("WEBHOOK_PATH must start with /"))
	}
	if c.AdminToken != "" && c.PublicURL == "" {
		errs = append(errs, errors.New("PUBLIC_URL is required with ADMIN_TOKEN"))
	}

	switch c.ReferenceSource {
	case ReferenceHTTP:
		if c.ReferenceURL == "" {
			errs = append(errs, errors.New("SHEETS_URL or REFERENCE_URL is required"))
		}
	case ReferenceBigQuery:
		if c.BigQueryProject == "" {
			errs = append(errs, errors.New("BIGQUERY_PROJECT is required for REFERENCE_SOURCE=bigquery"))
		}
	default:
		errs = append(errs, fmt.Errorf("REFERENCE_SOURCE %q is not one of http, bigquery", c.ReferenceSource))
	}

	if c.SinkURL == "" && c.BigQueryLedgerTable == "" && c.NotionDatabaseID == "" {
		errs = append(errs, errors.New("SHEETS_URL or SINK_URL is required"))
	}
	if c.BigQueryLedgerTable != "" && c.BigQueryProject == "" {
		errs = append(errs, errors.New("BIGQUERY_PROJECT is required with BIGQUERY_LEDGER_TABLE"))
	}
	if c.NotionDatabaseID != "" && c.NotionToken == "" {
		errs = append(errs, errors.New("NOTION_TOKEN is required with NOTION_DATABASE_ID"))
	}

	switch c.Transcriber {
	case TranscriberGemini:
	case TranscriberWorkersAI:
		if c.WorkersAIAccountID == "" || c.WorkersAIToken == "" {
			errs = append(errs, errors.New("WORKERS_AI_ACCOUNT_ID and WORKERS_AI_TOKEN are required for TRANSCRIBER=workersai"))
		}
	default:
		errs = append(errs, fmt.Errorf("TRANSCRIBER %q is not one of gemini, workersai", c.Transcriber))
	}

	switch c.CacheBackend {
	case CacheMemory:
	case CachePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for CACHE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND %q is not one of memory, postgres", c.CacheBackend))
	}

	if c.Workers <= 0 {
		errs = append(errs, errors.New("WORKERS must be positive"))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, errors.New("QUEUE_SIZE must be positive"))
	}
	if c.PendingTTL <= 0 {
		errs = append(errs, errors.New("PENDING_TTL must be positive"))
	}

	return errors.Join(errs...)
}
