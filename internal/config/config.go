package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMock       = "mock"
	BackendSalesforce = "salesforce"
	BackendPostgres   = "postgres"
)

type Config struct {
	Env         string `mapstructure:"ENV"`
	Port        string `mapstructure:"PORT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	CORSAllowed string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	JWTSecret        string `mapstructure:"JWT_SECRET_KEY"`
	JWTExpireMinutes int    `mapstructure:"JWT_EXPIRE_MINUTES"`

	CRMBackend string `mapstructure:"CRM_BACKEND"`

	SalesforceUsername      string `mapstructure:"SALESFORCE_USERNAME"`
	SalesforcePassword      string `mapstructure:"SALESFORCE_PASSWORD"`
	SalesforceSecurityToken string `mapstructure:"SALESFORCE_SECURITY_TOKEN"`
	SalesforceDomain        string `mapstructure:"SALESFORCE_DOMAIN"`
	SalesforceClientID      string `mapstructure:"SALESFORCE_CLIENT_ID"`
	SalesforceClientSecret  string `mapstructure:"SALESFORCE_CLIENT_SECRET"`
	SalesforceAPIVersion    string `mapstructure:"SALESFORCE_API_VERSION"`
	SummaryObjectAPIName    string `mapstructure:"SUMMARY_OBJECT_API_NAME"`
	SummaryFieldName        string `mapstructure:"SUMMARY_FIELD_NAME"`
	CaseIDFieldName         string `mapstructure:"CASE_ID_FIELD_NAME"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBSeed      bool   `mapstructure:"DB_SEED"`

	LLMAPIKey      string        `mapstructure:"LLM_API_KEY"`
	LLMBaseURL     string        `mapstructure:"LLM_BASE_URL"`
	LLMModel       string        `mapstructure:"LLM_MODEL"`
	LLMTemperature float64       `mapstructure:"LLM_TEMPERATURE"`
	LLMMaxRetries  int           `mapstructure:"LLM_MAX_RETRIES"`
	LLMTimeout     time.Duration `mapstructure:"LLM_TIMEOUT"`

	InsightsChunkSize   int           `mapstructure:"INSIGHTS_CHUNK_SIZE"`
	ParallelBatches     bool          `mapstructure:"PARALLEL_BATCHES"`
	BatchDelay          time.Duration `mapstructure:"BATCH_DELAY"`
	AnalyzeRejectClosed bool          `mapstructure:"ANALYZE_REJECT_CLOSED"`

	RedisURL           string        `mapstructure:"REDIS_URL"`
	GenerationCacheTTL time.Duration `mapstructure:"GENERATION_CACHE_TTL"`
	RateLimitPerMinute int           `mapstructure:"RATE_LIMIT_PER_MINUTE"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Every key gets a default so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("JWT_EXPIRE_MINUTES", 30)

	v.SetDefault("CRM_BACKEND", BackendMock)
	v.SetDefault("SALESFORCE_USERNAME", "")
	v.SetDefault("SALESFORCE_PASSWORD", "")
	v.SetDefault("SALESFORCE_SECURITY_TOKEN", "")
	v.SetDefault("SALESFORCE_DOMAIN", "login")
	v.SetDefault("SALESFORCE_CLIENT_ID", "")
	v.SetDefault("SALESFORCE_CLIENT_SECRET", "")
	v.SetDefault("SALESFORCE_API_VERSION", "v59.0")
	v.SetDefault("SUMMARY_OBJECT_API_NAME", "Case_Summary__c")
	v.SetDefault("SUMMARY_FIELD_NAME", "Summary__c")
	v.SetDefault("CASE_ID_FIELD_NAME", "Case__c")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_SEED", false)

	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("LLM_MODEL", "gemini-2.5-flash-lite")
	v.SetDefault("LLM_TEMPERATURE", 0.3)
	v.SetDefault("LLM_MAX_RETRIES", 3)
	v.SetDefault("LLM_TIMEOUT", "60s")

	v.SetDefault("INSIGHTS_CHUNK_SIZE", 50)
	v.SetDefault("PARALLEL_BATCHES", false)
	v.SetDefault("BATCH_DELAY", "2s")
	v.SetDefault("ANALYZE_REJECT_CLOSED", false)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("GENERATION_CACHE_TTL", "0s")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
}

func (c Config) Validate() error {
	switch c.CRMBackend {
	case BackendMock, BackendSalesforce, BackendPostgres:
	default:
		return errors.New("CRM_BACKEND must be one of mock, salesforce, postgres")
	}
	if c.CRMBackend == BackendPostgres && strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required when CRM_BACKEND=postgres")
	}
	if c.Env != "dev" && strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET_KEY is required outside dev")
	}
	if c.InsightsChunkSize <= 0 {
		return errors.New("INSIGHTS_CHUNK_SIZE must be positive")
	}
	return nil
}

// CORSOrigins splits the comma separated allow list.
func (c Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
