// internal/config/config.go
package config

import (
	"runtime"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Forecast ForecastConfig
	Policy   PolicyConfig
	Pipeline PipelineConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Tracing  TracingConfig
	Log      LogConfig
}

type ForecastConfig struct {
	LookbackDays   int
	HorizonDays    int
	MaxHorizonDays int
	AllowML        bool
	ModelTimeout   time.Duration
}

type PolicyConfig struct {
	ServiceLevel     float64
	LeadTimeDays     int
	ReviewPeriodDays int
	MinOrderQty      int
}

type PipelineConfig struct {
	Workers   int
	OutputDir string
}

type DatabaseConfig struct {
	// URL takes precedence over the individual fields when set.
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	ForecastTTLSeconds int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
}

type TracingConfig struct {
	Exporter    string
	ServiceName string
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
)

// Load reads configuration from the environment (and an optional .env file)
// once per process.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.New()
		SetDefaults(v)

		// Read from environment variables
		v.AutomaticEnv()

		instance = FromViper(v)
	})

	return instance
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("FORECAST_LOOKBACK_DAYS", 365)
	v.SetDefault("FORECAST_HORIZON_DAYS", 30)
	v.SetDefault("FORECAST_MAX_HORIZON_DAYS", 365)
	v.SetDefault("FORECAST_ALLOW_ML", true)
	v.SetDefault("FORECAST_MODEL_TIMEOUT_SECONDS", 10)
	v.SetDefault("POLICY_SERVICE_LEVEL", 0.95)
	v.SetDefault("POLICY_LEAD_TIME_DAYS", 7)
	v.SetDefault("POLICY_REVIEW_PERIOD_DAYS", 7)
	v.SetDefault("POLICY_MIN_ORDER_QTY", 0)
	v.SetDefault("PIPELINE_WORKERS", runtime.NumCPU())
	v.SetDefault("PIPELINE_OUTPUT_DIR", "./data/plans")
	v.SetDefault("DB_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "inventory")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_FORECAST_TTL_SECONDS", 900)
	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "replenishment-plans")
	v.SetDefault("MINIO_PREFIX", "plans")
	v.SetDefault("MINIO_USE_SSL", true)
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("OTEL_EXPORTER", "none")
	v.SetDefault("SERVICE_NAME", "autopo-forecast")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Forecast: ForecastConfig{
			LookbackDays:   v.GetInt("FORECAST_LOOKBACK_DAYS"),
			HorizonDays:    v.GetInt("FORECAST_HORIZON_DAYS"),
			MaxHorizonDays: v.GetInt("FORECAST_MAX_HORIZON_DAYS"),
			AllowML:        v.GetBool("FORECAST_ALLOW_ML"),
			ModelTimeout:   time.Duration(v.GetInt("FORECAST_MODEL_TIMEOUT_SECONDS")) * time.Second,
		},
		Policy: PolicyConfig{
			ServiceLevel:     v.GetFloat64("POLICY_SERVICE_LEVEL"),
			LeadTimeDays:     v.GetInt("POLICY_LEAD_TIME_DAYS"),
			ReviewPeriodDays: v.GetInt("POLICY_REVIEW_PERIOD_DAYS"),
			MinOrderQty:      v.GetInt("POLICY_MIN_ORDER_QTY"),
		},
		Pipeline: PipelineConfig{
			Workers:   v.GetInt("PIPELINE_WORKERS"),
			OutputDir: v.GetString("PIPELINE_OUTPUT_DIR"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DB_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:            v.GetBool("CACHE_ENABLED"),
			RedisURL:           v.GetString("REDIS_URL"),
			RedisHost:          v.GetString("REDIS_HOST"),
			RedisPort:          v.GetString("REDIS_PORT"),
			RedisPassword:      v.GetString("REDIS_PASSWORD"),
			RedisDB:            v.GetInt("REDIS_DB"),
			ForecastTTLSeconds: v.GetInt("CACHE_FORECAST_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			Prefix:    v.GetString("MINIO_PREFIX"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
		},
		Tracing: TracingConfig{
			Exporter:    v.GetString("OTEL_EXPORTER"),
			ServiceName: v.GetString("SERVICE_NAME"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}
