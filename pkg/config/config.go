package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Analytics AnalyticsConfig
	Review    ReviewConfig
	NineBox   NineBoxConfig
	Jobs      JobsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AnalyticsConfig governs cache behaviour for scoring endpoints.
type AnalyticsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ReviewConfig tunes the review cycle scheduler and token lifecycle.
type ReviewConfig struct {
	TokenTTL           time.Duration
	CycleEnabled       bool
	CycleInterval      time.Duration
	SeedDefaultPeriods bool
	SkillLinkPath      string
	TaskLinkPath       string
}

// NineBoxConfig controls snapshot caching for the talent matrix.
type NineBoxConfig struct {
	DefaultScope       string
	DefaultTTLMinutes  int
	MaxTTLMinutes      int
	MaxRecommendations int
	// InferLegacyScales treats 0-10 and 0-100 signal values by magnitude
	// instead of trusting the declared source scale.
	InferLegacyScales bool
}

// JobsConfig configures the in-process worker queue.
type JobsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheEnabled: v.GetBool("ANALYTICS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Review = ReviewConfig{
		TokenTTL:           parseDuration(v.GetString("REVIEW_TOKEN_TTL"), 24*time.Hour),
		CycleEnabled:       v.GetBool("REVIEW_CYCLE_ENABLED"),
		CycleInterval:      parseDuration(v.GetString("REVIEW_CYCLE_INTERVAL"), 24*time.Hour),
		SeedDefaultPeriods: v.GetBool("REVIEW_SEED_DEFAULT_PERIODS"),
		SkillLinkPath:      v.GetString("REVIEW_SKILL_LINK_PATH"),
		TaskLinkPath:       v.GetString("REVIEW_TASK_LINK_PATH"),
	}

	cfg.NineBox = NineBoxConfig{
		DefaultScope:       v.GetString("NINE_BOX_DEFAULT_SCOPE"),
		DefaultTTLMinutes:  v.GetInt("NINE_BOX_TTL_MINUTES"),
		MaxTTLMinutes:      v.GetInt("NINE_BOX_MAX_TTL_MINUTES"),
		MaxRecommendations: v.GetInt("NINE_BOX_MAX_RECOMMENDATIONS"),
		InferLegacyScales:  v.GetBool("NINE_BOX_INFER_LEGACY_SCALES"),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), 30*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "perf_review")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ANALYTICS_CACHE_ENABLED", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")

	v.SetDefault("REVIEW_TOKEN_TTL", "24h")
	v.SetDefault("REVIEW_CYCLE_ENABLED", false)
	v.SetDefault("REVIEW_CYCLE_INTERVAL", "24h")
	v.SetDefault("REVIEW_SEED_DEFAULT_PERIODS", true)
	v.SetDefault("REVIEW_SKILL_LINK_PATH", "/reviews/skills")
	v.SetDefault("REVIEW_TASK_LINK_PATH", "/reviews/tasks")

	v.SetDefault("NINE_BOX_DEFAULT_SCOPE", "global")
	v.SetDefault("NINE_BOX_TTL_MINUTES", 60)
	v.SetDefault("NINE_BOX_MAX_TTL_MINUTES", 1440)
	v.SetDefault("NINE_BOX_MAX_RECOMMENDATIONS", 25)
	v.SetDefault("NINE_BOX_INFER_LEGACY_SCALES", false)

	v.SetDefault("JOBS_WORKERS", 1)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "30s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
