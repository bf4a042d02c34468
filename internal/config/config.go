package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

// Config holds all configuration for the bkmrks binaries.
// Values are read by viper from an optional config file and from environment variables.
type Config struct {
	Port           int           `mapstructure:"PORT"`
	MongoURI       string        `mapstructure:"MONGO_URI"`
	MongoDatabase  string        `mapstructure:"MONGO_DATABASE"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	JWTTTL         time.Duration `mapstructure:"JWT_TTL"`
	AllowedOrigins []string      `mapstructure:"ALLOWED_ORIGINS"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	MediaRoot string `mapstructure:"MEDIA_ROOT"`
	MediaURL  string `mapstructure:"MEDIA_URL"`

	QueueBackend      string        `mapstructure:"QUEUE_BACKEND"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	BadgerPath        string        `mapstructure:"BADGER_PATH"`
	WorkerConcurrency int           `mapstructure:"WORKER_CONCURRENCY"`
	WorkerEmbedded    bool          `mapstructure:"WORKER_EMBEDDED"`
	DownloadLease     time.Duration `mapstructure:"DOWNLOAD_LEASE"`

	MetadataFetcher string        `mapstructure:"METADATA_FETCHER"`
	MetadataTimeout time.Duration `mapstructure:"METADATA_TIMEOUT"`

	BotToken   string `mapstructure:"BOT_TOKEN"`
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	BotAPIKey  string `mapstructure:"BOT_API_KEY"`
	BotLogFile string `mapstructure:"BOT_LOG_FILE"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`

	GoogleClientID       string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	FacebookClientID     string `mapstructure:"FACEBOOK_CLIENT_ID"`
	FacebookClientSecret string `mapstructure:"FACEBOOK_CLIENT_SECRET"`
	OAuthCallbackBase    string `mapstructure:"OAUTH_CALLBACK_BASE"`
	SessionKey           string `mapstructure:"SESSION_KEY"`
	SecureCookies        bool   `mapstructure:"SECURE_COOKIES"`

	LLMAPIKey string `mapstructure:"LLM_API_KEY"`
	LLMModel  string `mapstructure:"LLM_MODEL"`
}

const (
	QueueRedis  = "redis"
	QueueBadger = "badger"

	FetcherHTTP = "http"
	FetcherRod  = "rod"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "bkmrks")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MEDIA_ROOT", "./media")
	v.SetDefault("MEDIA_URL", "/media/")
	v.SetDefault("QUEUE_BACKEND", QueueRedis)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("BADGER_PATH", "./badger_data")
	v.SetDefault("WORKER_CONCURRENCY", 2)
	v.SetDefault("WORKER_EMBEDDED", false)
	v.SetDefault("DOWNLOAD_LEASE", 30*time.Minute)
	v.SetDefault("METADATA_FETCHER", FetcherHTTP)
	v.SetDefault("METADATA_TIMEOUT", 15*time.Second)
	v.SetDefault("API_BASE_URL", "http://127.0.0.1:8080")
	v.SetDefault("BOT_LOG_FILE", "bkmrks-bot.log")
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("OAUTH_CALLBACK_BASE", "http://localhost:8080")
	v.SetDefault("LLM_MODEL", "gemini-2.5-flash")
}

// Load reads configuration from <path>/config.yaml (optional) and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"JWT_SECRET", "REDIS_PASSWORD", "BOT_TOKEN", "BOT_API_KEY", "SMTP_USERNAME", "SMTP_PASSWORD",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "FACEBOOK_CLIENT_ID", "FACEBOOK_CLIENT_SECRET",
		"SESSION_KEY", "SECURE_COOKIES", "LLM_API_KEY",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.AllowedOrigins = splitOrigins(cfg.AllowedOrigins)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// viper hands a comma separated env value over as a single element.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, origin := range strings.Split(item, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				out = append(out, origin)
			}
		}
	}
	return out
}

func (c Config) validate() error {
	switch c.QueueBackend {
	case QueueRedis, QueueBadger:
	default:
		return fmt.Errorf("unsupported QUEUE_BACKEND %q", c.QueueBackend)
	}
	switch c.MetadataFetcher {
	case FetcherHTTP, FetcherRod:
	default:
		return fmt.Errorf("unsupported METADATA_FETCHER %q", c.MetadataFetcher)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	return nil
}

// RunsEmbeddedWorker reports whether the API process must consume jobs itself.
// Badger holds an exclusive directory lock, so it can only be used in-process.
func (c Config) RunsEmbeddedWorker() bool {
	return c.WorkerEmbedded || c.QueueBackend == QueueBadger
}
