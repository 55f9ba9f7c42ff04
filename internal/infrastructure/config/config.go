package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Harvesting  HarvestingConfig `mapstructure:"harvesting"`
	Advisory    AdvisoryConfig   `mapstructure:"advisory"`
	Monitor     MonitorConfig    `mapstructure:"monitor"`
	Email       EmailConfig      `mapstructure:"email"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// TTL in seconds for cached settings and relationship lookups
	CacheTTL int `mapstructure:"cache_ttl"`
}

// HarvestingConfig carries engine-level knobs. The per-scope thresholds live
// in harvesting_settings rows; these are deployment-wide.
type HarvestingConfig struct {
	// OpportunityTTLDays is how long an opportunity stays actionable
	OpportunityTTLDays int `mapstructure:"opportunity_ttl_days"`
	// WashSaleWindowDays is the half-width of the wash-sale window
	WashSaleWindowDays int `mapstructure:"wash_sale_window_days"`
	// MaxRecommendations returned per opportunity
	MaxRecommendations int `mapstructure:"max_recommendations"`
}

type AdvisoryConfig struct {
	Provider       string  `mapstructure:"provider"` // "gemini" or "" to disable
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	RateLimitRPM   int     `mapstructure:"rate_limit_rpm"`
}

type MonitorConfig struct {
	// Cron expression for the wash-sale violation sweep
	Schedule string `mapstructure:"schedule"`
	Timezone string `mapstructure:"timezone"`
	// RunOnStart triggers one sweep immediately at startup
	RunOnStart bool `mapstructure:"run_on_start"`
}

type EmailConfig struct {
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
	// AdvisorEmails maps advisor ids to alert addresses.
	AdvisorEmails map[string]string `mapstructure:"advisor_emails"`
	// AlertFallback receives alerts for advisors missing from AdvisorEmails.
	AlertFallback string `mapstructure:"alert_fallback"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.rate_limit_per_min", 120)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "advisory_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 300)
	viper.SetDefault("database.migrations_path", "migrations")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", 300)

	viper.SetDefault("harvesting.opportunity_ttl_days", 7)
	viper.SetDefault("harvesting.wash_sale_window_days", 30)
	viper.SetDefault("harvesting.max_recommendations", 3)

	viper.SetDefault("advisory.provider", "")
	viper.SetDefault("advisory.model", "gemini-2.0-flash")
	viper.SetDefault("advisory.timeout_seconds", 10)
	viper.SetDefault("advisory.max_tokens", 1024)
	viper.SetDefault("advisory.temperature", 0.2)
	viper.SetDefault("advisory.rate_limit_rpm", 60)

	viper.SetDefault("monitor.schedule", "0 * * * *") // hourly
	viper.SetDefault("monitor.timezone", "UTC")
	viper.SetDefault("monitor.run_on_start", false)

	viper.SetDefault("email.from_email", "alerts@meridianwealth.com")
	viper.SetDefault("email.from_name", "Meridian Advisory")
}
