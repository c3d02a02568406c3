package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cards/internal/srs"
)

var (
	ErrInvalidChapterSize = errors.New("chapter size must be at least 1")
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for postgres and mysql")
)

// Config holds application configuration
type Config struct {
	ServerPort      string        `mapstructure:"port"`
	DatabaseType    string        `mapstructure:"database_type"`
	DatabasePath    string        `mapstructure:"db_path"`
	DatabaseURL     string        `mapstructure:"database_url"`
	MigrationsPath  string        `mapstructure:"migrations_path"` // empty uses the embedded migrations
	SessionDuration time.Duration `mapstructure:"session_duration"`
	ResetTokenTTL   time.Duration `mapstructure:"reset_token_ttl"`

	ChapterSize     int                 `mapstructure:"chapter_size"`
	IncorrectPolicy srs.IncorrectPolicy `mapstructure:"-"`

	AppBaseURL   string `mapstructure:"app_base_url"`
	AWSRegion    string `mapstructure:"aws_region"`
	SESFromEmail string `mapstructure:"ses_from_email"`
	SESFromName  string `mapstructure:"ses_from_name"`
	EmailDebug   bool   `mapstructure:"email_debug"`

	GoogleClientID       string `mapstructure:"google_client_id"`
	GoogleClientSecret   string `mapstructure:"google_client_secret"`
	OAuthRedirectBaseURL string `mapstructure:"oauth_redirect_base_url"`

	JWTSecret   string        `mapstructure:"jwt_secret"`
	APITokenTTL time.Duration `mapstructure:"api_token_ttl"`
	CSRFSecret  string        `mapstructure:"csrf_secret"`

	SeedDemoData bool `mapstructure:"seed_demo_data"`
}

// Load reads configuration from flags, an optional YAML file, .env and environment variables
func Load(args []string) (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	flags := pflag.NewFlagSet("cards", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a YAML config file")
	flags.String("port", "", "HTTP port")
	flags.String("db-type", "", "database type: sqlite, postgres or mysql")
	flags.String("db-path", "", "SQLite database path")
	flags.Bool("seed-demo", false, "seed the demo account and decks on startup")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("db_path", "DB_PATH")
	_ = v.BindEnv("port", "PORT")

	bindFlag(v, flags, "port", "port")
	bindFlag(v, flags, "database_type", "db-type")
	bindFlag(v, flags, "db_path", "db-path")
	bindFlag(v, flags, "seed_demo_data", "seed-demo")

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	policy, err := srs.ParseIncorrectPolicy(v.GetString("incorrect_policy"))
	if err != nil {
		return nil, err
	}
	cfg.IncorrectPolicy = policy

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_type", "sqlite")
	v.SetDefault("db_path", "./cards.db")
	v.SetDefault("database_url", "")
	v.SetDefault("migrations_path", "")
	v.SetDefault("session_duration", 24*time.Hour)
	v.SetDefault("reset_token_ttl", 60*time.Minute)
	v.SetDefault("chapter_size", 8)
	v.SetDefault("incorrect_policy", string(srs.PolicyStay))
	v.SetDefault("app_base_url", "http://localhost:8080")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("ses_from_email", "")
	v.SetDefault("ses_from_name", "Cards")
	v.SetDefault("email_debug", false)
	v.SetDefault("google_client_id", "")
	v.SetDefault("google_client_secret", "")
	v.SetDefault("oauth_redirect_base_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("api_token_ttl", 7*24*time.Hour)
	v.SetDefault("csrf_secret", "")
	v.SetDefault("seed_demo_data", false)
}

// bindFlag lets an explicitly set flag override the environment
func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, name string) {
	if f := flags.Lookup(name); f != nil && f.Changed {
		_ = v.BindPFlag(key, f)
	}
}

func (c *Config) validate() error {
	if c.ChapterSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidChapterSize, c.ChapterSize)
	}
	switch strings.ToLower(c.DatabaseType) {
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	}
	return nil
}

// GoogleOAuthEnabled reports whether Google sign-in credentials are configured
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
