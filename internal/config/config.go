package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Qdrant     QdrantConfig     `mapstructure:"qdrant"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Vectorizer VectorizerConfig `mapstructure:"vectorizer"`
	Recommend  RecommendConfig  `mapstructure:"recommend"`
	Backfill   BackfillConfig   `mapstructure:"backfill"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
	// MaxUploadBytes bounds multipart media uploads.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the document store backing pins and interactions.
// Driver is one of "sqlite", "postgres" or "mongo".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MongoURI        string        `mapstructure:"mongo_uri"`
	MongoDatabase   string        `mapstructure:"mongo_database"`
}

// DSN builds the connection string for the configured SQL driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type QdrantConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // r2, s3, s3compatible; empty auto-detects
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// RecommendConfig tunes the personalized feed.
type RecommendConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
	// CatalogSource is "database" or "qdrant".
	CatalogSource string `mapstructure:"catalog_source"`
	// DegradeToPopular serves the popular feed when ranking hits corrupt embeddings.
	DegradeToPopular bool `mapstructure:"degrade_to_popular"`
	RelatedLimit     int  `mapstructure:"related_limit"`
}

type BackfillConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment endpoints
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.mongo_uri", "MONGO_URI")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	v.BindEnv("vectorizer.base_url", "VECTORIZER_BASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/pinfeed.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongo_database", "pinfeed")
	v.SetDefault("qdrant.enabled", false)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "pins")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "pins")
	v.SetDefault("vectorizer.base_url", "http://127.0.0.1:8000")
	v.SetDefault("vectorizer.timeout", 30*time.Second)
	v.SetDefault("vectorizer.dimensions", 512)
	v.SetDefault("vectorizer.retry_count", 2)
	v.SetDefault("vectorizer.breaker_failures", 5)
	v.SetDefault("vectorizer.breaker_timeout", 30*time.Second)
	v.SetDefault("recommend.default_page_size", 20)
	v.SetDefault("recommend.max_page_size", 100)
	v.SetDefault("recommend.catalog_source", "database")
	v.SetDefault("recommend.degrade_to_popular", false)
	v.SetDefault("recommend.related_limit", 10)
	v.SetDefault("backfill.workers", 4)
	v.SetDefault("backfill.batch_size", 50)
}

// Validate checks cross-field constraints after unmarshaling.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mongo":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	switch c.Recommend.CatalogSource {
	case "database":
	case "qdrant":
		if !c.Qdrant.Enabled {
			return fmt.Errorf("recommend: catalog_source qdrant requires qdrant.enabled")
		}
	default:
		return fmt.Errorf("recommend: unknown catalog_source %q", c.Recommend.CatalogSource)
	}
	if c.Recommend.DefaultPageSize <= 0 {
		return fmt.Errorf("recommend: default_page_size must be positive")
	}
	if c.Recommend.MaxPageSize < c.Recommend.DefaultPageSize {
		return fmt.Errorf("recommend: max_page_size must be >= default_page_size")
	}
	return c.Vectorizer.Validate()
}
