package config

import (
	"fmt"

	"github.com/rpattn/entity-lookup/internal/db"
	"github.com/spf13/viper"
)

// Server holds the HTTP listener settings.
type Server struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// S3 holds the object store connection settings. Endpoint may point at any
// S3-compatible store (MinIO included); path-style addressing is required
// for most self-hosted deployments.
type S3 struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	PathStyle bool
}

// Webhook holds the bearer tokens accepted on the notification endpoint.
type Webhook struct {
	Tokens []string
}

// Config aggregates all process configuration.
type Config struct {
	Database db.Config
	Server   Server
	S3       S3
	Webhook  Webhook
}

// Default returns the configuration used when no file or env override is set.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: Server{
			Host:           "0.0.0.0",
			Port:           1234,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		S3: S3{
			Endpoint:  "http://localhost:9000",
			Region:    "us-east-1",
			PathStyle: true,
		},
	}
}

// Load reads config.yaml from configPath and applies environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("ENTITY_LOOKUP") // map env vars like ENTITY_LOOKUP_DATABASE_HOST

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("s3.endpoint")
	v.BindEnv("s3.access_key")
	v.BindEnv("s3.secret_key")
	v.BindEnv("s3.region")
	v.BindEnv("server.host")
	v.BindEnv("server.port")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Use defaults + env.
		fmt.Println("No config.yaml found, using defaults and env vars")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("database.max_conns") {
		cfg.Database.MaxConns = int32(v.GetInt("database.max_conns"))
	}
	if v.IsSet("server.host") {
		cfg.Server.Host = v.GetString("server.host")
	}
	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("s3.endpoint") {
		cfg.S3.Endpoint = v.GetString("s3.endpoint")
	}
	if v.IsSet("s3.access_key") {
		cfg.S3.AccessKey = v.GetString("s3.access_key")
	}
	if v.IsSet("s3.secret_key") {
		cfg.S3.SecretKey = v.GetString("s3.secret_key")
	}
	if v.IsSet("s3.region") {
		cfg.S3.Region = v.GetString("s3.region")
	}
	if v.IsSet("s3.path_style") {
		cfg.S3.PathStyle = v.GetBool("s3.path_style")
	}
	if v.IsSet("webhook.tokens") {
		cfg.Webhook.Tokens = v.GetStringSlice("webhook.tokens")
	}

	return cfg, nil
}
