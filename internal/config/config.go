package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	RunModeServer = "server"
	RunModeLambda = "lambda"

	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is loaded from defaults, then an optional YAML file named by
// CONFIG_FILE, then environment variables.
type Config struct {
	Port     string `yaml:"port"`
	RunMode  string `yaml:"run_mode"`
	LogLevel string `yaml:"log_level"`

	StorageBackend   string        `yaml:"storage_backend"`
	TableName        string        `yaml:"table_name"`
	Region           string        `yaml:"aws_region"`
	DynamoDBEndpoint string        `yaml:"dynamodb_endpoint"`
	DatabaseURL      string        `yaml:"database_url"`
	RedisURL         string        `yaml:"redis_url"`
	StatusCacheTTL   time.Duration `yaml:"status_cache_ttl"`

	MediaRoot      string `yaml:"media_root"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	AdminUsername      string        `yaml:"admin_username"`
	AdminPasswordHash  string        `yaml:"admin_password_hash"`
	AdminPassword      string        `yaml:"admin_password"`
	JWTSecret          string        `yaml:"jwt_secret"`
	JWTIssuer          string        `yaml:"jwt_issuer"`
	AccessTokenTTL     time.Duration `yaml:"-"`
	AccessTokenMinutes int           `yaml:"access_token_expire_minutes"`
	LoginRatePerMinute int           `yaml:"login_rate_per_minute"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

func Default() Config {
	return Config{
		Port:               "8080",
		RunMode:            RunModeServer,
		LogLevel:           "info",
		StorageBackend:     BackendMemory,
		Region:             "us-east-1",
		StatusCacheTTL:     5 * time.Minute,
		MediaRoot:          "media",
		MaxUploadBytes:     5 << 20,
		AdminUsername:      "admin",
		JWTIssuer:          "kyc-verification-backend",
		AccessTokenMinutes: 30,
		LoginRatePerMinute: 10,
		CORSAllowedOrigins: []string{"http://localhost:8080", "http://localhost:5173"},
	}
}

// Load resolves the configuration from the process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()
	if path := getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	cfg.AccessTokenTTL = time.Duration(cfg.AccessTokenMinutes) * time.Minute
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := map[string]*string{
		"PORT":                &cfg.Port,
		"RUN_MODE":            &cfg.RunMode,
		"LOG_LEVEL":           &cfg.LogLevel,
		"STORAGE_BACKEND":     &cfg.StorageBackend,
		"TABLE_NAME":          &cfg.TableName,
		"AWS_REGION":          &cfg.Region,
		"DYNAMODB_ENDPOINT":   &cfg.DynamoDBEndpoint,
		"DATABASE_URL":        &cfg.DatabaseURL,
		"REDIS_URL":           &cfg.RedisURL,
		"MEDIA_ROOT":          &cfg.MediaRoot,
		"ADMIN_USERNAME":      &cfg.AdminUsername,
		"ADMIN_PASSWORD_HASH": &cfg.AdminPasswordHash,
		"ADMIN_PASSWORD":      &cfg.AdminPassword,
		"JWT_SECRET":          &cfg.JWTSecret,
		"JWT_ISSUER":          &cfg.JWTIssuer,
	}
	for key, dst := range str {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"ACCESS_TOKEN_EXPIRE_MINUTES": &cfg.AccessTokenMinutes,
		"LOGIN_RATE_PER_MINUTE":       &cfg.LoginRatePerMinute,
	}
	for key, dst := range ints {
		v := getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v := getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	if v := getenv("STATUS_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STATUS_CACHE_TTL: %w", err)
		}
		cfg.StatusCacheTTL = d
	}
	if v := getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSAllowedOrigins = origins
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.RunMode {
	case RunModeServer, RunModeLambda:
	default:
		errs = append(errs, fmt.Errorf("RUN_MODE must be %q or %q", RunModeServer, RunModeLambda))
	}
	switch c.StorageBackend {
	case BackendDynamoDB:
		if c.TableName == "" || c.Region == "" {
			errs = append(errs, errors.New("TABLE_NAME and AWS_REGION are required for the dynamodb backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.AdminUsername == "" {
		errs = append(errs, errors.New("ADMIN_USERNAME is required"))
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required"))
	}
	if c.AccessTokenMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.LoginRatePerMinute <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_PER_MINUTE must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.MediaRoot == "" {
		errs = append(errs, errors.New("MEDIA_ROOT is required"))
	}
	return errors.Join(errs...)
}
