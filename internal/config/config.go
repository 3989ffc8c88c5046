package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dreamcity/orderflow-monitor/internal/cache"
	"github.com/dreamcity/orderflow-monitor/internal/utils"
)

// Config captures the settings of both the dashboard backend and the simulator.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Rules     RulesConfig     `yaml:"rules"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// ServerConfig controls the HTTP, gRPC and metrics listeners.
type ServerConfig struct {
	HTTPAddress     string        `yaml:"httpAddress" validate:"required"`
	GRPCAddress     string        `yaml:"grpcAddress" validate:"required"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" validate:"gt=0"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

// StoreConfig selects the rollup store. Path is used by the sqlite and file drivers, DSN by postgres and mysql.
type StoreConfig struct {
	Driver      string        `yaml:"driver" validate:"oneof=postgres mysql sqlite file"`
	DSN         string        `yaml:"dsn"`
	Path        string        `yaml:"path"`
	Table       string        `yaml:"table"`
	LoadLimit   int           `yaml:"loadLimit" validate:"gt=0"`
	LoadTimeout time.Duration `yaml:"loadTimeout" validate:"gt=0"`
	Migrate     bool          `yaml:"migrate"`
}

// CacheConfig controls Valkey-backed caching of store reads.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr" validate:"required_if=Enabled true"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	RollupsTTL   time.Duration `yaml:"rollupsTTL"`
}

// Valkey converts the section into connection parameters for cache.NewValkeyProvider.
func (c CacheConfig) Valkey() cache.ValkeyConfig {
	return cache.ValkeyConfig{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		Prefix:       c.Prefix,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		MaxRetries:   c.MaxRetries,
		TLS:          c.TLS,
	}
}

// RulesConfig controls rule-pack loading for the recommender.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// DashboardConfig bounds query results. A positive RefreshInterval reloads the snapshot periodically.
type DashboardConfig struct {
	RowCap          int           `yaml:"rowCap" validate:"gt=0"`
	RefreshInterval time.Duration `yaml:"refreshInterval" validate:"gte=0"`
}

// SimulatorConfig drives cmd/flowsim.
type SimulatorConfig struct {
	Seed        int64  `yaml:"seed"`
	Flows       int    `yaml:"flows" validate:"gte=0"`
	WindowStart string `yaml:"windowStart"`
	WindowEnd   string `yaml:"windowEnd"`
	OutputDir   string `yaml:"outputDir" validate:"required"`
	ParamsFile  string `yaml:"paramsFile"`
	LoadStore   bool   `yaml:"loadStore"`
	// PushGateway receives the run's metrics when set.
	PushGateway string `yaml:"pushGateway" validate:"omitempty,url"`
}

// Window parses the configured simulation window.
func (s SimulatorConfig) Window() (time.Time, time.Time, error) {
	start, err := utils.ParseUTC(s.WindowStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("simulator windowStart: %w", err)
	}
	end, err := utils.ParseUTC(s.WindowEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("simulator windowEnd: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("simulator window end must be after start")
	}
	return start, end, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load initialises Config from a YAML file and optional environment overrides.
// Variables from a .env file (or FLOWWATCH_ENV_FILE) are loaded first without
// overriding the real environment.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}
	if path == "" {
		path = os.Getenv("FLOWWATCH_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddress:     ":8080",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Store: StoreConfig{
			Driver:      "file",
			Path:        "data/dream_city_rollup_flows.jsonl",
			Table:       "rollup_flows",
			LoadLimit:   10000,
			LoadTimeout: 3 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:      false,
			Prefix:       "flowwatch:",
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			RollupsTTL:   5 * time.Minute,
		},
		Rules:     RulesConfig{Path: "configs/rules/default.yaml"},
		Dashboard: DashboardConfig{RowCap: 600},
		Simulator: SimulatorConfig{
			Seed:        42,
			Flows:       10000,
			WindowStart: "2025-12-09T00:00:00Z",
			WindowEnd:   "2025-12-16T23:59:59Z",
			OutputDir:   "data",
		},
	}
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %s", describe(verrs))
		}
		return err
	}
	switch c.Store.Driver {
	case "postgres", "mysql":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver)
		}
	case "sqlite", "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s driver", c.Store.Driver)
		}
	}
	return nil
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		field := strings.TrimPrefix(ve.Namespace(), "Config.")
		if ve.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s fails %s=%s", field, ve.Tag(), ve.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s fails %s", field, ve.Tag()))
	}
	return strings.Join(parts, "; ")
}

func loadEnvFile() error {
	path := os.Getenv("FLOWWATCH_ENV_FILE")
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLOWWATCH_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("FLOWWATCH_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("FLOWWATCH_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("FLOWWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FLOWWATCH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("FLOWWATCH_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("FLOWWATCH_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("FLOWWATCH_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("FLOWWATCH_STORE_LOAD_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.LoadLimit = n
		}
	}
	if v := os.Getenv("FLOWWATCH_STORE_LOAD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Store.LoadTimeout = d
		}
	}
	if v := os.Getenv("FLOWWATCH_STORE_MIGRATE"); v != "" {
		cfg.Store.Migrate = truthy(v)
	}
	if v := os.Getenv("FLOWWATCH_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Dashboard.RefreshInterval = d
		}
	}
	if v := os.Getenv("FLOWWATCH_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("FLOWWATCH_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = truthy(v)
	}
	if v := os.Getenv("FLOWWATCH_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("FLOWWATCH_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("FLOWWATCH_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("FLOWWATCH_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("FLOWWATCH_CACHE_TLS"); truthy(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("FLOWWATCH_CACHE_ROLLUPS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.RollupsTTL = d
		}
	}
	if v := os.Getenv("FLOWWATCH_SIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Simulator.Seed = seed
		}
	}
	if v := os.Getenv("FLOWWATCH_SIM_FLOWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Simulator.Flows = n
		}
	}
	if v := os.Getenv("FLOWWATCH_SIM_OUTPUT_DIR"); v != "" {
		cfg.Simulator.OutputDir = v
	}
	if v := os.Getenv("FLOWWATCH_SIM_PUSHGATEWAY"); v != "" {
		cfg.Simulator.PushGateway = v
	}
}

func truthy(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
