// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top and
// lets environment variables override any key (storage.redis.address -> STORAGE_REDIS_ADDRESS).
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // env overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"backend.base_url",
		"storage.driver",
		"storage.redis.address",
		"storage.redis.password",
		"storage.postgres.host",
		"storage.postgres.user",
		"storage.postgres.password",
		"storage.postgres.database",
		"logging.level",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Backend.BaseURL == "" {
		if val := os.Getenv("BACKEND_URL"); val != "" {
			cfg.Backend.BaseURL = val
		}
	}
	if cfg.Storage.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDR"); val != "" {
			cfg.Storage.Redis.Address = val
		}
	}
	if cfg.Storage.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Storage.Postgres.User = val
		}
	}
	if cfg.Storage.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Storage.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "visa-portal"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		// long enough for the application-form status wait
		cfg.Server.WriteTimeout = 120000
	}

	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 15000
	}
	cfg.Backend.BaseURL = strings.TrimSuffix(cfg.Backend.BaseURL, "/")

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageDriverRedis
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "visa"
	}
	if cfg.Storage.Redis.PoolSize == 0 {
		cfg.Storage.Redis.PoolSize = 10
	}
	if cfg.Storage.Redis.DialTimeout == 0 {
		cfg.Storage.Redis.DialTimeout = 5000
	}
	if cfg.Storage.Redis.ReadTimeout == 0 {
		cfg.Storage.Redis.ReadTimeout = 3000
	}
	if cfg.Storage.Redis.WriteTimeout == 0 {
		cfg.Storage.Redis.WriteTimeout = 3000
	}
	if cfg.Storage.Postgres.Port == 0 {
		cfg.Storage.Postgres.Port = 5432
	}
	if cfg.Storage.Postgres.MaxConnections == 0 {
		cfg.Storage.Postgres.MaxConnections = 10
	}
	if cfg.Storage.Postgres.MaxIdle == 0 {
		cfg.Storage.Postgres.MaxIdle = 2
	}
	if cfg.Storage.Postgres.ConnMaxLife == 0 {
		cfg.Storage.Postgres.ConnMaxLife = 300000
	}
	if cfg.Storage.Postgres.SSLMode == "" {
		cfg.Storage.Postgres.SSLMode = "disable"
	}

	if cfg.Wizard.PollInterval == 0 {
		cfg.Wizard.PollInterval = 5000
	}
	if cfg.Wizard.RankingTimeout == 0 {
		cfg.Wizard.RankingTimeout = 10000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}

	switch cfg.Storage.Driver {
	case StorageDriverRedis:
		if cfg.Storage.Redis.Address == "" {
			return fmt.Errorf("storage.redis.address is required for the redis driver")
		}
	case StorageDriverPostgres:
		if cfg.Storage.Postgres.Host == "" {
			return fmt.Errorf("storage.postgres.host is required for the postgres driver")
		}
		if cfg.Storage.Postgres.Database == "" {
			return fmt.Errorf("storage.postgres.database is required for the postgres driver")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("storage.driver must be one of redis, postgres, memory (got %q)", cfg.Storage.Driver)
	}

	if cfg.Wizard.PollInterval < 0 || cfg.Wizard.RankingConcurrency < 0 {
		return fmt.Errorf("wizard settings must not be negative")
	}

	return nil
}
