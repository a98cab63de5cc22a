// Package config loads process settings from the environment, optionally
// seeded by the nearest .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

const envFileSearchDepth = 6

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Ledger   LedgerConfig
	Argon2   Argon2Config

	// EnvFile is the .env that was merged, or "".
	EnvFile string
}

type ServerConfig struct {
	Port           string
	CORSOrigins    []string
	AdminSecret    string
	RateLimitPerIP string
	Development    bool
}

type DatabaseConfig struct {
	// URL selects Postgres storage. Empty means in-memory storage.
	URL string
}

type LogConfig struct {
	Level  string
	Format string
}

type LedgerConfig struct {
	SeedPools            []domain.PoolSpec
	CompensationAttempts int
	CompensationBackoff  time.Duration
	CompensationTimeout  time.Duration
}

type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
}

// Load reads configuration for the current working directory.
func Load() (*Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return LoadFrom(dir)
}

// LoadFrom reads configuration, merging the first .env found in dir or one of
// its parents. Process environment variables take precedence over the file.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	envFile := findEnvFile(dir)
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	seeds, err := ParseSeedPools(v.GetString("SEED_POOLS"))
	if err != nil {
		return nil, err
	}
	backoff, err := parseDuration(v, "COMPENSATION_BACKOFF")
	if err != nil {
		return nil, err
	}
	timeout, err := parseDuration(v, "COMPENSATION_TIMEOUT")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			CORSOrigins:    parseCSV(v.GetString("CORS_ORIGINS")),
			AdminSecret:    v.GetString("ADMIN_SECRET"),
			RateLimitPerIP: v.GetString("RATE_LIMIT_PER_IP"),
			Development:    v.GetBool("DEVELOPMENT"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("DATABASE_URL"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Ledger: LedgerConfig{
			SeedPools:            seeds,
			CompensationAttempts: v.GetInt("COMPENSATION_ATTEMPTS"),
			CompensationBackoff:  backoff,
			CompensationTimeout:  timeout,
		},
		Argon2: Argon2Config{
			Memory:      uint32(v.GetUint("ARGON2_MEMORY")),
			Iterations:  uint32(v.GetUint("ARGON2_ITERATIONS")),
			Parallelism: uint8(v.GetUint("ARGON2_PARALLELISM")),
		},
		EnvFile: envFile,
	}
	if cfg.Ledger.CompensationAttempts <= 0 {
		return nil, fmt.Errorf("COMPENSATION_ATTEMPTS must be positive, got %d", cfg.Ledger.CompensationAttempts)
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.Log.Format)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("ADMIN_SECRET", "")
	v.SetDefault("RATE_LIMIT_PER_IP", "")
	v.SetDefault("DEVELOPMENT", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SEED_POOLS", "HWSet1:100,HWSet2:100")
	v.SetDefault("COMPENSATION_ATTEMPTS", 4)
	v.SetDefault("COMPENSATION_BACKOFF", "50ms")
	v.SetDefault("COMPENSATION_TIMEOUT", "10s")
	v.SetDefault("ARGON2_MEMORY", 64*1024)
	v.SetDefault("ARGON2_ITERATIONS", 3)
	v.SetDefault("ARGON2_PARALLELISM", 2)
}

// ParseSeedPools parses "name:capacity,name:capacity". An empty string
// yields no pools.
func ParseSeedPools(input string) ([]domain.PoolSpec, error) {
	var specs []domain.PoolSpec
	seen := make(map[string]struct{})
	for _, item := range parseCSV(input) {
		name, raw, ok := strings.Cut(item, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("SEED_POOLS: %q is not name:capacity", item)
		}
		capacity, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || capacity <= 0 {
			return nil, fmt.Errorf("SEED_POOLS: %q needs a positive capacity", item)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("SEED_POOLS: %q listed twice", name)
		}
		seen[name] = struct{}{}
		specs = append(specs, domain.PoolSpec{Name: name, Capacity: capacity})
	}
	return specs, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v.GetString(key))
	}
	return d, nil
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func findEnvFile(dir string) string {
	for i := 0; i < envFileSearchDepth; i++ {
		path := filepath.Join(dir, ".env")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
