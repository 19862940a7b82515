package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "LEDGER"

// Config holds settings for `ledgerd run`, loaded from flags, env, or a
// config file.
type Config struct {
	Scenario          string
	DB                string
	Out               string
	PGDSN             string
	Checkpoint        string
	CheckpointEnabled bool
	BatchSize         uint64
	MaxRetries        int
	RetryBackoff      time.Duration
	SettlementExpiry  uint64
	MetricsOut        string
	RunID             string
	LogLevel          string
}

// QueryConfig holds settings for `ledgerd query`.
type QueryConfig struct {
	DB       string
	Contract string
	Msg      string
	LogLevel string
}

// ExportConfig holds settings for `ledgerd export`.
type ExportConfig struct {
	DB           string
	Out          string
	PGDSN        string
	Name         string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":                "./data/snapshot.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"batch-size":         uint64(50),
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"settlement-expiry":  uint64(0),
		"log-level":          "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Scenario:          v.GetString("scenario"),
		DB:                v.GetString("db"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		BatchSize:         v.GetUint64("batch-size"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		SettlementExpiry:  v.GetUint64("settlement-expiry"),
		MetricsOut:        v.GetString("metrics-out"),
		RunID:             v.GetString("run-id"),
		LogLevel:          v.GetString("log-level"),
	}
	if cfg.Scenario == "" {
		return Config{}, fmt.Errorf("scenario is required")
	}
	// Without a durable store every run starts from genesis.
	if cfg.DB == "" {
		cfg.CheckpointEnabled = false
	}

	return cfg, nil
}

// LoadQuery merges config file, environment variables, and flags into QueryConfig.
func LoadQuery(cfgFile string, flags *pflag.FlagSet) (QueryConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"log-level": "warn",
	})
	if err != nil {
		return QueryConfig{}, err
	}

	cfg := QueryConfig{
		DB:       v.GetString("db"),
		Contract: v.GetString("contract"),
		Msg:      v.GetString("msg"),
		LogLevel: v.GetString("log-level"),
	}
	if cfg.DB == "" || cfg.Contract == "" || cfg.Msg == "" {
		return QueryConfig{}, fmt.Errorf("db, contract and msg are required")
	}

	return cfg, nil
}

// LoadExport merges config file, environment variables, and flags into ExportConfig.
func LoadExport(cfgFile string, flags *pflag.FlagSet) (ExportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"name":          "default",
		"log-level":     "info",
	})
	if err != nil {
		return ExportConfig{}, err
	}

	cfg := ExportConfig{
		DB:           v.GetString("db"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		Name:         v.GetString("name"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
	if cfg.DB == "" {
		return ExportConfig{}, fmt.Errorf("db is required")
	}
	if cfg.Out == "" && cfg.PGDSN == "" {
		return ExportConfig{}, fmt.Errorf("at least one of out or pg-dsn is required")
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("ledger")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}
