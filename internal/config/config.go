// Package config binds the locate-from-db CLI surface (positional
// arguments plus the two permitted environment variables) into a single
// immutable Config value.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for one locate-from-db run.
type Config struct {
	OutputDir       string
	CalibrationFile string
	BasemapFile     string
	DatabaseDSN     string
	Selector        string
	Worker          WorkerConfig
	Log             LogConfig
}

type WorkerConfig struct {
	// NumWorkers is the size of the batch-runner goroutine pool.
	NumWorkers int
}

type LogConfig struct {
	Level string
}

// Load resolves Config from CLI positional args plus the DATABASE_URL and
// NUM_WORKERS environment variables (env overrides the DSN positional arg
// only when the arg is empty; a positive NUM_WORKERS overrides the default
// of one worker per CPU).
//
// args is the CLI argument vector after the program name:
//
//	<output_dir> <calibration_file> <basemap_file> <database_dsn> [selector...]
func Load(args []string) (*Config, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("usage: locate-from-db <output_dir> <calibration_file> <basemap_file> <database_dsn> [selector...]")
	}

	viper.AutomaticEnv()

	cfg := &Config{
		OutputDir:       args[0],
		CalibrationFile: args[1],
		BasemapFile:     args[2],
		DatabaseDSN:     args[3],
		Log: LogConfig{
			// Fixed rather than read from the environment: §6 permits only
			// DATABASE_URL and NUM_WORKERS.
			Level: "info",
		},
	}

	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = viper.GetString("DATABASE_URL")
	}
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("no database DSN: pass it as an argument or set DATABASE_URL")
	}

	if len(args) > 4 {
		cfg.Selector = strings.Join(args[4:], " ")
	}

	cfg.Worker.NumWorkers = viper.GetInt("NUM_WORKERS")
	if cfg.Worker.NumWorkers <= 0 {
		cfg.Worker.NumWorkers = runtime.NumCPU()
	}

	return cfg, nil
}
