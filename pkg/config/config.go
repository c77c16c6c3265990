// Package config is a plain configuration struct for the indexer
// subcommands, with defaults and environment-variable overlays. The
// cmd/indexer subcommands read their cobra flags directly and do not use
// this package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/meridianchain/stateindexer/pkg/writerpool"
)

// Config holds everything the indexer and submitter subcommands need to
// wire their components.
type Config struct {
	// LogLevel and LogJSON configure pkg/log.
	LogLevel string
	LogJSON  bool

	// DataDir holds the authenticated-state SMT store and bookkeeping
	// store bbolt files.
	DataDir string

	// RelationalDSN is the sqlite database path the writer pool and
	// brief generator read and write.
	RelationalDSN string

	// Writer pool tuning, defaulted from writerpool.Default* when zero.
	Workers          int
	ChannelCapacity  int
	StartupBatchSize int
	ReceiveTimeout   time.Duration
	PanicOnDBErrors  bool
	HistoricalMode   bool

	// ReconcileInterval is the periodic root-consistency check interval.
	ReconcileInterval time.Duration

	// SettlementAddr is the settlement service's gRPC address.
	SettlementAddr string
	// SubmitterPollInterval is the driver's caught-up sleep duration.
	SubmitterPollInterval time.Duration

	// AdminAddr serves /health, /ready, /live, and /metrics.
	AdminAddr string
}

// Default returns a Config populated with the writer pool's Default*
// values and the log, path, interval, and address defaults the cmd/indexer
// flags use.
func Default() Config {
	return Config{
		LogLevel:              "info",
		LogJSON:               true,
		DataDir:               "./indexer-data",
		RelationalDSN:         "./indexer-data/relational.db",
		Workers:               writerpool.DefaultWorkers,
		ChannelCapacity:       writerpool.DefaultChannelCapacity,
		StartupBatchSize:      writerpool.DefaultStartupBatchSize,
		ReceiveTimeout:        writerpool.DefaultReceiveTimeout,
		ReconcileInterval:     30 * time.Second,
		SettlementAddr:        "127.0.0.1:9090",
		SubmitterPollInterval: time.Second,
		AdminAddr:             "127.0.0.1:9100",
	}
}

// ApplyEnv overlays process environment variables onto cfg, for
// deployments that configure the indexer without flags (e.g. systemd unit
// files or container orchestrators). Flags set explicitly on the command
// line should be applied after ApplyEnv so they take precedence.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv("INDEXER_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv("INDEXER_LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config.ApplyEnv: INDEXER_LOG_JSON: %w", err)
		}
		c.LogJSON = b
	}
	if v, ok := os.LookupEnv("INDEXER_DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := os.LookupEnv("INDEXER_RELATIONAL_DSN"); ok {
		c.RelationalDSN = v
	}
	if v, ok := os.LookupEnv("INDEXER_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config.ApplyEnv: INDEXER_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v, ok := os.LookupEnv("INDEXER_PANIC_ON_DB_ERRORS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config.ApplyEnv: INDEXER_PANIC_ON_DB_ERRORS: %w", err)
		}
		c.PanicOnDBErrors = b
	}
	if v, ok := os.LookupEnv("INDEXER_HISTORICAL_MODE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config.ApplyEnv: INDEXER_HISTORICAL_MODE: %w", err)
		}
		c.HistoricalMode = b
	}
	if v, ok := os.LookupEnv("INDEXER_SETTLEMENT_ADDR"); ok {
		c.SettlementAddr = v
	}
	if v, ok := os.LookupEnv("INDEXER_ADMIN_ADDR"); ok {
		c.AdminAddr = v
	}
	return nil
}
