// Package config loads the sync engine configuration from a YAML file or
// CLI flags, with secrets taken from the environment (a local .env file is
// honored).
package config

import (
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultSyncInterval = 15 * time.Minute
	defaultJournalDir   = "./wal/syncs"
)

// Config is the runtime configuration of the sync engine.
//
// EncryptionKey comes only from the HODLSYNC_ENCRYPTION_KEY environment
// variable (hex, 32 bytes); it never lives in the YAML file. Empty means
// credentials are stored unencrypted.
type Config struct {
	DatabaseURL   string
	SolanaRPCURL  string
	SyncInterval  time.Duration
	JournalDir    string
	EncryptionKey string
}

// yamlConfig is the on-disk shape. The interval is a human-editable
// duration string ("15m", "1h30m") rather than raw nanoseconds, and the
// encryption key has no field at all.
type yamlConfig struct {
	DatabaseURL  string `yaml:"database_url"`
	SolanaRPCURL string `yaml:"solana_rpc_url"`
	SyncInterval string `yaml:"sync_interval"`
	JournalDir   string `yaml:"journal_dir"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw yamlConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}

	c.DatabaseURL = raw.DatabaseURL
	c.SolanaRPCURL = raw.SolanaRPCURL
	c.JournalDir = raw.JournalDir
	if raw.SyncInterval != "" {
		interval, err := time.ParseDuration(raw.SyncInterval)
		if err != nil {
			return errors.Wrapf(err, "parse sync_interval %q", raw.SyncInterval)
		}
		c.SyncInterval = interval
	}
	return nil
}

func (c Config) MarshalYAML() (any, error) {
	return yamlConfig{
		DatabaseURL:  c.DatabaseURL,
		SolanaRPCURL: c.SolanaRPCURL,
		SyncInterval: c.SyncInterval.String(),
		JournalDir:   c.JournalDir,
	}, nil
}

// Flags are the process-level switches parsed alongside the config.
type Flags struct {
	ConfigPath string
	Setup      bool
	Once       bool
	UserID     string
}

// Get parses flags, loads .env, and resolves the configuration: YAML file
// if --config is given, flag/env values otherwise.
func Get() (*Config, *Flags, error) {
	flags := &Flags{}
	flag.StringVar(&flags.ConfigPath, "config", "", "path to yaml config")
	flag.BoolVar(&flags.Setup, "setup", false, "run the interactive setup wizard and exit")
	flag.BoolVar(&flags.Once, "once", false, "sync once and exit instead of running on an interval")
	flag.StringVar(&flags.UserID, "user", "", "sync only this user id")

	databaseURL := flag.String("db", "", "postgres DSN (defaults to DATABASE_URL env)")
	solanaRPC := flag.String("solana-rpc", "", "Solana RPC endpoint (public mainnet when empty)")
	interval := flag.Duration("interval", defaultSyncInterval, "delay between sync rounds")
	journalDir := flag.String("journal-dir", defaultJournalDir, "directory for the sync outcome journal")

	flag.Parse()

	// a missing .env is fine; explicit environment always wins
	_ = godotenv.Load()

	var cfg *Config
	if flags.ConfigPath != "" {
		loaded, err := fromYaml(flags.ConfigPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	} else {
		cfg = &Config{
			DatabaseURL:  *databaseURL,
			SolanaRPCURL: *solanaRPC,
			SyncInterval: *interval,
			JournalDir:   *journalDir,
		}
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	// the wizard collects its own DSN, so only a running engine needs one
	if cfg.DatabaseURL == "" && !flags.Setup {
		return nil, flags, errors.New("database DSN is required: set --db, database_url in yaml, or DATABASE_URL")
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = defaultSyncInterval
	}
	if cfg.JournalDir == "" {
		cfg.JournalDir = defaultJournalDir
	}
	cfg.EncryptionKey = os.Getenv("HODLSYNC_ENCRYPTION_KEY")

	return cfg, flags, nil
}

func fromYaml(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config file")
	}
	return &cfg, nil
}

// Write saves the configuration (minus secrets) as YAML, used by the setup
// wizard.
func (c *Config) Write(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.Wrap(os.WriteFile(path, raw, 0o600), "write config file")
}
