package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mehmetymw/tap-libsql/internal/types"
)

// Mode is the resolved connection topology.
type Mode int

const (
	// ModeLocal opens a plain local database file.
	ModeLocal Mode = iota
	// ModeReplica opens a local file kept in sync with a remote endpoint.
	ModeReplica
	// ModeRemote mirrors a remote-only database into a temporary local file.
	ModeRemote
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeReplica:
		return "embedded_replica"
	case ModeRemote:
		return "remote"
	}
	return "unknown"
}

// Table configures one table to extract. Fields are plain and mutable so a
// later catalog-merge step may overwrite ReplicationMethod, ReplicationKey
// or PrimaryKey before the sync starts; whatever is set at sync time wins,
// even over keys detected from the table schema.
type Table struct {
	Name              string                  `yaml:"name"`
	ReplicationMethod types.ReplicationMethod `yaml:"replication_method"`
	ReplicationKey    string                  `yaml:"replication_key"`
	PrimaryKey        []string                `yaml:"primary_key"`
}

type Retry struct {
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMs   int `yaml:"backoff_ms"`
}

type KafkaSink struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type SinkConfig struct {
	Type  string    `yaml:"type"`
	Path  string    `yaml:"path"`
	Kafka KafkaSink `yaml:"kafka"`
}

type Config struct {
	LocalPath   string     `yaml:"local_path"`
	SyncURL     string     `yaml:"sync_url"`
	DatabaseURL string     `yaml:"database_url"`
	AuthToken   string     `yaml:"auth_token"`
	Tables      []Table    `yaml:"tables"`
	BatchSize   int        `yaml:"batch_size"`
	Retry       Retry      `yaml:"retry"`
	Sink        SinkConfig `yaml:"sink"`
	StateDir    string     `yaml:"state_dir"`
}

func LoadFromEnv() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		return Config{}, errors.New("CONFIG_PATH is not set")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, err
	}

	// Apply defaults
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BackoffMs <= 0 {
		c.Retry.BackoffMs = 1000
	}
	if c.Sink.Type == "" {
		c.Sink.Type = "jsonl"
	}
	if c.StateDir == "" {
		c.StateDir = "state"
	}
	for i := range c.Tables {
		if c.Tables[i].ReplicationMethod == "" {
			c.Tables[i].ReplicationMethod = types.FullTable
		}
	}

	return c, nil
}

// Mode resolves the connection topology. Call Validate first; Mode assumes
// the configuration holds exactly one valid shape.
func (c Config) Mode() Mode {
	switch {
	case c.LocalPath != "" && c.SyncURL != "":
		return ModeReplica
	case c.DatabaseURL != "":
		return ModeRemote
	default:
		return ModeLocal
	}
}

// Validate checks that the configuration matches exactly one of the three
// connection shapes and that every table is internally consistent.
func (c Config) Validate() error {
	local := c.LocalPath != ""
	sync := c.SyncURL != ""
	remote := c.DatabaseURL != ""

	isReplica := local && sync && !remote
	isRemote := remote && !local && !sync
	isLocal := local && !sync && !remote

	if !isReplica && !isRemote && !isLocal {
		return fmt.Errorf("%w: must provide one of: local_path + sync_url (embedded replica), database_url (remote only), or local_path (local only)", types.ErrConfig)
	}

	if (sync || remote) && c.AuthToken == "" {
		return fmt.Errorf("%w: auth_token is required when sync_url or database_url is set", types.ErrConfig)
	}

	if len(c.Tables) == 0 {
		return fmt.Errorf("%w: no tables configured", types.ErrConfig)
	}
	for _, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("%w: table with empty name", types.ErrConfig)
		}
		switch t.ReplicationMethod {
		case types.FullTable:
		case types.Incremental:
			if t.ReplicationKey == "" {
				return fmt.Errorf("%w: table %q has replication_method=INCREMENTAL but no replication_key", types.ErrConfig, t.Name)
			}
		default:
			return fmt.Errorf("%w: table %q has unknown replication_method %q", types.ErrConfig, t.Name, t.ReplicationMethod)
		}
	}

	return nil
}
