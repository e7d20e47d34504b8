package main

import (
	"fmt"
	"os"

	"github.com/mwantia/flashfs/engine/store"
	"github.com/mwantia/flashfs/engine/store/consul"
	"github.com/mwantia/flashfs/engine/store/memory"
	"github.com/mwantia/flashfs/engine/store/postgres"
	"github.com/mwantia/flashfs/engine/store/s3"
	"github.com/mwantia/flashfs/engine/store/sqlite"
	"gopkg.in/yaml.v3"
)

// Config selects and parameterizes the store backing the device.
type Config struct {
	Store struct {
		Type string `yaml:"type"`
		Path string `yaml:"path"`

		Consul struct {
			Address    string `yaml:"address"`
			Token      string `yaml:"token"`
			Datacenter string `yaml:"datacenter"`
			Prefix     string `yaml:"prefix"`
		} `yaml:"consul"`

		S3 struct {
			Endpoint  string `yaml:"endpoint"`
			Bucket    string `yaml:"bucket"`
			AccessKey string `yaml:"access_key"`
			SecretKey string `yaml:"secret_key"`
			Prefix    string `yaml:"prefix"`
			UseSSL    bool   `yaml:"use_ssl"`
		} `yaml:"s3"`

		Postgres struct {
			ConnString string `yaml:"conn_string"`
			Namespace  string `yaml:"namespace"`
		} `yaml:"postgres"`
	} `yaml:"store"`

	LogLevel  string `yaml:"log_level"`
	ReadOnly  bool   `yaml:"read_only"`
	ChunkSize int64  `yaml:"chunk_size"`
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Store.Type = "memory"
	cfg.LogLevel = "error"

	if path == "" {
		return cfg, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func (cfg *Config) openStore() (store.Store, error) {
	switch cfg.Store.Type {
	case "memory", "":
		return memory.NewMemoryStore(), nil

	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "flashfs.db"
		}
		return sqlite.NewSQLiteStore(path)

	case "consul":
		return consul.NewConsulStore(&consul.ConsulStoreConfig{
			Address:    cfg.Store.Consul.Address,
			Token:      cfg.Store.Consul.Token,
			Datacenter: cfg.Store.Consul.Datacenter,
			Prefix:     cfg.Store.Consul.Prefix,
		})

	case "s3":
		return s3.NewS3Store(cfg.Store.S3.Endpoint, cfg.Store.S3.Bucket,
			cfg.Store.S3.AccessKey, cfg.Store.S3.SecretKey,
			cfg.Store.S3.Prefix, cfg.Store.S3.UseSSL)

	case "postgres":
		return postgres.NewPostgresStore(cfg.Store.Postgres.ConnString, cfg.Store.Postgres.Namespace)

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}
