// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/spf13/viper"
)

type Config struct {
	Logger  log.Logger `yaml:"-" json:"-"`
	Logging Logging

	Http  HTTP
	Admin Admin

	Database Database

	Provider       Provider
	Routing        Routing
	Availability   Availability
	Reconciliation Reconciliation
	Secrets        Secrets
	Notifications  *Notifications
	Stream         *Stream
}

type Logging struct {
	Format string
	Level  string
}

type HTTP struct {
	BindAddress string
}

type Admin struct {
	BindAddress string
}

func Empty() *Config {
	return &Config{
		Logger: log.NewNopLogger(),
		Http: HTTP{
			BindAddress: ":8080",
		},
		Admin: Admin{
			BindAddress: ":9090",
		},
		Database: Database{
			// Default to a local sqlite database when nothing else is configured.
			SQLite: &SQLite{
				Path: "bigfin.db",
			},
		},
		Provider:       providerDefaults(),
		Routing:        routingDefaults(),
		Availability:   availabilityDefaults(),
		Reconciliation: reconciliationDefaults(),
		Secrets:        secretsDefaults(),
	}
}

func FromFile(path string) (*Config, error) {
	cfg := Empty()
	if path != "" {
		bs, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %v", path, err)
		}
		return Read(bs)
	}
	cfg = setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Read(data []byte) (*Config, error) {
	vip := viper.New()
	vip.SetConfigType("yaml")
	if err := vip.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("problem reading config: %v", err)
	}

	cfg := Empty()
	if err := vip.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("problem unmarshaling config: %v", err)
	}

	cfg = setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg *Config) *Config {
	if strings.EqualFold(cfg.Logging.Format, "json") {
		cfg.Logger = log.NewJSONLogger(os.Stderr)
	} else {
		cfg.Logger = log.NewLogfmtLogger(os.Stderr)
	}

	cfg.Logger = log.With(cfg.Logger, "ts", log.DefaultTimestampUTC)
	cfg.Logger = log.With(cfg.Logger, "caller", log.DefaultCaller)

	return cfg
}

// Validate checks a Config's fields and confirms their values conform
// to expectations.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("missing Config")
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %v", err)
	}
	if err := cfg.Provider.Validate(); err != nil {
		return fmt.Errorf("provider: %v", err)
	}
	if err := cfg.Routing.Validate(); err != nil {
		return fmt.Errorf("routing: %v", err)
	}
	if err := cfg.Availability.Validate(); err != nil {
		return fmt.Errorf("availability: %v", err)
	}
	if err := cfg.Reconciliation.Validate(); err != nil {
		return fmt.Errorf("reconciliation: %v", err)
	}
	if err := cfg.Secrets.Validate(); err != nil {
		return fmt.Errorf("secrets: %v", err)
	}
	if err := cfg.Notifications.Validate(); err != nil {
		return fmt.Errorf("notifications: %v", err)
	}
	if err := cfg.Stream.Validate(); err != nil {
		return fmt.Errorf("stream: %v", err)
	}
	return nil
}
