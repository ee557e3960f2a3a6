// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package config loads the agent settings from datadog.yaml and the DD_*
// environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

const (
	// DefaultDDURL is the intake used when dd_url is not set
	DefaultDDURL = "https://api.datadoghq.com"

	configFileName = "datadog.yaml"
)

// ConfigurationProviders helps unmarshalling `config_providers` config param
type ConfigurationProviders struct {
	Name         string `mapstructure:"name"`
	Polling      bool   `mapstructure:"polling"`
	PollInterval string `mapstructure:"poll_interval"`
	TemplateURL  string `mapstructure:"template_url"`
	TemplateDir  string `mapstructure:"template_dir"`
	Token        string `mapstructure:"token"`
}

// Config wraps viper with a lock and the agent helpers
type Config struct {
	*viper.Viper
	sync.RWMutex
}

// NewConfig returns a config with every agent key bound to its default and
// its environment variable.
func NewConfig(name string, envPrefix string, envKeyReplacer *strings.Replacer) *Config {
	c := &Config{Viper: viper.New()}
	c.SetConfigName(name)
	c.SetConfigType("yaml")
	c.SetEnvPrefix(envPrefix)
	c.SetEnvKeyReplacer(envKeyReplacer)
	c.SetTypeByDefaultValue(true)
	initConfig(c)
	return c
}

// BindEnvAndSetDefault sets the default value of key and binds it to the
// DD_ environment variable, or to envvars when given.
func (c *Config) BindEnvAndSetDefault(key string, val interface{}, envvars ...string) {
	c.Lock()
	defer c.Unlock()
	c.Viper.SetDefault(key, val)
	_ = c.Viper.BindEnv(append([]string{key}, envvars...)...)
}

// initConfig initializes the config defaults on a config
func initConfig(config *Config) {
	// Agent
	config.BindEnvAndSetDefault("hostname", "")
	config.BindEnvAndSetDefault("api_key", "")
	config.BindEnvAndSetDefault("tags", []string{})
	config.BindEnvAndSetDefault("dd_url", DefaultDDURL)
	config.BindEnvAndSetDefault("additional_endpoints", []string{})
	config.BindEnvAndSetDefault("confd_path", defaultConfdPath)
	config.BindEnvAndSetDefault("config_providers", []map[string]interface{}{{"name": "file"}})
	config.BindEnvAndSetDefault("status_addr", "localhost:5002")

	// Logging
	config.BindEnvAndSetDefault("log_level", "info")
	config.BindEnvAndSetDefault("log_file", "")
	config.BindEnvAndSetDefault("log_to_console", true)
	config.BindEnvAndSetDefault("log_format_json", false)
	config.BindEnvAndSetDefault("logging_frequency", int64(500))

	// Scheduler and checks
	config.BindEnvAndSetDefault("check_runners", 4)
	config.BindEnvAndSetDefault("scheduler_tick_interval", "1s")
	config.BindEnvAndSetDefault("scheduler_saturation_backoff", "500ms")
	config.BindEnvAndSetDefault("check_default_interval", "15s")
	config.BindEnvAndSetDefault("check_default_timeout", "10s")
	config.BindEnvAndSetDefault("check_failure_threshold", 1)
	config.BindEnvAndSetDefault("check_backoff_factor", 1.5)
	config.BindEnvAndSetDefault("check_backoff_max", "10m")
	config.BindEnvAndSetDefault("check_jitter_ratio", 0.1)

	// Aggregator
	config.BindEnvAndSetDefault("flush_interval", "15s")
	config.BindEnvAndSetDefault("aggregator_max_contexts", 100000)
	config.BindEnvAndSetDefault("aggregator_buffer_size", 100)
	config.BindEnvAndSetDefault("aggregator_max_events_per_flush", 1000)
	config.BindEnvAndSetDefault("aggregator_counter_memory", 50000)

	// Forwarder
	config.BindEnvAndSetDefault("forwarder_queue_size", 32)
	config.BindEnvAndSetDefault("forwarder_timeout", "20s")
	config.BindEnvAndSetDefault("forwarder_max_attempts", 5)
	config.BindEnvAndSetDefault("forwarder_backoff_base", "1s")
	config.BindEnvAndSetDefault("forwarder_backoff_max", "64s")
	config.BindEnvAndSetDefault("forwarder_backoff_jitter", 0.5)
	config.BindEnvAndSetDefault("forwarder_retry_interval", "30s")
	config.BindEnvAndSetDefault("forwarder_endpoint_failure_threshold", 3)
	config.BindEnvAndSetDefault("forwarder_endpoint_block", "30s")
	config.BindEnvAndSetDefault("forwarder_compression", "zstd")

	// Spool
	config.BindEnvAndSetDefault("spool_path", filepath.Join(defaultRunPath, "spool.db"))
	config.BindEnvAndSetDefault("spool_max_entries", 1000)
	config.BindEnvAndSetDefault("spool_max_size", "256mb")
	config.BindEnvAndSetDefault("spool_max_age", "24h")

	// NTP
	config.BindEnvAndSetDefault("ntp.enabled", true)
	config.BindEnvAndSetDefault("ntp.hosts", []string{"0.datadog.pool.ntp.org", "1.datadog.pool.ntp.org", "2.datadog.pool.ntp.org", "3.datadog.pool.ntp.org"})
	config.BindEnvAndSetDefault("ntp.offset_threshold", "60s")
}

// ReadFile loads path into the config. path may be a datadog.yaml file or
// the directory holding it; a directory without one leaves the defaults in
// place. It returns the file actually read, if any.
func (c *Config) ReadFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("unable to load config from %s: %w", path, err)
	}
	if fi.IsDir() {
		path = filepath.Join(path, configFileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.Infof("config: no %s found, using defaults and environment", path)
			return "", nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("unable to read %s: %w", path, err)
	}
	for _, u := range FindUnexpectedUnicode(string(data)) {
		log.Warnf("config: %s: %s %U at byte %d", path, u.reason, u.codepoint, u.position)
	}

	c.Lock()
	defer c.Unlock()
	if err := c.Viper.ReadConfig(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("unable to parse %s: %w", path, err)
	}
	log.Infof("config: loaded %s", path)
	return path, nil
}

// GetDuration returns key as a duration. Bare numbers are seconds, as in
// the agent's historical settings; strings may also use Go duration syntax.
func (c *Config) GetDuration(key string) (time.Duration, error) {
	c.RLock()
	v := c.Viper.Get(key)
	c.RUnlock()
	return toDuration(key, v)
}

func toDuration(key string, v interface{}) (time.Duration, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return t, nil
	case int:
		return time.Duration(t) * time.Second, nil
	case int64:
		return time.Duration(t) * time.Second, nil
	case float64:
		return time.Duration(t * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid duration %q", key, t)
		}
		return d, nil
	}
	return 0, fmt.Errorf("%s: invalid duration %v", key, v)
}
