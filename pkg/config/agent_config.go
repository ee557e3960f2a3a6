// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// AgentConfig is a validated snapshot of the agent settings
type AgentConfig struct {
	// ConfigFile is the datadog.yaml that was read, empty when none was
	ConfigFile string

	Hostname  string
	APIKey    string
	Tags      []string
	Endpoints []string
	ConfdPath string
	Providers []ConfigurationProviders

	StatusAddr string

	LogLevel         string
	LogFile          string
	LogToConsole     bool
	LogFormatJSON    bool
	LoggingFrequency int64

	CheckRunners               int
	SchedulerTickInterval      time.Duration
	SchedulerSaturationBackoff time.Duration
	CheckDefaultInterval       time.Duration
	CheckDefaultTimeout        time.Duration
	CheckFailureThreshold      int
	CheckBackoffFactor         float64
	CheckBackoffMax            time.Duration
	CheckJitterRatio           float64

	FlushInterval               time.Duration
	AggregatorMaxContexts       int
	AggregatorBufferSize        int
	AggregatorMaxEventsPerFlush int
	AggregatorCounterMemory     int

	ForwarderQueueSize                int
	ForwarderTimeout                  time.Duration
	ForwarderMaxAttempts              int
	ForwarderBackoffBase              time.Duration
	ForwarderBackoffMax               time.Duration
	ForwarderBackoffJitter            float64
	ForwarderRetryInterval            time.Duration
	ForwarderEndpointFailureThreshold int
	ForwarderEndpointBlock            time.Duration
	ForwarderCompression              string

	SpoolPath       string
	SpoolMaxEntries int
	SpoolMaxSize    int64
	SpoolMaxAge     time.Duration

	NTPEnabled         bool
	NTPHosts           []string
	NTPOffsetThreshold time.Duration
}

// Load reads the configuration at path (a file or the directory holding
// datadog.yaml) on top of the defaults and the environment, and validates
// it. Every invalid setting is reported.
func Load(path string) (*AgentConfig, error) {
	c := NewConfig("datadog", "DD", strings.NewReplacer(".", "_"))
	used, err := c.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ac, err := c.AgentConfig()
	if err != nil {
		return nil, err
	}
	ac.ConfigFile = used
	return ac, nil
}

// AgentConfig extracts and validates the agent settings
func (c *Config) AgentConfig() (*AgentConfig, error) {
	var errs *multierror.Error
	duration := func(key string) time.Duration {
		d, err := c.GetDuration(key)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		return d
	}

	c.RLock()
	ac := &AgentConfig{
		Hostname:  strings.TrimSpace(c.GetString("hostname")),
		APIKey:    strings.TrimSpace(c.GetString("api_key")),
		Tags:      c.GetStringSlice("tags"),
		ConfdPath: c.GetString("confd_path"),

		StatusAddr: c.GetString("status_addr"),

		LogLevel:         c.GetString("log_level"),
		LogFile:          c.GetString("log_file"),
		LogToConsole:     c.GetBool("log_to_console"),
		LogFormatJSON:    c.GetBool("log_format_json"),
		LoggingFrequency: c.GetInt64("logging_frequency"),

		CheckRunners:          c.GetInt("check_runners"),
		CheckFailureThreshold: c.GetInt("check_failure_threshold"),
		CheckBackoffFactor:    c.GetFloat64("check_backoff_factor"),
		CheckJitterRatio:      c.GetFloat64("check_jitter_ratio"),

		AggregatorMaxContexts:       c.GetInt("aggregator_max_contexts"),
		AggregatorBufferSize:        c.GetInt("aggregator_buffer_size"),
		AggregatorMaxEventsPerFlush: c.GetInt("aggregator_max_events_per_flush"),
		AggregatorCounterMemory:     c.GetInt("aggregator_counter_memory"),

		ForwarderQueueSize:                c.GetInt("forwarder_queue_size"),
		ForwarderMaxAttempts:              c.GetInt("forwarder_max_attempts"),
		ForwarderBackoffJitter:            c.GetFloat64("forwarder_backoff_jitter"),
		ForwarderEndpointFailureThreshold: c.GetInt("forwarder_endpoint_failure_threshold"),
		ForwarderCompression:              strings.ToLower(c.GetString("forwarder_compression")),

		SpoolPath:       c.GetString("spool_path"),
		SpoolMaxEntries: c.GetInt("spool_max_entries"),
		SpoolMaxSize:    int64(c.GetSizeInBytes("spool_max_size")),

		NTPEnabled: c.GetBool("ntp.enabled"),
		NTPHosts:   c.GetStringSlice("ntp.hosts"),
	}
	ac.Endpoints = append([]string{c.GetString("dd_url")}, c.GetStringSlice("additional_endpoints")...)
	if err := c.UnmarshalKey("config_providers", &ac.Providers); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("config_providers: %w", err))
	}
	c.RUnlock()

	ac.SchedulerTickInterval = duration("scheduler_tick_interval")
	ac.SchedulerSaturationBackoff = duration("scheduler_saturation_backoff")
	ac.CheckDefaultInterval = duration("check_default_interval")
	ac.CheckDefaultTimeout = duration("check_default_timeout")
	ac.CheckBackoffMax = duration("check_backoff_max")
	ac.FlushInterval = duration("flush_interval")
	ac.ForwarderTimeout = duration("forwarder_timeout")
	ac.ForwarderBackoffBase = duration("forwarder_backoff_base")
	ac.ForwarderBackoffMax = duration("forwarder_backoff_max")
	ac.ForwarderRetryInterval = duration("forwarder_retry_interval")
	ac.ForwarderEndpointBlock = duration("forwarder_endpoint_block")
	ac.SpoolMaxAge = duration("spool_max_age")
	ac.NTPOffsetThreshold = duration("ntp.offset_threshold")

	if ac.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			ac.Hostname = h
		}
	}

	if err := ac.validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return ac, nil
}

func (ac *AgentConfig) validate() error {
	var errs *multierror.Error
	positive := func(key string, d time.Duration) {
		if d <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s must be positive, got %s", key, d))
		}
	}
	atLeast := func(key string, v, lowest int) {
		if v < lowest {
			errs = multierror.Append(errs, fmt.Errorf("%s must be at least %d, got %d", key, lowest, v))
		}
	}
	ratio := func(key string, v, max float64) {
		if v < 0 || v > max {
			errs = multierror.Append(errs, fmt.Errorf("%s must be between 0 and %g, got %g", key, max, v))
		}
	}

	for _, endpoint := range ac.Endpoints {
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = multierror.Append(errs, fmt.Errorf("invalid endpoint %q", endpoint))
		}
	}

	atLeast("check_runners", ac.CheckRunners, 1)
	positive("scheduler_tick_interval", ac.SchedulerTickInterval)
	positive("scheduler_saturation_backoff", ac.SchedulerSaturationBackoff)
	positive("check_default_interval", ac.CheckDefaultInterval)
	positive("check_default_timeout", ac.CheckDefaultTimeout)
	atLeast("check_failure_threshold", ac.CheckFailureThreshold, 1)
	if ac.CheckBackoffFactor < 1 {
		errs = multierror.Append(errs, fmt.Errorf("check_backoff_factor must be at least 1, got %g", ac.CheckBackoffFactor))
	}
	positive("check_backoff_max", ac.CheckBackoffMax)
	ratio("check_jitter_ratio", ac.CheckJitterRatio, 0.1)

	if ac.FlushInterval < time.Second {
		errs = multierror.Append(errs, fmt.Errorf("flush_interval must be at least 1s, got %s", ac.FlushInterval))
	}
	atLeast("aggregator_max_contexts", ac.AggregatorMaxContexts, 1)
	atLeast("aggregator_buffer_size", ac.AggregatorBufferSize, 0)
	atLeast("aggregator_max_events_per_flush", ac.AggregatorMaxEventsPerFlush, 0)
	atLeast("aggregator_counter_memory", ac.AggregatorCounterMemory, 1)

	atLeast("forwarder_queue_size", ac.ForwarderQueueSize, 1)
	positive("forwarder_timeout", ac.ForwarderTimeout)
	atLeast("forwarder_max_attempts", ac.ForwarderMaxAttempts, 1)
	positive("forwarder_backoff_base", ac.ForwarderBackoffBase)
	if ac.ForwarderBackoffMax < ac.ForwarderBackoffBase {
		errs = multierror.Append(errs, fmt.Errorf("forwarder_backoff_max (%s) is lower than forwarder_backoff_base (%s)", ac.ForwarderBackoffMax, ac.ForwarderBackoffBase))
	}
	ratio("forwarder_backoff_jitter", ac.ForwarderBackoffJitter, 1)
	positive("forwarder_retry_interval", ac.ForwarderRetryInterval)
	atLeast("forwarder_endpoint_failure_threshold", ac.ForwarderEndpointFailureThreshold, 1)
	positive("forwarder_endpoint_block", ac.ForwarderEndpointBlock)
	switch ac.ForwarderCompression {
	case "", "none", "zstd":
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown forwarder_compression %q", ac.ForwarderCompression))
	}

	if ac.SpoolPath == "" {
		errs = multierror.Append(errs, fmt.Errorf("spool_path is empty"))
	}
	atLeast("spool_max_entries", ac.SpoolMaxEntries, 1)
	if ac.SpoolMaxSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("spool_max_size must be positive"))
	}
	if ac.SpoolMaxAge < 0 {
		errs = multierror.Append(errs, fmt.Errorf("spool_max_age must not be negative"))
	}

	for _, p := range ac.Providers {
		switch p.Name {
		case "file", "consul":
		default:
			errs = multierror.Append(errs, fmt.Errorf("unknown config provider %q", p.Name))
		}
	}
	if ac.NTPEnabled && ac.NTPOffsetThreshold <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("ntp.offset_threshold must be positive"))
	}
	return errs.ErrorOrNil()
}
