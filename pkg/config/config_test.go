// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datadog.yaml"), []byte(content), 0600))
	return dir
}

func TestDefaults(t *testing.T) {
	ac, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultDDURL}, ac.Endpoints)
	assert.Equal(t, 4, ac.CheckRunners)
	assert.Equal(t, int64(500), ac.LoggingFrequency)
	assert.Equal(t, time.Second, ac.SchedulerTickInterval)
	assert.Equal(t, 500*time.Millisecond, ac.SchedulerSaturationBackoff)
	assert.Equal(t, 15*time.Second, ac.CheckDefaultInterval)
	assert.Equal(t, 10*time.Second, ac.CheckDefaultTimeout)
	assert.Equal(t, 1.5, ac.CheckBackoffFactor)
	assert.Equal(t, 10*time.Minute, ac.CheckBackoffMax)
	assert.Equal(t, 15*time.Second, ac.FlushInterval)
	assert.Equal(t, 100000, ac.AggregatorMaxContexts)
	assert.Equal(t, 20*time.Second, ac.ForwarderTimeout)
	assert.Equal(t, 64*time.Second, ac.ForwarderBackoffMax)
	assert.Equal(t, "zstd", ac.ForwarderCompression)
	assert.Equal(t, int64(256*1024*1024), ac.SpoolMaxSize)
	assert.Equal(t, 24*time.Hour, ac.SpoolMaxAge)
	assert.True(t, ac.NTPEnabled)
	assert.Equal(t, time.Minute, ac.NTPOffsetThreshold)
	assert.Equal(t, []ConfigurationProviders{{Name: "file"}}, ac.Providers)
	assert.NotEmpty(t, ac.Hostname)
	assert.Empty(t, ac.ConfigFile)
}

func TestLoadFile(t *testing.T) {
	dir := writeConfig(t, `
hostname: web1
api_key: " secret\n"
tags: [env:prod, role:web]
dd_url: https://intake.example.com
additional_endpoints:
  - https://backup.example.com
flush_interval: 30
check_default_timeout: 2500ms
forwarder_compression: none
spool_max_size: 1mb
config_providers:
  - name: file
  - name: consul
    template_url: http://localhost:8500
    template_dir: datadog/check_configs
ntp:
  enabled: false
`)
	ac, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "datadog.yaml"), ac.ConfigFile)
	assert.Equal(t, "web1", ac.Hostname)
	assert.Equal(t, "secret", ac.APIKey)
	assert.Equal(t, []string{"env:prod", "role:web"}, ac.Tags)
	assert.Equal(t, []string{"https://intake.example.com", "https://backup.example.com"}, ac.Endpoints)
	assert.Equal(t, 30*time.Second, ac.FlushInterval)
	assert.Equal(t, 2500*time.Millisecond, ac.CheckDefaultTimeout)
	assert.Equal(t, "none", ac.ForwarderCompression)
	assert.Equal(t, int64(1024*1024), ac.SpoolMaxSize)
	assert.False(t, ac.NTPEnabled)
	require.Len(t, ac.Providers, 2)
	assert.Equal(t, "consul", ac.Providers[1].Name)
	assert.Equal(t, "datadog/check_configs", ac.Providers[1].TemplateDir)

	// the file itself can be passed too
	ac, err = Load(filepath.Join(dir, "datadog.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "web1", ac.Hostname)
}

func TestEnvironmentOverrides(t *testing.T) {
	dir := writeConfig(t, "flush_interval: 30\ncheck_runners: 2\n")
	t.Setenv("DD_FLUSH_INTERVAL", "45s")
	t.Setenv("DD_CHECK_RUNNERS", "8")
	t.Setenv("DD_TAGS", "env:staging team:core")
	t.Setenv("DD_NTP_OFFSET_THRESHOLD", "5")

	ac, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, ac.FlushInterval)
	assert.Equal(t, 8, ac.CheckRunners)
	assert.Equal(t, []string{"env:staging", "team:core"}, ac.Tags)
	assert.Equal(t, 5*time.Second, ac.NTPOffsetThreshold)
}

func TestValidationReportsEveryError(t *testing.T) {
	dir := writeConfig(t, `
check_runners: 0
flush_interval: 500ms
dd_url: "ftp://intake"
forwarder_compression: gzip
check_jitter_ratio: 0.5
scheduler_tick_interval: soon
config_providers:
  - name: etcd
`)
	_, err := Load(dir)
	require.Error(t, err)
	for _, want := range []string{
		"check_runners must be at least 1",
		"flush_interval must be at least 1s",
		`invalid endpoint "ftp://intake"`,
		`unknown forwarder_compression "gzip"`,
		"check_jitter_ratio must be between 0 and 0.1",
		`scheduler_tick_interval: invalid duration "soon"`,
		`unknown config provider "etcd"`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	dir := writeConfig(t, "hostname: [unterminated\n")
	_, err = Load(dir)
	assert.Error(t, err)

	// a directory without datadog.yaml falls back to defaults
	ac, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, ac.ConfigFile)
}

func TestToDuration(t *testing.T) {
	tests := []struct {
		in   interface{}
		want time.Duration
	}{
		{15, 15 * time.Second},
		{int64(2), 2 * time.Second},
		{0.5, 500 * time.Millisecond},
		{"10", 10 * time.Second},
		{"1m30s", 90 * time.Second},
		{time.Minute, time.Minute},
		{nil, 0},
	}
	for _, tc := range tests {
		got, err := toDuration("key", tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
	_, err := toDuration("key", true)
	assert.Error(t, err)
}
