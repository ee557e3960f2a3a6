// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package status

import (
	"errors"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-collector-core/pkg/collector"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
	"github.com/DataDog/datadog-collector-core/pkg/collector/registry"
	"github.com/DataDog/datadog-collector-core/pkg/collector/runner"
	"github.com/DataDog/datadog-collector-core/pkg/collector/scheduler"
	"github.com/DataDog/datadog-collector-core/pkg/forwarder"
	"github.com/DataDog/datadog-collector-core/pkg/status/health"
)

func TestChecksMergesViews(t *testing.T) {
	def := &check.Definition{Name: "redis"}
	instances := []*registry.Instance{
		{ID: "redis:a", Definition: def, Interval: 15 * time.Second, EffectiveInterval: 15 * time.Second},
		{ID: "redis:b", Definition: def, Interval: 15 * time.Second, EffectiveInterval: 45 * time.Second,
			Failures: 3, Breaker: registry.BreakerOpen, LastError: "connection refused"},
	}
	next := time.Unix(1700000000, 0)
	entries := []scheduler.EntryStatus{{ID: "redis:b", NextRun: next, InFlight: true}}
	stats := runner.NewCheckStats(10)
	stats.Add("redis:a", 2*time.Second, nil, false, sender.Stats{MetricSamples: 4}, next)
	stats.AddWarnings("redis:a", []error{errors.New("slow replica")})

	checks := Checks(instances, entries, stats)
	require.Len(t, checks, 2)

	assert.Equal(t, "redis", checks[0].Check)
	assert.Equal(t, uint64(1), checks[0].TotalRuns)
	assert.Equal(t, int64(4), checks[0].MetricSamples)
	assert.Equal(t, "2s", checks[0].AverageExecutionTime)
	assert.Equal(t, []string{"slow replica"}, checks[0].LastWarnings)
	assert.False(t, checks[0].InFlight)

	assert.True(t, checks[1].InFlight)
	assert.Equal(t, next, checks[1].NextRun)
	assert.Equal(t, "45s", checks[1].EffectiveInterval)
	assert.Equal(t, registry.BreakerOpen.String(), checks[1].Breaker)
	assert.Zero(t, checks[1].TotalRuns)
}

func TestFormatStatus(t *testing.T) {
	s := &Status{
		Version:   "7.0.0",
		Hostname:  "myhost",
		Pid:       42,
		Time:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		StartedAt: time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC),
		Health:    health.Status{Healthy: []string{"aggregator", "scheduler"}, Unhealthy: []string{"forwarder"}},
		Clocks:    map[string]interface{}{"ntpOffset": 0.25},
		Checks: []CheckStatus{{
			ID: "redis:a", Check: "redis", Interval: "15s", EffectiveInterval: "45s",
			Failures: 2, Breaker: "open", LastError: "connection refused", TotalRuns: 7,
		}},
		ConfigErrors: []collector.ConfigError{{Key: "mysql.yaml#0", Error: `missing required parameter "host"`}},
		Forwarder:    forwarder.Stats{Sent: 12, SpoolLen: 3, LastError: "503", Endpoints: map[string]string{"https://intake": "blocked"}},
	}
	data, err := jsoniter.Marshal(s)
	require.NoError(t, err)

	out, err := FormatStatus(data)
	require.NoError(t, err)
	for _, expected := range []string{
		"Agent (v7.0.0)",
		"Status date: 2024-01-02T03:04:05Z",
		"NTP offset: 0.25s",
		"Healthy: aggregator, scheduler",
		"Unhealthy: forwarder",
		"redis:a\n    -------",
		"Interval: 15s (backing off: 45s)",
		"Next Run: never",
		"Error: connection refused (2 consecutive failures, breaker open)",
		`mysql.yaml#0: missing required parameter "host"`,
		"Sent: 12",
		"Spooled: 3 (0 bytes)",
		"Endpoint https://intake: blocked",
	} {
		assert.Contains(t, out, expected)
	}

	_, err = FormatStatus([]byte("{"))
	assert.Error(t, err)
}

func TestRenderWithoutChecks(t *testing.T) {
	out, err := Render(&Status{Version: "7.0.0"})
	require.NoError(t, err)
	assert.Contains(t, out, "No checks have run yet")
	assert.Contains(t, out, "Healthy: none")
	assert.NotContains(t, out, "NTP offset")
}
