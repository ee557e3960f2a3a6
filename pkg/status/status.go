// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package status defines the agent status document served on the status
// endpoint, and its text rendering.
package status

import (
	"time"

	"github.com/DataDog/datadog-collector-core/pkg/aggregator"
	"github.com/DataDog/datadog-collector-core/pkg/collector"
	"github.com/DataDog/datadog-collector-core/pkg/collector/registry"
	"github.com/DataDog/datadog-collector-core/pkg/collector/runner"
	"github.com/DataDog/datadog-collector-core/pkg/collector/scheduler"
	"github.com/DataDog/datadog-collector-core/pkg/forwarder"
	"github.com/DataDog/datadog-collector-core/pkg/status/health"
)

// Status is a point in time view of the agent
type Status struct {
	Version      string                  `json:"version"`
	Hostname     string                  `json:"hostname"`
	Pid          int                     `json:"pid"`
	Time         time.Time               `json:"time"`
	StartedAt    time.Time               `json:"started_at"`
	Health       health.Status           `json:"health"`
	Clocks       map[string]interface{}  `json:"clocks"`
	Checks       []CheckStatus           `json:"checks"`
	ConfigErrors []collector.ConfigError `json:"config_errors"`
	Aggregator   aggregator.Stats        `json:"aggregator"`
	Forwarder    forwarder.Stats         `json:"forwarder"`
}

// CheckStatus describes one check instance
type CheckStatus struct {
	ID                   string    `json:"id"`
	Check                string    `json:"check"`
	Interval             string    `json:"interval"`
	EffectiveInterval    string    `json:"effective_interval"`
	Failures             int       `json:"failures"`
	Breaker              string    `json:"breaker"`
	Removed              bool      `json:"removed"`
	InFlight             bool      `json:"in_flight"`
	NextRun              time.Time `json:"next_run"`
	LastError            string    `json:"last_error,omitempty"`
	TotalRuns            uint64    `json:"total_runs"`
	TotalErrors          uint64    `json:"total_errors"`
	TotalTimeouts        uint64    `json:"total_timeouts"`
	AverageExecutionTime string    `json:"average_execution_time"`
	MetricSamples        int64     `json:"metric_samples"`
	ServiceChecks        int64     `json:"service_checks"`
	Events               int64     `json:"events"`
	LastWarnings         []string  `json:"last_warnings,omitempty"`
}

// Checks merges the registry, scheduler and runner views of every instance
func Checks(instances []*registry.Instance, entries []scheduler.EntryStatus, stats *runner.CheckStats) []CheckStatus {
	scheduled := make(map[string]scheduler.EntryStatus, len(entries))
	for _, e := range entries {
		scheduled[string(e.ID)] = e
	}

	out := make([]CheckStatus, 0, len(instances))
	for _, inst := range instances {
		cs := CheckStatus{
			ID:                string(inst.ID),
			Check:             inst.Definition.Name,
			Interval:          inst.Interval.String(),
			EffectiveInterval: inst.EffectiveInterval.String(),
			Failures:          inst.Failures,
			Breaker:           inst.Breaker.String(),
			Removed:           inst.Removed,
			LastError:         inst.LastError,
		}
		if e, ok := scheduled[cs.ID]; ok {
			cs.InFlight = e.InFlight
			cs.NextRun = e.NextRun
		}
		if stats != nil {
			if s, ok := stats.Get(inst.ID); ok {
				cs.TotalRuns = s.TotalRuns
				cs.TotalErrors = s.TotalErrors
				cs.TotalTimeouts = s.TotalTimeouts
				cs.AverageExecutionTime = s.AverageExecutionTime.String()
				cs.MetricSamples = s.MetricSamples
				cs.ServiceChecks = s.ServiceChecks
				cs.Events = s.Events
				cs.LastWarnings = s.LastWarnings
			}
		}
		out = append(out, cs)
	}
	return out
}
