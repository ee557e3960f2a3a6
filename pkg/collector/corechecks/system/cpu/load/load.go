// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package load implements the check reporting the host load averages and
// uptime.
package load

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
	"github.com/DataDog/datadog-collector-core/pkg/collector/corechecks"
)

// CheckName is the name of the check
const CheckName = "load"

// For testing purpose
var (
	loadAvg  = load.AvgWithContext
	cpuCount = cpu.CountsWithContext
	uptime   = host.UptimeWithContext
)

// LoadCheck doesn't need additional fields
type LoadCheck struct {
	corechecks.CheckBase
	nbCPU int
}

// Definition returns the load check definition
func Definition() *check.Definition {
	return &check.Definition{
		Name:            CheckName,
		Capabilities:    check.ProducesMetrics,
		DefaultInterval: 15 * time.Second,
		DefaultTimeout:  5 * time.Second,
		Factory: func() check.Check {
			return &LoadCheck{CheckBase: corechecks.NewCheckBase(CheckName)}
		},
	}
}

// Run executes the check
func (c *LoadCheck) Run(ctx context.Context, _ check.InstanceConfig, s sender.Sender) error {
	avg, err := loadAvg(ctx)
	if err != nil {
		return fmt.Errorf("could not gather load metrics: %w", err)
	}

	s.Gauge("system.load.1", avg.Load1, "", nil)
	s.Gauge("system.load.5", avg.Load5, "", nil)
	s.Gauge("system.load.15", avg.Load15, "", nil)

	if c.nbCPU == 0 {
		n, err := cpuCount(ctx, true)
		if err != nil || n <= 0 {
			_ = c.Warnf("could not count the CPUs, normalized load not reported: %v", err)
		} else {
			c.nbCPU = n
		}
	}
	if c.nbCPU > 0 {
		cpus := float64(c.nbCPU)
		s.Gauge("system.load.norm.1", avg.Load1/cpus, "", nil)
		s.Gauge("system.load.norm.5", avg.Load5/cpus, "", nil)
		s.Gauge("system.load.norm.15", avg.Load15/cpus, "", nil)
	}

	up, err := uptime(ctx)
	if err != nil {
		_ = c.Warnf("could not read the host uptime: %s", err)
		return nil
	}
	s.Gauge("system.uptime", float64(up), "", nil)
	return nil
}
