// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package ntp implements the check reporting the offset of the local clock
// against a set of NTP servers.
package ntp

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"math"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"golang.org/x/sync/errgroup"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
	"github.com/DataDog/datadog-collector-core/pkg/collector/corechecks"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/servicecheck"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

const (
	// CheckName is the name of the check
	CheckName = "ntp"

	// ServiceCheckName reports whether the clock is in sync
	ServiceCheckName = "ntp.in_sync"

	defaultMinCollectionInterval = 900 * time.Second
	defaultTimeout               = 60 * time.Second
	defaultPort                  = 123
	defaultVersion               = 3
	defaultQueryTimeout          = 5 * time.Second
)

var (
	ntpExpVar = expvar.NewFloat("ntpOffset")
	// for testing purpose
	ntpQuery = ntp.QueryWithOptions
)

type ntpConfig struct {
	hosts           []string
	port            int
	version         int
	queryTimeout    time.Duration
	offsetThreshold time.Duration
}

// NTPCheck only has sense when set as a single instance
type NTPCheck struct {
	corechecks.CheckBase
	defaults ntpConfig
	cfg      ntpConfig
}

// Definition returns the ntp check definition. hosts and offsetThreshold
// are used by instances not setting their own.
func Definition(hosts []string, offsetThreshold time.Duration) *check.Definition {
	defaults := ntpConfig{
		hosts:           append([]string(nil), hosts...),
		port:            defaultPort,
		version:         defaultVersion,
		queryTimeout:    defaultQueryTimeout,
		offsetThreshold: offsetThreshold,
	}
	return &check.Definition{
		Name:            CheckName,
		Capabilities:    check.ProducesMetrics | check.ProducesServiceChecks,
		DefaultInterval: defaultMinCollectionInterval,
		DefaultTimeout:  defaultTimeout,
		Schema: check.Schema{
			{Name: "hosts", Kind: check.KindList},
			{Name: "port", Kind: check.KindInt},
			{Name: "version", Kind: check.KindInt},
			{Name: "query_timeout", Kind: check.KindDuration},
			{Name: "offset_threshold", Kind: check.KindDuration},
		},
		TargetKeys: []string{"hosts", "port"},
		Factory: func() check.Check {
			return &NTPCheck{CheckBase: corechecks.NewCheckBase(CheckName), defaults: defaults}
		},
	}
}

// Configure parses the instance on top of the agent wide defaults
func (c *NTPCheck) Configure(inst check.InstanceConfig) error {
	cfg := c.defaults
	if _, ok := inst["hosts"]; ok {
		hosts, err := inst.GetStringList("hosts")
		if err != nil {
			return err
		}
		cfg.hosts = hosts
	}
	if _, ok := inst["port"]; ok {
		port, err := inst.GetInt("port")
		if err != nil {
			return err
		}
		if port <= 0 || port > math.MaxUint16 {
			return fmt.Errorf("port %d is out of range", port)
		}
		cfg.port = port
	}
	if _, ok := inst["version"]; ok {
		version, err := inst.GetInt("version")
		if err != nil {
			return err
		}
		if version < 2 || version > 4 {
			return fmt.Errorf("unsupported NTP version %d", version)
		}
		cfg.version = version
	}
	if d, err := inst.GetDuration("query_timeout"); err == nil && d > 0 {
		cfg.queryTimeout = d
	}
	if d, err := inst.GetDuration("offset_threshold"); err == nil && d > 0 {
		cfg.offsetThreshold = d
	}
	if len(cfg.hosts) == 0 {
		return errors.New("no NTP host configured")
	}
	if cfg.offsetThreshold <= 0 {
		return errors.New("offset_threshold must be positive")
	}
	c.cfg = cfg
	return nil
}

// Run queries every host and reports the median clock offset
func (c *NTPCheck) Run(ctx context.Context, _ check.InstanceConfig, s sender.Sender) error {
	offset, err := c.queryOffset(ctx)
	if err != nil {
		s.ServiceCheck(ServiceCheckName, servicecheck.ServiceCheckUnknown, "", nil, err.Error())
		ntpExpVar.Set(0)
		return err
	}

	status := servicecheck.ServiceCheckOK
	message := ""
	if math.Abs(offset.Seconds()) > c.cfg.offsetThreshold.Seconds() {
		status = servicecheck.ServiceCheckWarning
		message = fmt.Sprintf("Offset %v is higher than offset threshold (%v secs)", offset.Seconds(), c.cfg.offsetThreshold.Seconds())
	}

	s.Gauge("ntp.offset", offset.Seconds(), "", nil)
	s.ServiceCheck(ServiceCheckName, status, "", nil, message)
	ntpExpVar.Set(offset.Seconds())
	return nil
}

func (c *NTPCheck) queryOffset(ctx context.Context) (time.Duration, error) {
	var (
		m       sync.Mutex
		offsets []time.Duration
	)

	g := new(errgroup.Group)
	for _, host := range c.cfg.hosts {
		host := host
		g.Go(func() error {
			address := net.JoinHostPort(host, strconv.Itoa(c.cfg.port))
			response, err := ntpQuery(address, ntp.QueryOptions{Version: c.cfg.version, Timeout: c.cfg.queryTimeout})
			if err == nil {
				err = response.Validate()
			}
			if err != nil {
				_ = c.Warnf("couldn't query the ntp host %s: %s", host, err)
				return nil
			}
			log.Tracef("ntp: offset of %s is %s", host, response.ClockOffset)
			m.Lock()
			offsets = append(offsets, response.ClockOffset)
			m.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(offsets) == 0 {
		return 0, errors.New("failed to get clock offset from any ntp host")
	}
	return median(offsets), nil
}

func median(offsets []time.Duration) time.Duration {
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	n := len(offsets)
	if n%2 == 1 {
		return offsets[n/2]
	}
	return (offsets[n/2-1] + offsets[n/2]) / 2
}
