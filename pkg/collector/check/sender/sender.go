// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package sender is the API checks use to submit metrics, service checks
// and events during a run.
package sender

import (
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/DataDog/datadog-collector-core/pkg/metrics"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/event"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/servicecheck"
	"github.com/DataDog/datadog-collector-core/pkg/tagset"
)

// Sender allows sending metrics from checks/a check
type Sender interface {
	Gauge(metric string, value float64, hostname string, tags []string)
	Rate(metric string, value float64, hostname string, tags []string)
	Count(metric string, value float64, hostname string, tags []string)
	MonotonicCount(metric string, value float64, hostname string, tags []string)
	Histogram(metric string, value float64, hostname string, tags []string)
	ServiceCheck(checkName string, status servicecheck.ServiceCheckStatus, hostname string, tags []string, message string)
	Event(e event.Event)
}

// RunOutput is everything one check run emitted. It reaches the aggregator
// as a single unit.
type RunOutput struct {
	CheckName     string
	InstanceID    string
	Samples       []*metrics.MetricSample
	ServiceChecks servicecheck.ServiceChecks
	Events        event.Events
}

// Stats counts what a sender received
type Stats struct {
	MetricSamples int64
	ServiceChecks int64
	Events        int64
	// Discarded counts submissions made after the sender was sealed
	Discarded int64
}

// BufferedSender buffers the output of one run and attaches the instance
// tags to every submission. Once sealed, further submissions are discarded.
type BufferedSender struct {
	mu     sync.Mutex
	clock  clock.Clock
	tags   []string
	out    RunOutput
	sealed bool
	stats  Stats
}

// NewBufferedSender returns a sender for one run of instanceID
func NewBufferedSender(checkName, instanceID string, tags []string, clk clock.Clock) *BufferedSender {
	return &BufferedSender{
		clock: clk,
		tags:  tagset.Normalize(tags),
		out: RunOutput{
			CheckName:  checkName,
			InstanceID: instanceID,
		},
	}
}

func (s *BufferedSender) sendSample(mtype metrics.MetricType, metric string, value float64, hostname string, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		s.stats.Discarded++
		return
	}
	s.out.Samples = append(s.out.Samples, &metrics.MetricSample{
		Name:      metric,
		Value:     value,
		Mtype:     mtype,
		Tags:      tagset.Union(tags, s.tags),
		Host:      hostname,
		Timestamp: float64(s.clock.Now().UnixNano()) / 1e9,
	})
	s.stats.MetricSamples++
}

// Gauge submits a gauge sample
func (s *BufferedSender) Gauge(metric string, value float64, hostname string, tags []string) {
	s.sendSample(metrics.GaugeType, metric, value, hostname, tags)
}

// Rate submits a rate sample
func (s *BufferedSender) Rate(metric string, value float64, hostname string, tags []string) {
	s.sendSample(metrics.RateType, metric, value, hostname, tags)
}

// Count submits a count sample
func (s *BufferedSender) Count(metric string, value float64, hostname string, tags []string) {
	s.sendSample(metrics.CountType, metric, value, hostname, tags)
}

// MonotonicCount submits the raw value of a monotonic counter
func (s *BufferedSender) MonotonicCount(metric string, value float64, hostname string, tags []string) {
	s.sendSample(metrics.MonotonicCountType, metric, value, hostname, tags)
}

// Histogram submits a histogram sample
func (s *BufferedSender) Histogram(metric string, value float64, hostname string, tags []string) {
	s.sendSample(metrics.HistogramType, metric, value, hostname, tags)
}

// ServiceCheck submits a service check
func (s *BufferedSender) ServiceCheck(checkName string, status servicecheck.ServiceCheckStatus, hostname string, tags []string, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		s.stats.Discarded++
		return
	}
	s.out.ServiceChecks = append(s.out.ServiceChecks, &servicecheck.ServiceCheck{
		CheckName: checkName,
		Host:      hostname,
		Ts:        s.clock.Now().Unix(),
		Status:    status,
		Message:   message,
		Tags:      tagset.Union(tags, s.tags),
	})
	s.stats.ServiceChecks++
}

// Event submits an event. A zero timestamp is replaced by the current time.
func (s *BufferedSender) Event(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		s.stats.Discarded++
		return
	}
	if e.Ts == 0 {
		e.Ts = s.clock.Now().Unix()
	}
	e.Tags = tagset.Union(e.Tags, s.tags)
	s.out.Events = append(s.out.Events, &e)
	s.stats.Events++
}

// Seal stops accepting submissions and returns what was buffered. Calling
// Seal again returns nil.
func (s *BufferedSender) Seal() *RunOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return nil
	}
	s.sealed = true
	out := s.out
	s.out = RunOutput{}
	return &out
}

// Stats returns the submission counters
func (s *BufferedSender) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
