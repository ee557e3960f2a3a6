// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Counter tracks how many times something is happening, per tag values.
type Counter interface {
	Inc(tagsValue ...string)
	Add(value float64, tagsValue ...string)
	Get(tagsValue ...string) float64
}

// SimpleCounter is a Counter without tags.
type SimpleCounter interface {
	Inc()
	Add(value float64)
	Get() float64
}

type promCounter struct {
	pc *prometheus.CounterVec
}

// NewCounter creates a Counter named <namespace>_<subsystem>_<name>
func NewCounter(subsystem, name string, tags []string, help string) Counter {
	return &promCounter{
		pc: register(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      name,
				Help:      help,
			},
			tags,
		)),
	}
}

func (c *promCounter) Inc(tagsValue ...string) {
	c.pc.WithLabelValues(tagsValue...).Inc()
}

func (c *promCounter) Add(value float64, tagsValue ...string) {
	c.pc.WithLabelValues(tagsValue...).Add(value)
}

func (c *promCounter) Get(tagsValue ...string) float64 {
	m := &dto.Metric{}
	if err := c.pc.WithLabelValues(tagsValue...).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

type simplePromCounter struct {
	c Counter
}

// NewSimpleCounter creates a SimpleCounter
func NewSimpleCounter(subsystem, name, help string) SimpleCounter {
	return &simplePromCounter{c: NewCounter(subsystem, name, nil, help)}
}

func (s *simplePromCounter) Inc()              { s.c.Inc() }
func (s *simplePromCounter) Add(value float64) { s.c.Add(value) }
func (s *simplePromCounter) Get() float64      { return s.c.Get() }
