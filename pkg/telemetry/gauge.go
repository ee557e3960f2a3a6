// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Gauge tracks the current value of something, per tag values.
type Gauge interface {
	Set(value float64, tagsValue ...string)
	Inc(tagsValue ...string)
	Dec(tagsValue ...string)
	Get(tagsValue ...string) float64
}

type promGauge struct {
	pg *prometheus.GaugeVec
}

// NewGauge creates a Gauge
func NewGauge(subsystem, name string, tags []string, help string) Gauge {
	return &promGauge{
		pg: register(prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      name,
				Help:      help,
			},
			tags,
		)),
	}
}

func (g *promGauge) Set(value float64, tagsValue ...string) {
	g.pg.WithLabelValues(tagsValue...).Set(value)
}

func (g *promGauge) Inc(tagsValue ...string) {
	g.pg.WithLabelValues(tagsValue...).Inc()
}

func (g *promGauge) Dec(tagsValue ...string) {
	g.pg.WithLabelValues(tagsValue...).Dec()
}

func (g *promGauge) Get(tagsValue ...string) float64 {
	m := &dto.Metric{}
	if err := g.pg.WithLabelValues(tagsValue...).Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// Histogram tracks the distribution of values, per tag values.
type Histogram interface {
	Observe(value float64, tagsValue ...string)
}

type promHistogram struct {
	ph *prometheus.HistogramVec
}

// NewHistogram creates a Histogram with the given buckets
func NewHistogram(subsystem, name string, tags []string, help string, buckets []float64) Histogram {
	return &promHistogram{
		ph: register(prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      name,
				Help:      help,
				Buckets:   buckets,
			},
			tags,
		)),
	}
}

func (h *promHistogram) Observe(value float64, tagsValue ...string) {
	h.ph.WithLabelValues(tagsValue...).Observe(value)
}
