// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package metrics

import (
	"fmt"
	"math"

	"github.com/DataDog/datadog-collector-core/pkg/aggregator/ckey"
)

// ContextMetrics stores the accumulators of one flush window by context key
type ContextMetrics struct {
	metrics  map[ckey.ContextKey]Metric
	interval int64
	memory   CounterMemory
}

// MakeContextMetrics returns a new ContextMetrics. interval is the flush
// interval in seconds, memory keeps monotonic counter raw values.
func MakeContextMetrics(interval int64, memory CounterMemory) ContextMetrics {
	return ContextMetrics{
		metrics:  make(map[ckey.ContextKey]Metric),
		interval: interval,
		memory:   memory,
	}
}

// Len returns the number of contexts tracked
func (m ContextMetrics) Len() int {
	return len(m.metrics)
}

// Has returns whether contextKey already has an accumulator
func (m ContextMetrics) Has(contextKey ckey.ContextKey) bool {
	_, ok := m.metrics[contextKey]
	return ok
}

// AddSample add a sample to the current ContextMetrics and initialize a new metrics if needed.
func (m ContextMetrics) AddSample(contextKey ckey.ContextKey, sample *MetricSample, timestamp float64) error {
	if math.IsInf(sample.Value, 0) || math.IsNaN(sample.Value) {
		return fmt.Errorf("sample with value '%v'", sample.Value)
	}
	if _, ok := m.metrics[contextKey]; !ok {
		switch sample.Mtype {
		case GaugeType:
			m.metrics[contextKey] = &Gauge{}
		case RateType:
			m.metrics[contextKey] = NewRate(m.interval)
		case CountType:
			m.metrics[contextKey] = &Count{}
		case MonotonicCountType:
			m.metrics[contextKey] = NewMonotonicCount(contextKey, m.memory)
		case HistogramType:
			m.metrics[contextKey] = NewHistogram()
		default:
			return fmt.Errorf("unknown sample metric type: %v", sample.Mtype)
		}
	}
	m.metrics[contextKey].addSample(sample, timestamp)
	return nil
}

// Flush flushes every metrics in the ContextMetrics.
// Returns the series, the counter resets seen during the window and a map of
// errors by context key.
func (m ContextMetrics) Flush(timestamp float64) (Series, []ResetMarker, map[ckey.ContextKey]error) {
	var series Series
	var resets []ResetMarker
	errors := make(map[ckey.ContextKey]error)

	for contextKey, metric := range m.metrics {
		if mc, ok := metric.(*MonotonicCount); ok {
			resets = append(resets, mc.Resets()...)
		}
		metricSeries, err := metric.flush(timestamp)
		if err != nil {
			if _, ok := err.(NoSerieError); !ok {
				errors[contextKey] = err
			}
			continue
		}
		for _, serie := range metricSeries {
			serie.ContextKey = contextKey
			series = append(series, serie)
		}
	}
	return series, resets, errors
}
