// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package metrics

import (
	"github.com/DataDog/datadog-collector-core/pkg/aggregator/ckey"
)

// CounterMemory keeps the last raw value of every monotonic counter across
// flush windows.
type CounterMemory interface {
	Get(key ckey.ContextKey) (float64, bool)
	Set(key ckey.ContextKey, value float64)
}

// MonotonicCount turns raw, ever-increasing counter values into the delta
// observed during the window. The first value ever seen only sets the
// baseline. A value lower than the previous one is a reset: it produces a
// ResetMarker instead of a negative delta and becomes the new baseline.
type MonotonicCount struct {
	key    ckey.ContextKey
	memory CounterMemory

	value   float64
	sampled bool
	resets  []ResetMarker
}

// NewMonotonicCount returns a MonotonicCount storing raw values for key in memory
func NewMonotonicCount(key ckey.ContextKey, memory CounterMemory) *MonotonicCount {
	return &MonotonicCount{key: key, memory: memory}
}

func (mc *MonotonicCount) addSample(sample *MetricSample, timestamp float64) {
	previous, known := mc.memory.Get(mc.key)
	mc.memory.Set(mc.key, sample.Value)
	if !known {
		return
	}

	if sample.Value < previous {
		ts := sample.Timestamp
		if ts == 0 {
			ts = timestamp
		}
		mc.resets = append(mc.resets, ResetMarker{
			Name:     sample.Name,
			Tags:     sample.Tags,
			Host:     sample.Host,
			Previous: previous,
			Current:  sample.Value,
			Ts:       ts,
		})
		return
	}
	mc.value += sample.Value - previous
	mc.sampled = true
}

// Resets returns and clears the resets observed since the last call
func (mc *MonotonicCount) Resets() []ResetMarker {
	r := mc.resets
	mc.resets = nil
	return r
}

func (mc *MonotonicCount) flush(timestamp float64) ([]*Serie, error) {
	value, sampled := mc.value, mc.sampled
	mc.value, mc.sampled = 0, false

	if !sampled {
		return []*Serie{}, NoSerieError{}
	}
	return []*Serie{{
		Points: []Point{{Ts: timestamp, Value: value}},
		MType:  APICountType,
	}}, nil
}
