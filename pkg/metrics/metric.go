// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package metrics

// Metric is the interface of all metric accumulators. Each accumulator owns
// the values of one context for one flush window.
type Metric interface {
	addSample(sample *MetricSample, timestamp float64)
	flush(timestamp float64) ([]*Serie, error)
}

// Gauge stores and aggregates a gauge value. The last sample received wins.
type Gauge struct {
	value   float64
	sampled bool
}

func (g *Gauge) addSample(sample *MetricSample, _ float64) {
	g.value = sample.Value
	g.sampled = true
}

func (g *Gauge) flush(timestamp float64) ([]*Serie, error) {
	value, sampled := g.value, g.sampled
	g.value, g.sampled = 0, false

	if !sampled {
		return []*Serie{}, NoSerieError{}
	}
	return []*Serie{{
		Points: []Point{{Ts: timestamp, Value: value}},
		MType:  APIGaugeType,
	}}, nil
}

// Count is used to count the number of events that occur between 2 flushes. Each sample's value is added
// to the value that's flushed
type Count struct {
	value   float64
	sampled bool
}

func (c *Count) addSample(sample *MetricSample, _ float64) {
	c.value += sample.Value
	c.sampled = true
}

func (c *Count) flush(timestamp float64) ([]*Serie, error) {
	value, sampled := c.value, c.sampled
	c.value, c.sampled = 0, false

	if !sampled {
		return []*Serie{}, NoSerieError{}
	}
	return []*Serie{{
		Points: []Point{{Ts: timestamp, Value: value}},
		MType:  APICountType,
	}}, nil
}

// Rate sums samples over the window and flushes the per-second value.
type Rate struct {
	interval int64
	value    float64
	sampled  bool
}

// NewRate returns a Rate flushed over interval seconds
func NewRate(interval int64) *Rate {
	if interval <= 0 {
		interval = 1
	}
	return &Rate{interval: interval}
}

func (r *Rate) addSample(sample *MetricSample, _ float64) {
	r.value += sample.Value
	r.sampled = true
}

func (r *Rate) flush(timestamp float64) ([]*Serie, error) {
	value, sampled := r.value, r.sampled
	r.value, r.sampled = 0, false

	if !sampled {
		return []*Serie{}, NoSerieError{}
	}
	return []*Serie{{
		Points:   []Point{{Ts: timestamp, Value: value / float64(r.interval)}},
		MType:    APIRateType,
		Interval: r.interval,
	}}, nil
}
