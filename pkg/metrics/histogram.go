// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package metrics

import (
	"fmt"

	"github.com/DataDog/sketches-go/ddsketch"
)

// HistogramRelativeAccuracy is the relative error of histogram percentiles.
const HistogramRelativeAccuracy = 0.01

type histogramPercentile struct {
	suffix   string
	quantile float64
}

var histogramPercentiles = []histogramPercentile{
	{".median", 0.5},
	{".95percentile", 0.95},
	{".99percentile", 0.99},
}

// Histogram tracks the distribution of samples during the window. Count,
// sum, min and max are exact; percentiles come from a DDSketch.
type Histogram struct {
	sketch *ddsketch.DDSketch
	count  int64
	sum    float64
	min    float64
	max    float64
}

// NewHistogram returns an empty histogram
func NewHistogram() *Histogram {
	return &Histogram{}
}

func (h *Histogram) addSample(sample *MetricSample, _ float64) {
	if h.sketch == nil {
		// NewDefaultDDSketch only fails on an invalid accuracy
		h.sketch, _ = ddsketch.NewDefaultDDSketch(HistogramRelativeAccuracy)
	}
	if err := h.sketch.Add(sample.Value); err != nil {
		return
	}
	if h.count == 0 || sample.Value < h.min {
		h.min = sample.Value
	}
	if h.count == 0 || sample.Value > h.max {
		h.max = sample.Value
	}
	h.count++
	h.sum += sample.Value
}

func (h *Histogram) flush(timestamp float64) ([]*Serie, error) {
	if h.count == 0 {
		return []*Serie{}, NoSerieError{}
	}
	defer func() {
		h.sketch = nil
		h.count, h.sum, h.min, h.max = 0, 0, 0, 0
	}()

	qs := make([]float64, len(histogramPercentiles))
	for i, p := range histogramPercentiles {
		qs[i] = p.quantile
	}
	values, err := h.sketch.GetValuesAtQuantiles(qs)
	if err != nil {
		return nil, fmt.Errorf("unable to compute histogram percentiles: %w", err)
	}

	gauge := func(suffix string, v float64) *Serie {
		return &Serie{
			Points:     []Point{{Ts: timestamp, Value: v}},
			MType:      APIGaugeType,
			NameSuffix: suffix,
		}
	}
	series := []*Serie{
		{
			Points:     []Point{{Ts: timestamp, Value: float64(h.count)}},
			MType:      APICountType,
			NameSuffix: ".count",
		},
		gauge(".sum", h.sum),
		gauge(".min", h.min),
		gauge(".max", h.max),
		gauge(".avg", h.sum/float64(h.count)),
	}
	for i, p := range histogramPercentiles {
		series = append(series, gauge(p.suffix, values[i]))
	}
	return series, nil
}
