// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package metrics

// MetricSample is one value reported by a check run. Samples are never
// modified once built; aggregation happens on accumulators.
type MetricSample struct {
	Name      string
	Value     float64
	Mtype     MetricType
	Tags      []string
	Host      string
	Timestamp float64
}

// Copy returns a deep copy of the sample
func (m *MetricSample) Copy() *MetricSample {
	dst := *m
	dst.Tags = append([]string(nil), m.Tags...)
	return &dst
}
