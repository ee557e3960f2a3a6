// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package metrics

import (
	"fmt"
	"strings"
)

// MetricType is the kind of a sample, it selects the aggregation rule.
type MetricType int

// MetricType values
const (
	GaugeType MetricType = iota
	RateType
	CountType
	MonotonicCountType
	HistogramType
)

// String returns the name of the type
func (m MetricType) String() string {
	switch m {
	case GaugeType:
		return "Gauge"
	case RateType:
		return "Rate"
	case CountType:
		return "Count"
	case MonotonicCountType:
		return "MonotonicCount"
	case HistogramType:
		return "Histogram"
	default:
		return ""
	}
}

// ParseMetricType parses the configuration name of a metric type
// ("gauge", "rate", "count", "monotonic_count", "histogram").
func ParseMetricType(s string) (MetricType, error) {
	switch strings.ToLower(s) {
	case "gauge":
		return GaugeType, nil
	case "rate":
		return RateType, nil
	case "count", "counter":
		return CountType, nil
	case "monotonic_count", "monotonic_counter":
		return MonotonicCountType, nil
	case "histogram":
		return HistogramType, nil
	}
	return GaugeType, fmt.Errorf("unknown metric type %q", s)
}

// APIMetricType is the type of a flushed serie as sent to the backend.
type APIMetricType int

// APIMetricType values
const (
	APIGaugeType APIMetricType = iota
	APIRateType
	APICountType
)

// String returns the wire name of the type
func (a APIMetricType) String() string {
	switch a {
	case APIGaugeType:
		return "gauge"
	case APIRateType:
		return "rate"
	case APICountType:
		return "count"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler
func (a APIMetricType) MarshalText() ([]byte, error) {
	s := a.String()
	if s == "" {
		return nil, fmt.Errorf("invalid api metric type %d", int(a))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *APIMetricType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "gauge":
		*a = APIGaugeType
	case "rate":
		*a = APIRateType
	case "count":
		*a = APICountType
	default:
		return fmt.Errorf("invalid api metric type %q", text)
	}
	return nil
}
