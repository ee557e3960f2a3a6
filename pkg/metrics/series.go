// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package metrics

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/DataDog/datadog-collector-core/pkg/aggregator/ckey"
)

// Point represents a metric value at a specific time
type Point struct {
	Ts    float64
	Value float64
}

// MarshalJSON encodes a Point as a [ts, value] pair. Values use the shortest
// representation that parses back to the same float64.
func (p Point) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 32)
	b = append(b, '[')
	b = strconv.AppendFloat(b, p.Ts, 'g', -1, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, p.Value, 'g', -1, 64)
	b = append(b, ']')
	return b, nil
}

// UnmarshalJSON decodes a [ts, value] pair
func (p *Point) UnmarshalJSON(buf []byte) error {
	tmp := []interface{}{&p.Ts, &p.Value}
	wantLen := len(tmp)
	if err := json.Unmarshal(buf, &tmp); err != nil {
		return err
	}
	if len(tmp) != wantLen {
		return fmt.Errorf("wrong number of fields in Point: %d != %d", len(tmp), wantLen)
	}
	return nil
}

// Serie holds one flushed timeseries
type Serie struct {
	Name       string          `json:"metric"`
	Points     []Point         `json:"points"`
	Tags       []string        `json:"tags"`
	Host       string          `json:"host"`
	MType      APIMetricType   `json:"type"`
	Interval   int64           `json:"interval"`
	ContextKey ckey.ContextKey `json:"-"`
	NameSuffix string          `json:"-"`
}

// String could be used for debug logging
func (serie Serie) String() string {
	s, err := json.Marshal(serie)
	if err != nil {
		return ""
	}
	return string(s)
}

// Series is a collection of Serie
type Series []*Serie

// ResetMarker records that a monotonic counter went backwards between two
// raw values. No sample is produced for that interval.
type ResetMarker struct {
	Name     string   `json:"metric"`
	Tags     []string `json:"tags"`
	Host     string   `json:"host"`
	Previous float64  `json:"previous"`
	Current  float64  `json:"current"`
	Ts       float64  `json:"timestamp"`
}

// NoSerieError is the error returned by a metric when not enough samples have been
// submitted to generate a serie
type NoSerieError struct{}

func (e NoSerieError) Error() string {
	return "Not enough samples to generate points"
}
