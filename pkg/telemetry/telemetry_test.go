// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package telemetry

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test", "runs", []string{"check"}, "runs per check")
	c.Inc("redis")
	c.Add(2, "redis")
	c.Inc("mysql")
	assert.Equal(t, 3.0, c.Get("redis"))
	assert.Equal(t, 1.0, c.Get("mysql"))

	// registering the same metric twice shares the underlying collector
	again := NewCounter("test", "runs", []string{"check"}, "runs per check")
	assert.Equal(t, 3.0, again.Get("redis"))
}

func TestSimpleCounterAndGauge(t *testing.T) {
	s := NewSimpleCounter("test", "simple", "a simple counter")
	s.Inc()
	s.Add(4)
	assert.Equal(t, 5.0, s.Get())

	g := NewGauge("test", "queue", []string{"name"}, "queue sizes")
	g.Set(10, "memory")
	g.Inc("memory")
	g.Dec("memory")
	g.Dec("memory")
	assert.Equal(t, 9.0, g.Get("memory"))

	NewHistogram("test", "latency", nil, "latency", []float64{1, 5}).Observe(2)
}

func TestHandler(t *testing.T) {
	NewSimpleCounter("test", "exposed", "exposed counter").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "datadog_collector_core_test_exposed 1")
}
