// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package telemetry exposes the internal health metrics of the collector
// through a prometheus registry.
package telemetry

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "datadog_collector_core"

var registry = prometheus.NewRegistry()

// Registry returns the prometheus registry holding every collector metric
func Registry() *prometheus.Registry {
	return registry
}

// Handler returns an http.Handler serving the registry in the prometheus
// text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// register registers c, or returns the collector already registered under
// the same descriptor.
func register[T prometheus.Collector](c T) T {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
