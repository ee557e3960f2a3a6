// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package net exposes the network related corecheck state to the status
// output.
package net

import (
	"expvar"
	"strconv"

	// registers the ntpOffset variable
	_ "github.com/DataDog/datadog-collector-core/pkg/collector/corechecks/net/ntp"
)

// Provider provides the functionality to populate the status output with the clock information
type Provider struct{}

// Name returns the name
func (Provider) Name() string {
	return "Clocks"
}

// JSON populates the status map
func (Provider) JSON(stats map[string]interface{}) {
	ntpOffset := expvar.Get("ntpOffset")
	if ntpOffset != nil && ntpOffset.String() != "" {
		float, err := strconv.ParseFloat(ntpOffset.String(), 64)
		if err == nil {
			stats["ntpOffset"] = float
		}
	}
}
