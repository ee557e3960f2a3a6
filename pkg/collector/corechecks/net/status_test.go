// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package net

import (
	"expvar"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockStatus(t *testing.T) {
	expvar.Get("ntpOffset").(*expvar.Float).Set(-1.5)

	stats := map[string]interface{}{}
	Provider{}.JSON(stats)
	assert.Equal(t, -1.5, stats["ntpOffset"])
	assert.Equal(t, "Clocks", Provider{}.Name())
}
