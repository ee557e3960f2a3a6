// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package forwarder

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestBlockAfterThreshold(t *testing.T) {
	clk := clock.NewMock()
	e := newBlockedEndpoints(2, 10*time.Second, clk)

	e.close("a")
	assert.False(t, e.isBlock("a"))
	assert.Equal(t, Unblocked, e.getState("a"))

	e.close("a")
	assert.True(t, e.isBlock("a"))
	assert.Equal(t, Blocked, e.getState("a"))
	assert.False(t, e.isBlock("b"))
}

func TestHalfBlockedTrial(t *testing.T) {
	clk := clock.NewMock()
	e := newBlockedEndpoints(1, 10*time.Second, clk)

	e.close("a")
	assert.True(t, e.isBlock("a"))

	clk.Add(10 * time.Second)
	// one trial goes through
	assert.False(t, e.isBlock("a"))
	assert.Equal(t, HalfBlocked, e.getState("a"))
	assert.True(t, e.isBlock("a"))

	// the trial failed: blocked for twice as long
	e.close("a")
	assert.Equal(t, Blocked, e.getState("a"))
	clk.Add(10 * time.Second)
	assert.True(t, e.isBlock("a"))
	clk.Add(10 * time.Second)
	assert.False(t, e.isBlock("a"))

	e.recover("a")
	assert.Equal(t, Unblocked, e.getState("a"))
	assert.False(t, e.isBlock("a"))
}

func TestBackoffDurationIsCapped(t *testing.T) {
	e := newBlockedEndpoints(3, 30*time.Second, clock.NewMock())
	assert.Equal(t, 30*time.Second, e.getBackoffDuration(3))
	assert.Equal(t, 60*time.Second, e.getBackoffDuration(4))
	assert.Equal(t, maxBlockDuration, e.getBackoffDuration(10))
	assert.Equal(t, maxBlockDuration, e.getBackoffDuration(100))
}
