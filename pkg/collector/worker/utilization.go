// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package worker

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// UtilizationTracker measures the share of time a worker spends running
// checks between two ticks.
type UtilizationTracker struct {
	m         sync.Mutex
	clock     clock.Clock
	busy      time.Duration
	busySince time.Time
	running   bool
	lastTick  time.Time
}

// NewUtilizationTracker returns a tracker starting now
func NewUtilizationTracker(clk clock.Clock) *UtilizationTracker {
	return &UtilizationTracker{clock: clk, lastTick: clk.Now()}
}

// CheckStarted marks the beginning of a run
func (ut *UtilizationTracker) CheckStarted() {
	ut.m.Lock()
	defer ut.m.Unlock()
	ut.running = true
	ut.busySince = ut.clock.Now()
}

// CheckFinished marks the end of a run
func (ut *UtilizationTracker) CheckFinished() {
	ut.m.Lock()
	defer ut.m.Unlock()
	if !ut.running {
		return
	}
	ut.busy += ut.clock.Now().Sub(ut.busySince)
	ut.running = false
}

// Tick returns the utilization, between 0 and 1, since the previous tick
func (ut *UtilizationTracker) Tick() float64 {
	ut.m.Lock()
	defer ut.m.Unlock()

	now := ut.clock.Now()
	busy := ut.busy
	if ut.running {
		busy += now.Sub(ut.busySince)
		ut.busySince = now
	}
	window := now.Sub(ut.lastTick)
	ut.busy = 0
	ut.lastTick = now

	if window <= 0 {
		return 0
	}
	u := float64(busy) / float64(window)
	if u > 1 {
		u = 1
	}
	return u
}
