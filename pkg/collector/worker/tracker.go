// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package worker

import (
	"sync"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
)

// RunningChecksTracker tracks the check runs whose goroutine has not
// returned yet, including runs abandoned after their timeout.
type RunningChecksTracker struct {
	m       sync.RWMutex
	running map[check.ID]struct{}
}

// NewRunningChecksTracker returns an empty tracker
func NewRunningChecksTracker() *RunningChecksTracker {
	return &RunningChecksTracker{running: make(map[check.ID]struct{})}
}

// AddCheck adds id to the running list. It returns false if id was
// already there.
func (t *RunningChecksTracker) AddCheck(id check.ID) bool {
	t.m.Lock()
	defer t.m.Unlock()
	if _, found := t.running[id]; found {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

// DeleteCheck removes id from the running list
func (t *RunningChecksTracker) DeleteCheck(id check.ID) {
	t.m.Lock()
	defer t.m.Unlock()
	delete(t.running, id)
}

// IsRunning returns whether a run of id is still executing
func (t *RunningChecksTracker) IsRunning(id check.ID) bool {
	t.m.RLock()
	defer t.m.RUnlock()
	_, found := t.running[id]
	return found
}

// Len returns the number of runs still executing
func (t *RunningChecksTracker) Len() int {
	t.m.RLock()
	defer t.m.RUnlock()
	return len(t.running)
}
