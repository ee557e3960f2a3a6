// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package runner keeps the execution statistics of check instances.
package runner

import (
	"sort"
	"sync"
	"time"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

const (
	// How long is the first series of check runs we want to log
	firstRunSeries uint64 = 5
)

// Stats holds the execution statistics of one check instance
type Stats struct {
	CheckName            string
	CheckID              check.ID
	TotalRuns            uint64
	TotalErrors          uint64
	TotalTimeouts        uint64
	LastExecutionTime    time.Duration
	AverageExecutionTime time.Duration
	LastRun              time.Time
	LastSuccess          time.Time
	LastError            string
	MetricSamples        int64
	ServiceChecks        int64
	Events               int64
	DiscardedSubmissions int64
	TotalWarnings        uint64
	LastWarnings         []string

	totalExecutionTime time.Duration
}

// CheckStats holds the stats of every running check instance
type CheckStats struct {
	m                sync.RWMutex
	stats            map[check.ID]*Stats
	loggingFrequency uint64
}

// NewCheckStats returns an empty store. Runs are logged at info level for
// the first few runs of an instance, then every loggingFrequency runs.
func NewCheckStats(loggingFrequency uint64) *CheckStats {
	if loggingFrequency == 0 {
		loggingFrequency = 1
	}
	return &CheckStats{
		stats:            make(map[check.ID]*Stats),
		loggingFrequency: loggingFrequency,
	}
}

// Add updates the stats of a given check, should be called after every check run
func (c *CheckStats) Add(id check.ID, execTime time.Duration, err error, timedOut bool, senderStats sender.Stats, at time.Time) {
	c.m.Lock()
	defer c.m.Unlock()

	log.Tracef("Add stats for %s", string(id))
	s, found := c.stats[id]
	if !found {
		s = &Stats{CheckName: check.IDToCheckName(id), CheckID: id}
		c.stats[id] = s
	}

	s.TotalRuns++
	s.LastRun = at
	s.LastExecutionTime = execTime
	s.totalExecutionTime += execTime
	s.AverageExecutionTime = s.totalExecutionTime / time.Duration(s.TotalRuns)
	if timedOut {
		s.TotalTimeouts++
	}
	if err != nil {
		s.TotalErrors++
		s.LastError = err.Error()
	} else {
		s.LastSuccess = at
		s.LastError = ""
	}
	s.MetricSamples += senderStats.MetricSamples
	s.ServiceChecks += senderStats.ServiceChecks
	s.Events += senderStats.Events
	s.DiscardedSubmissions += senderStats.Discarded
}

// AddWarnings records the warnings raised by the last run of id
func (c *CheckStats) AddWarnings(id check.ID, warnings []error) {
	c.m.Lock()
	defer c.m.Unlock()
	s, found := c.stats[id]
	if !found {
		return
	}
	s.LastWarnings = make([]string, 0, len(warnings))
	for _, w := range warnings {
		s.LastWarnings = append(s.LastWarnings, w.Error())
	}
	s.TotalWarnings += uint64(len(warnings))
}

// Remove removes a check from the check stats map
func (c *CheckStats) Remove(id check.ID) {
	c.m.Lock()
	defer c.m.Unlock()
	log.Debugf("Remove stats for %s", string(id))
	delete(c.stats, id)
}

// Rename moves the stats of from to to, after an update changed the ID of
// the instance.
func (c *CheckStats) Rename(from, to check.ID) {
	c.m.Lock()
	defer c.m.Unlock()
	s, found := c.stats[from]
	if !found {
		return
	}
	delete(c.stats, from)
	s.CheckID = to
	c.stats[to] = s
}

// Get returns a copy of the stats of id
func (c *CheckStats) Get(id check.ID) (Stats, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	s, found := c.stats[id]
	if !found {
		return Stats{}, false
	}
	cp := *s
	cp.LastWarnings = append([]string(nil), s.LastWarnings...)
	return cp, true
}

// All returns a copy of every stats entry, sorted by check ID
func (c *CheckStats) All() []Stats {
	c.m.RLock()
	defer c.m.RUnlock()
	out := make([]Stats, 0, len(c.stats))
	for _, s := range c.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckID < out[j].CheckID })
	return out
}

// ShouldLog returns whether the next run of id should be logged at info
// level, and whether it is the last run logged before switching to the
// logging frequency.
func (c *CheckStats) ShouldLog(id check.ID) (doLog bool, lastLog bool) {
	c.m.RLock()
	defer c.m.RUnlock()

	s, found := c.stats[id]
	// this is the first time we see the check, log it
	if !found {
		return true, false
	}

	// TotalRuns counts completed runs, the next one is TotalRuns+1
	next := s.TotalRuns + 1
	// we log the first firstRunSeries times, then every loggingFrequency times
	doLog = next <= firstRunSeries || next%c.loggingFrequency == 0
	// we print a special message when we change logging frequency
	lastLog = next == firstRunSeries
	return
}
