// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package runner

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
)

func TestAddAndGet(t *testing.T) {
	cs := NewCheckStats(10)
	now := time.Unix(100, 0)

	cs.Add("redis:1", 2*time.Second, nil, false, sender.Stats{MetricSamples: 3}, now)
	cs.Add("redis:1", 4*time.Second, errors.New("timeout"), true, sender.Stats{Discarded: 2}, now.Add(time.Minute))

	s, ok := cs.Get("redis:1")
	require.True(t, ok)
	assert.Equal(t, "redis", s.CheckName)
	assert.Equal(t, uint64(2), s.TotalRuns)
	assert.Equal(t, uint64(1), s.TotalErrors)
	assert.Equal(t, uint64(1), s.TotalTimeouts)
	assert.Equal(t, 3*time.Second, s.AverageExecutionTime)
	assert.Equal(t, 4*time.Second, s.LastExecutionTime)
	assert.Equal(t, now, s.LastSuccess)
	assert.Equal(t, "timeout", s.LastError)
	assert.Equal(t, int64(3), s.MetricSamples)
	assert.Equal(t, int64(2), s.DiscardedSubmissions)

	cs.Add("apache:1", time.Second, nil, false, sender.Stats{}, now)
	all := cs.All()
	require.Len(t, all, 2)
	assert.Equal(t, "apache", all[0].CheckName)

	cs.Remove("redis:1")
	_, ok = cs.Get("redis:1")
	assert.False(t, ok)
}

func TestShouldLog(t *testing.T) {
	cs := NewCheckStats(10)

	doLog, last := cs.ShouldLog("ntp:1")
	assert.True(t, doLog)
	assert.False(t, last)

	var logged []uint64
	for run := uint64(1); run <= 30; run++ {
		doLog, last = cs.ShouldLog("ntp:1")
		if doLog {
			logged = append(logged, run)
		}
		if run == firstRunSeries {
			assert.True(t, last)
		}
		cs.Add("ntp:1", time.Millisecond, nil, false, sender.Stats{}, time.Time{})
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 10, 20, 30}, logged)
}
