// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package load

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender/mocksender"
)

var avgSample = load.AvgStat{
	Load1:  0.83,
	Load5:  0.96,
	Load15: 1.15,
}

func stub(t *testing.T, avgErr, countErr error) {
	origAvg, origCount, origUptime := loadAvg, cpuCount, uptime
	t.Cleanup(func() { loadAvg, cpuCount, uptime = origAvg, origCount, origUptime })

	loadAvg = func(context.Context) (*load.AvgStat, error) {
		if avgErr != nil {
			return nil, avgErr
		}
		return &avgSample, nil
	}
	cpuCount = func(context.Context, bool) (int, error) {
		return 2, countErr
	}
	uptime = func(context.Context) (uint64, error) {
		return 3600, nil
	}
}

func newLoadCheck(t *testing.T) *LoadCheck {
	def := Definition()
	require.NoError(t, def.Validate())
	return def.Factory().(*LoadCheck)
}

func TestLoadCheck(t *testing.T) {
	stub(t, nil, nil)
	c := newLoadCheck(t)

	s := mocksender.NewMockSender()
	s.On("Gauge", "system.load.1", 0.83, "", []string(nil)).Return().Once()
	s.On("Gauge", "system.load.5", 0.96, "", []string(nil)).Return().Once()
	s.On("Gauge", "system.load.15", 1.15, "", []string(nil)).Return().Once()
	s.On("Gauge", "system.load.norm.1", 0.83/2, "", []string(nil)).Return().Once()
	s.On("Gauge", "system.load.norm.5", 0.96/2, "", []string(nil)).Return().Once()
	s.On("Gauge", "system.load.norm.15", 1.15/2, "", []string(nil)).Return().Once()
	s.On("Gauge", "system.uptime", 3600.0, "", []string(nil)).Return().Once()

	require.NoError(t, c.Run(context.Background(), nil, s))
	s.AssertExpectations(t)
	s.AssertNumberOfCalls(t, "Gauge", 7)
	assert.Empty(t, c.GetWarnings())
}

func TestLoadCheckWithoutCPUCount(t *testing.T) {
	stub(t, nil, errors.New("no /proc"))
	c := newLoadCheck(t)

	s := mocksender.NewMockSender()
	s.SetupAcceptAll()

	require.NoError(t, c.Run(context.Background(), nil, s))
	s.AssertNumberOfCalls(t, "Gauge", 4)
	s.AssertNotCalled(t, "Gauge", "system.load.norm.1", mock.Anything, mock.Anything, mock.Anything)
	assert.Len(t, c.GetWarnings(), 1)
}

func TestLoadCheckFailure(t *testing.T) {
	stub(t, errors.New("not implemented"), nil)
	c := newLoadCheck(t)

	s := mocksender.NewMockSender()
	assert.Error(t, c.Run(context.Background(), nil, s))
	s.AssertNotCalled(t, "Gauge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
