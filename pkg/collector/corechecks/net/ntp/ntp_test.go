// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package ntp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/beevik/ntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender/mocksender"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/servicecheck"
)

func stubQuery(t *testing.T, offsets map[string]time.Duration) {
	orig := ntpQuery
	t.Cleanup(func() { ntpQuery = orig })
	ntpQuery = func(address string, _ ntp.QueryOptions) (*ntp.Response, error) {
		offset, ok := offsets[address]
		if !ok {
			return nil, errors.New("i/o timeout")
		}
		return &ntp.Response{ClockOffset: offset, Stratum: 1}, nil
	}
}

func newCheck(t *testing.T, inst check.InstanceConfig) *NTPCheck {
	def := Definition([]string{"0.pool.ntp.org", "1.pool.ntp.org", "2.pool.ntp.org"}, 60*time.Second)
	require.NoError(t, def.Validate())
	require.NoError(t, def.Schema.Validate(inst))
	c := def.Factory().(*NTPCheck)
	require.NoError(t, c.Configure(inst))
	return c
}

func TestNTPInSync(t *testing.T) {
	stubQuery(t, map[string]time.Duration{
		"0.pool.ntp.org:123": 1 * time.Second,
		"1.pool.ntp.org:123": 3 * time.Second,
		"2.pool.ntp.org:123": 2 * time.Second,
	})
	c := newCheck(t, check.InstanceConfig{})

	s := mocksender.NewMockSender()
	s.On("Gauge", "ntp.offset", 2.0, "", []string(nil)).Return().Once()
	s.On("ServiceCheck", ServiceCheckName, servicecheck.ServiceCheckOK, "", []string(nil), "").Return().Once()

	require.NoError(t, c.Run(context.Background(), nil, s))
	s.AssertExpectations(t)
	assert.Equal(t, "2", ntpExpVar.String())
	assert.Empty(t, c.GetWarnings())
}

func TestNTPOffsetAboveThreshold(t *testing.T) {
	stubQuery(t, map[string]time.Duration{
		"time.example.com:1123": -90 * time.Second,
	})
	c := newCheck(t, check.InstanceConfig{
		"hosts":            []interface{}{"time.example.com"},
		"port":             1123,
		"offset_threshold": 30,
	})

	s := mocksender.NewMockSender()
	s.On("Gauge", "ntp.offset", -90.0, "", []string(nil)).Return().Once()
	s.On("ServiceCheck", ServiceCheckName, servicecheck.ServiceCheckWarning, "", []string(nil),
		"Offset -90 is higher than offset threshold (30 secs)").Return().Once()

	require.NoError(t, c.Run(context.Background(), nil, s))
	s.AssertExpectations(t)
}

func TestNTPPartialFailureWarns(t *testing.T) {
	stubQuery(t, map[string]time.Duration{
		"1.pool.ntp.org:123": 500 * time.Millisecond,
	})
	c := newCheck(t, check.InstanceConfig{})

	s := mocksender.NewMockSender()
	s.On("Gauge", "ntp.offset", 0.5, "", []string(nil)).Return().Once()
	s.On("ServiceCheck", ServiceCheckName, servicecheck.ServiceCheckOK, "", []string(nil), "").Return().Once()

	require.NoError(t, c.Run(context.Background(), nil, s))
	s.AssertExpectations(t)
	assert.Len(t, c.GetWarnings(), 2)
}

func TestNTPUnreachable(t *testing.T) {
	stubQuery(t, nil)
	c := newCheck(t, check.InstanceConfig{})

	s := mocksender.NewMockSender()
	s.On("ServiceCheck", ServiceCheckName, servicecheck.ServiceCheckUnknown, "", []string(nil), mock.AnythingOfType("string")).Return().Once()

	assert.Error(t, c.Run(context.Background(), nil, s))
	s.AssertExpectations(t)
	s.AssertNotCalled(t, "Gauge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNTPConfigureErrors(t *testing.T) {
	def := Definition(nil, 60*time.Second)
	c := def.Factory().(*NTPCheck)
	assert.EqualError(t, c.Configure(check.InstanceConfig{}), "no NTP host configured")
	assert.Error(t, c.Configure(check.InstanceConfig{"hosts": []interface{}{"a"}, "version": 7}))
	assert.Error(t, c.Configure(check.InstanceConfig{"hosts": []interface{}{"a"}, "port": 70000}))
	assert.NoError(t, c.Configure(check.InstanceConfig{"hosts": []interface{}{"a"}, "version": 4}))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2*time.Second, median([]time.Duration{3 * time.Second, time.Second, 2 * time.Second}))
	assert.Equal(t, 1500*time.Millisecond, median([]time.Duration{2 * time.Second, time.Second}))
}
