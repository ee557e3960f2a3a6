// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package servicecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceCheckStatusString(t *testing.T) {
	tests := []struct {
		status   ServiceCheckStatus
		expected string
	}{
		{ServiceCheckOK, "OK"},
		{ServiceCheckWarning, "WARNING"},
		{ServiceCheckCritical, "CRITICAL"},
		{ServiceCheckUnknown, "UNKNOWN"},
		{ServiceCheckStatus(99), ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, tc.status.String())
	}
}

func TestGetServiceCheckStatus(t *testing.T) {
	s, err := GetServiceCheckStatus(2)
	require.NoError(t, err)
	assert.Equal(t, ServiceCheckCritical, s)

	s, err = GetServiceCheckStatus(7)
	assert.Error(t, err)
	assert.Equal(t, ServiceCheckUnknown, s)
}

func TestServiceCheckString(t *testing.T) {
	sc := ServiceCheck{
		CheckName: "datadog.agent.check_status",
		Host:      "myhost",
		Ts:        1234567890,
		Status:    ServiceCheckCritical,
		Message:   "timeout",
		Tags:      []string{"check:postgres"},
	}
	s := sc.String()
	assert.Contains(t, s, `"check":"datadog.agent.check_status"`)
	assert.Contains(t, s, `"host_name":"myhost"`)
	assert.Contains(t, s, `"status":2`)
	assert.Contains(t, s, `"message":"timeout"`)
}

func TestMarshalStrings(t *testing.T) {
	checks := ServiceChecks{
		{CheckName: "beta.check", Host: "host1", Ts: 200, Status: ServiceCheckWarning, Message: "warn", Tags: []string{"a"}},
		{CheckName: "alpha.check", Host: "host2", Ts: 100, Status: ServiceCheckOK, Message: "ok", Tags: []string{"b", "c"}},
	}

	headers, payload := checks.MarshalStrings()
	assert.Equal(t, []string{"Check", "Hostname", "Timestamp", "Status", "Message", "Tags"}, headers)
	require.Len(t, payload, 2)
	assert.Equal(t, []string{"alpha.check", "host2", "100", "OK", "ok", "b, c"}, payload[0])
	assert.Equal(t, "beta.check", payload[1][0])
	// the receiver keeps its order
	assert.Equal(t, "beta.check", checks[0].CheckName)
}

func TestMarshalStringsSameNameSortByTimestamp(t *testing.T) {
	checks := ServiceChecks{
		{CheckName: "my.check", Host: "h", Ts: 1000, Status: ServiceCheckOK, Tags: []string{}},
		{CheckName: "my.check", Host: "h", Ts: 300, Status: ServiceCheckOK, Tags: []string{}},
	}
	_, payload := checks.MarshalStrings()
	assert.Equal(t, "300", payload[0][2])
	assert.Equal(t, "1000", payload[1][2])
}

func TestMarshalStringsEmpty(t *testing.T) {
	checks := ServiceChecks{}
	headers, payload := checks.MarshalStrings()
	assert.NotNil(t, headers)
	assert.Empty(t, payload)
}
