// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package mocksender provides a testify mock of sender.Sender for check tests.
package mocksender

import (
	"github.com/stretchr/testify/mock"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/event"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/servicecheck"
)

var _ sender.Sender = (*MockSender)(nil)

// MockSender records every submission as a mock call
type MockSender struct {
	mock.Mock
}

// NewMockSender returns a mock sender with no expectation set
func NewMockSender() *MockSender {
	return &MockSender{}
}

// SetupAcceptAll accepts any submission without asserting on it
func (m *MockSender) SetupAcceptAll() {
	for _, method := range []string{"Gauge", "Rate", "Count", "MonotonicCount", "Histogram"} {
		m.On(method, mock.AnythingOfType("string"), mock.AnythingOfType("float64"), mock.AnythingOfType("string"), mock.Anything).Return()
	}
	m.On("ServiceCheck", mock.AnythingOfType("string"), mock.AnythingOfType("servicecheck.ServiceCheckStatus"),
		mock.AnythingOfType("string"), mock.Anything, mock.AnythingOfType("string")).Return()
	m.On("Event", mock.Anything).Return()
}

// Gauge enables the gauge mock call
func (m *MockSender) Gauge(metric string, value float64, hostname string, tags []string) {
	m.Called(metric, value, hostname, tags)
}

// Rate enables the rate mock call
func (m *MockSender) Rate(metric string, value float64, hostname string, tags []string) {
	m.Called(metric, value, hostname, tags)
}

// Count enables the count mock call
func (m *MockSender) Count(metric string, value float64, hostname string, tags []string) {
	m.Called(metric, value, hostname, tags)
}

// MonotonicCount enables the monotonic count mock call
func (m *MockSender) MonotonicCount(metric string, value float64, hostname string, tags []string) {
	m.Called(metric, value, hostname, tags)
}

// Histogram enables the histogram mock call
func (m *MockSender) Histogram(metric string, value float64, hostname string, tags []string) {
	m.Called(metric, value, hostname, tags)
}

// ServiceCheck enables the service check mock call
func (m *MockSender) ServiceCheck(checkName string, status servicecheck.ServiceCheckStatus, hostname string, tags []string, message string) {
	m.Called(checkName, status, hostname, tags, message)
}

// Event enables the event mock call
func (m *MockSender) Event(e event.Event) {
	m.Called(e)
}
