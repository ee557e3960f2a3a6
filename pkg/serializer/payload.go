// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package serializer

import (
	"github.com/DataDog/datadog-collector-core/pkg/metrics"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/event"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/servicecheck"
)

// Payload is the content of one flush window, the unit the forwarder
// delivers. Sequence numbers increase strictly from one flush to the next.
type Payload struct {
	Sequence      uint64                     `json:"sequence"`
	CreatedAt     int64                      `json:"created_at"`
	Host          string                     `json:"host"`
	Series        metrics.Series             `json:"series"`
	ServiceChecks servicecheck.ServiceChecks `json:"service_checks"`
	Events        event.Events               `json:"events"`
	ResetMarkers  []metrics.ResetMarker      `json:"reset_markers,omitempty"`
}

// IsEmpty returns whether the payload carries nothing worth sending
func (p *Payload) IsEmpty() bool {
	return len(p.Series) == 0 && len(p.ServiceChecks) == 0 && len(p.Events) == 0 && len(p.ResetMarkers) == 0
}
