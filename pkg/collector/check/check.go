// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package check defines the contract between the collector and the
// integrations it runs, and the catalog of known check types.
package check

import (
	"context"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
)

// Check is an interface for types capable to run checks. Run must return
// once ctx is done; a run still going after its deadline is abandoned.
type Check interface {
	Run(ctx context.Context, inst InstanceConfig, s sender.Sender) error
}

// Configurable is implemented by checks that need to parse their instance
// once before the first run. A returned error rejects the instance.
type Configurable interface {
	Configure(inst InstanceConfig) error
}

// Stopper is implemented by checks holding resources. Stop is called once
// the instance is removed and no run is in flight.
type Stopper interface {
	Stop()
}

// Warner is implemented by checks reporting non-fatal problems. The
// warnings are collected and reset after every run.
type Warner interface {
	GetWarnings() []error
}

// CheckFunc adapts a function to the Check interface
type CheckFunc func(ctx context.Context, inst InstanceConfig, s sender.Sender) error

// Run calls f
func (f CheckFunc) Run(ctx context.Context, inst InstanceConfig, s sender.Sender) error {
	return f(ctx, inst, s)
}
