// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package corechecks holds the helpers shared by the checks built into the
// agent binary.
package corechecks

import (
	"fmt"
	"sync"

	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

// CheckBase provides the name and warning handling of a corecheck.
//
// To use it, embed it in your check struct and build it with NewCheckBase
// in your factory. Integration warnings are raised with Warn and Warnf:
// they are logged and collected by the worker after the run, for display
// in the status output.
type CheckBase struct {
	checkName string

	m              sync.Mutex
	latestWarnings []error
}

// NewCheckBase returns a check base struct with a given check name
func NewCheckBase(name string) CheckBase {
	return CheckBase{checkName: name}
}

// Name returns the name of the check
func (c *CheckBase) Name() string {
	return c.checkName
}

// Warn records a warning for the current run
func (c *CheckBase) Warn(v ...interface{}) error {
	w := fmt.Errorf("%s", fmt.Sprint(v...))
	log.Debugf("%s: %s", c.checkName, w)
	c.m.Lock()
	c.latestWarnings = append(c.latestWarnings, w)
	c.m.Unlock()
	return w
}

// Warnf records a formatted warning for the current run
func (c *CheckBase) Warnf(format string, params ...interface{}) error {
	return c.Warn(fmt.Sprintf(format, params...))
}

// GetWarnings grabs the latest warnings and resets them
func (c *CheckBase) GetWarnings() []error {
	c.m.Lock()
	defer c.m.Unlock()
	w := c.latestWarnings
	c.latestWarnings = nil
	return w
}
