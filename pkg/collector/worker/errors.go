// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package worker

import (
	"fmt"
	"time"
)

// RunTimeout is the error of a run that did not return before its timeout
type RunTimeout struct {
	Timeout time.Duration
}

func (e *RunTimeout) Error() string {
	return "timeout"
}

// RunError wraps the failure returned (or raised) by a check run
type RunError struct {
	Err error
}

func (e *RunError) Error() string {
	return e.Err.Error()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func panicError(r interface{}) error {
	return &RunError{Err: fmt.Errorf("check panicked: %v", r)}
}
