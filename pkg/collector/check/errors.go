// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package check

import "fmt"

// ConfigError is returned when an instance configuration is rejected. Such an
// instance is never scheduled.
type ConfigError struct {
	Check    string
	Instance string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Instance == "" {
		return fmt.Sprintf("invalid configuration for check %s: %v", e.Check, e.Err)
	}
	return fmt.Sprintf("invalid configuration for check %s (instance %s): %v", e.Check, e.Instance, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
