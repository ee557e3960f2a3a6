// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import (
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

// LoggerName is printed on every log line of the agent
const LoggerName = "CORE"

// SetupLogger installs the process logger described by the config
func SetupLogger(c *AgentConfig) error {
	return log.Setup(log.Settings{
		Name:      LoggerName,
		Level:     c.LogLevel,
		File:      c.LogFile,
		ToConsole: c.LogToConsole,
		JSON:      c.LogFormatJSON,
	})
}
