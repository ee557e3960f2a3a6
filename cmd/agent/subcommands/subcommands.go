// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package subcommands is used to list the subcommands of the agent binary
package subcommands

import (
	"github.com/DataDog/datadog-collector-core/cmd/agent/command"
	cmdcheck "github.com/DataDog/datadog-collector-core/cmd/agent/subcommands/check"
	cmdrun "github.com/DataDog/datadog-collector-core/cmd/agent/subcommands/run"
	cmdstatus "github.com/DataDog/datadog-collector-core/cmd/agent/subcommands/status"
	cmdversion "github.com/DataDog/datadog-collector-core/cmd/agent/subcommands/version"
)

// AgentSubcommands returns SubcommandFactories for the subcommands supported
// with the current build flags.
func AgentSubcommands() []command.SubcommandFactory {
	return []command.SubcommandFactory{
		cmdrun.Commands,
		cmdcheck.Commands,
		cmdstatus.Commands,
		cmdversion.Commands,
	}
}
