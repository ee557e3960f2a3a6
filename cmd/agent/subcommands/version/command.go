// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package version implements 'agent version'.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/DataDog/datadog-collector-core/cmd/agent/command"
	"github.com/DataDog/datadog-collector-core/pkg/version"
)

// Commands returns a slice of subcommands for the 'agent' command.
func Commands(_ *command.GlobalParams) []*cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version info",
		Long:  ``,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Agent %s - Go version: %s\n", version.String(), runtime.Version())
		},
	}
	return []*cobra.Command{versionCmd}
}
