// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package check implements 'agent check'.
package check

import (
	"context"
	"fmt"
	"io"

	"github.com/benbjohnson/clock"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/DataDog/datadog-collector-core/cmd/agent/command"
	"github.com/DataDog/datadog-collector-core/pkg/agent"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
)

type cliParams struct {
	*command.GlobalParams

	checkName string
}

type runReport struct {
	Instance string            `json:"instance"`
	Error    string            `json:"error,omitempty"`
	Output   *sender.RunOutput `json:"output"`
}

// Commands returns a slice of subcommands for the 'agent' command.
func Commands(globalParams *command.GlobalParams) []*cobra.Command {
	cliParams := &cliParams{GlobalParams: globalParams}
	cmd := &cobra.Command{
		Use:   "check <check_name>",
		Short: "Run the specified check",
		Long:  `Run every configured instance of the specified check once and print what it collected.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliParams.checkName = args[0]
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return run(ctx, cliParams, cmd.OutOrStdout())
		},
	}
	return []*cobra.Command{cmd}
}

func run(ctx context.Context, cliParams *cliParams, w io.Writer) error {
	cfg, err := command.LoadConfig(cliParams.GlobalParams)
	if err != nil {
		return err
	}

	runs, err := agent.RunCheck(ctx, cfg, cliParams.checkName, clock.New())
	if len(runs) == 0 && err != nil {
		return command.NewConfigError(err)
	}

	reports := make([]runReport, 0, len(runs))
	failed := 0
	for _, r := range runs {
		report := runReport{Instance: string(r.ID), Output: r.Output}
		if r.Err != nil {
			report.Error = r.Err.Error()
			failed++
		}
		reports = append(reports, report)
	}
	out, jsonErr := jsoniter.MarshalIndent(reports, "", "  ")
	if jsonErr != nil {
		return jsonErr
	}
	fmt.Fprintln(w, string(out))

	if err != nil {
		return command.NewConfigError(err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d instances of %s failed", failed, len(runs), cliParams.checkName)
	}
	return nil
}
