// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package run implements 'agent run'.
package run

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/DataDog/datadog-collector-core/cmd/agent/command"
	"github.com/DataDog/datadog-collector-core/pkg/agent"
	"github.com/DataDog/datadog-collector-core/pkg/pidfile"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

type cliParams struct {
	*command.GlobalParams

	// pidfilePath contains the value of the --pidfile flag.
	pidfilePath string
}

// Commands returns a slice of subcommands for the 'agent' command.
func Commands(globalParams *command.GlobalParams) []*cobra.Command {
	cliParams := &cliParams{GlobalParams: globalParams}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Agent",
		Long:  `Runs the agent in the foreground`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cliParams)
		},
	}
	runCmd.Flags().StringVarP(&cliParams.pidfilePath, "pidfile", "p", "", "path to the pidfile")

	return []*cobra.Command{runCmd}
}

func run(ctx context.Context, cliParams *cliParams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := command.LoadConfig(cliParams.GlobalParams)
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		return command.NewConfigError(errors.New("no API key configured, exiting"))
	}

	if cliParams.pidfilePath != "" {
		if err := pidfile.WritePID(cliParams.pidfilePath); err != nil {
			return command.NewConfigError(log.Errorf("Error while writing PID file, exiting: %v", err))
		}
		defer os.Remove(cliParams.pidfilePath)
		log.Infof("pid '%d' written to pid file '%s'", os.Getpid(), cliParams.pidfilePath)
	}

	a, err := agent.New(cfg, clock.New())
	if err != nil {
		return command.NewConfigError(err)
	}

	// Setup a channel to catch OS signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}
