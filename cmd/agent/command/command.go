// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package command implements the top-level `agent` binary, including its subcommands.
package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DataDog/datadog-collector-core/pkg/config"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

// Exit codes of the agent binary
const (
	ExitOK     = 0
	ExitFatal  = 1
	ExitConfig = 2
)

// GlobalParams contains the values of agent-global Cobra flags.
//
// A pointer to this type is passed to SubcommandFactory's, but its contents
// are not valid until Cobra calls the subcommand's Run or RunE function.
type GlobalParams struct {
	// ConfFilePath holds the path to the folder containing the configuration
	// file, to allow overrides from the command line
	ConfFilePath string
}

// SubcommandFactory is a callable that will return a slice of subcommands.
type SubcommandFactory func(globalParams *GlobalParams) []*cobra.Command

// ConfigError marks errors caused by the configuration or the command line.
// They exit with ExitConfig.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps err as a ConfigError
func NewConfigError(err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Err: err}
}

// MakeCommand makes the top-level Cobra command for this app.
func MakeCommand(subcommandFactories []SubcommandFactory) *cobra.Command {
	globalParams := GlobalParams{}

	agentCmd := &cobra.Command{
		Use:   fmt.Sprintf("%s [command]", os.Args[0]),
		Short: "Datadog Agent collector core at your service.",
		Long: `
The Datadog Agent runs checks against the systems it monitors, aggregates
their metrics, events and service checks, and forwards them to Datadog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	agentCmd.PersistentFlags().StringVarP(&globalParams.ConfFilePath, "cfgpath", "c", "", "path to directory containing datadog.yaml")

	for _, sf := range subcommandFactories {
		for _, cmd := range sf(&globalParams) {
			agentCmd.AddCommand(cmd)
		}
	}

	return agentCmd
}

// LoadConfig reads and validates the configuration, then sets up the logger
func LoadConfig(globalParams *GlobalParams) (*config.AgentConfig, error) {
	cfg, err := config.Load(globalParams.ConfFilePath)
	if err != nil {
		return nil, NewConfigError(err)
	}
	if err := config.SetupLogger(cfg); err != nil {
		return nil, NewConfigError(err)
	}
	if cfg.ConfigFile != "" {
		log.Infof("Config will be read from file %s", cfg.ConfigFile)
	}
	return cfg, nil
}

// Run executes cmd and returns the process exit code
func Run(cmd *cobra.Command) int {
	err := cmd.Execute()
	log.Flush()
	return ExitCode(err)
}

// ExitCode maps the error returned by a command to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ExitConfig
	}
	return ExitFatal
}
