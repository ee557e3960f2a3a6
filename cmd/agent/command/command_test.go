// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package command

import (
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeCommand(t *testing.T) {
	var seen *GlobalParams
	cmd := MakeCommand([]SubcommandFactory{
		func(globalParams *GlobalParams) []*cobra.Command {
			return []*cobra.Command{{
				Use: "noop",
				RunE: func(*cobra.Command, []string) error {
					seen = globalParams
					return nil
				},
			}}
		},
	})
	cmd.SetArgs([]string{"noop", "--cfgpath", "/etc/datadog-agent"})
	require.NoError(t, cmd.Execute())
	require.NotNil(t, seen)
	assert.Equal(t, "/etc/datadog-agent", seen.ConfFilePath)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFatal, ExitCode(errors.New("forwarder: spool corrupted")))
	assert.Equal(t, ExitConfig, ExitCode(NewConfigError(errors.New("invalid configuration"))))
	assert.Equal(t, ExitConfig, ExitCode(fmt.Errorf("startup: %w", NewConfigError(errors.New("bad")))))
	assert.Nil(t, NewConfigError(nil))
}

func TestLoadConfigErrorsAreConfigErrors(t *testing.T) {
	_, err := LoadConfig(&GlobalParams{ConfFilePath: "/does/not/exist/datadog.yaml"})
	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
}
