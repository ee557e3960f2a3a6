// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package subcommands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-collector-core/cmd/agent/command"
)

func writeConfig(t *testing.T, extra string) string {
	dir := t.TempDir()
	confd := filepath.Join(dir, "conf.d")
	require.NoError(t, os.MkdirAll(confd, 0755))
	content := "confd_path: " + confd + "\nlog_level: error\nspool_path: " + filepath.Join(dir, "spool.db") + "\n" + extra
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datadog.yaml"), []byte(content), 0644))
	return dir
}

func execute(args ...string) (int, string) {
	var out bytes.Buffer
	cmd := command.MakeCommand(AgentSubcommands())
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	return command.ExitCode(cmd.Execute()), out.String()
}

func TestVersion(t *testing.T) {
	code, out := execute("version")
	assert.Equal(t, command.ExitOK, code)
	assert.Contains(t, out, "Agent ")
}

func TestCheckWithoutConfiguration(t *testing.T) {
	dir := writeConfig(t, "")

	code, _ := execute("check", "ntp", "--cfgpath", dir)
	assert.Equal(t, command.ExitConfig, code)

	code, _ = execute("check", "unknown", "--cfgpath", dir)
	assert.Equal(t, command.ExitConfig, code)

	code, _ = execute("check", "--cfgpath", dir)
	assert.Equal(t, command.ExitFatal, code)
}

func TestRunRequiresAPIKey(t *testing.T) {
	dir := writeConfig(t, "")
	code, _ := execute("run", "--cfgpath", dir)
	assert.Equal(t, command.ExitConfig, code)
}

func TestInvalidConfiguration(t *testing.T) {
	dir := writeConfig(t, "flush_interval: 100ms\n")
	code, _ := execute("run", "--cfgpath", dir)
	assert.Equal(t, command.ExitConfig, code)
}
