// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cihub/seelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogger() {
	bufferMutex.Lock()
	logger = nil
	logsBuffer = []func(){}
	bufferLogsBeforeInit = true
	bufferMutex.Unlock()
}

func newTestLogger(t *testing.T, b *bytes.Buffer) seelog.LoggerInterface {
	l, err := seelog.LoggerFromWriterWithMinLevelAndFormat(b, seelog.TraceLvl, "[%Level] %Msg%n")
	require.NoError(t, err)
	return l
}

func lines(l seelog.LoggerInterface, b *bytes.Buffer) []string {
	l.Flush()
	Flush()
	out := strings.TrimSpace(b.String())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func TestBufferedBeforeSetup(t *testing.T) {
	resetLogger()
	defer resetLogger()

	var b bytes.Buffer
	Infof("first %d", 1)
	Debugf("dropped %d", 2)

	l := newTestLogger(t, &b)
	SetupLogger(l, "info")
	Info("second")

	got := lines(l, &b)
	require.Len(t, got, 2)
	assert.Equal(t, "[Info] first 1", got[0])
	assert.Equal(t, "[Info] second", got[1])
}

func TestLevelFiltering(t *testing.T) {
	resetLogger()
	defer resetLogger()

	var b bytes.Buffer
	l := newTestLogger(t, &b)
	SetupLogger(l, "warn")

	Debugf("debug")
	Infof("info")
	err := Warnf("warn %s", "line")
	require.Error(t, err)
	assert.Equal(t, "warn line", err.Error())
	_ = Errorf("error")

	got := lines(l, &b)
	assert.Equal(t, []string{"[Warn] warn line", "[Error] error"}, got)
}

func TestChangeLogLevel(t *testing.T) {
	resetLogger()
	defer resetLogger()

	assert.Error(t, ChangeLogLevel("debug"))

	var b bytes.Buffer
	l := newTestLogger(t, &b)
	SetupLogger(l, "error")
	Infof("hidden")

	require.NoError(t, ChangeLogLevel("DEBUG"))
	lvl, err := GetLogLevel()
	require.NoError(t, err)
	assert.Equal(t, seelog.LogLevel(seelog.DebugLvl), lvl)
	Debugf("visible")

	assert.Error(t, ChangeLogLevel("verbose"))
	assert.Equal(t, []string{"[Debug] visible"}, lines(l, &b))
}

func TestBuildConfig(t *testing.T) {
	cfg := buildConfig(Settings{Name: "CORE", ToConsole: true, File: "/var/log/core.log", JSON: true})
	assert.Contains(t, cfg, `<outputs formatid="json"><console /><rollingfile type="size" filename="/var/log/core.log"`)
	assert.Contains(t, cfg, "%QuoteMsg")

	_, err := seelog.LoggerFromConfigAsString(buildConfig(Settings{ToConsole: true}))
	assert.NoError(t, err)
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	resetLogger()
	defer resetLogger()
	assert.Error(t, Setup(Settings{Level: "loud", ToConsole: true}))
}
