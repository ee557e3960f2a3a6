// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package log

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cihub/seelog"
)

const (
	logDateFormat  = "2006-01-02 15:04:05 MST"
	maxLogFileSize = 10 * 1024 * 1024
	maxLogFileRoll = 1
)

// Settings describes where and how the process logger writes.
type Settings struct {
	// Name is the logger name printed on each line, e.g. "CORE".
	Name      string
	Level     string
	File      string
	ToConsole bool
	JSON      bool
}

var registerFormatterOnce sync.Once

func createQuoteMsgFormatter(_ string) seelog.FormatterFunc {
	return func(message string, _ seelog.LogLevel, _ seelog.LogContextInterface) interface{} {
		return strconv.Quote(message)
	}
}

func buildCommonFormat(name string) string {
	return fmt.Sprintf("%%Date(%s) | %s | %%LEVEL | %%Msg%%n", logDateFormat, name)
}

func buildJSONFormat(name string) string {
	registerFormatterOnce.Do(func() {
		_ = seelog.RegisterCustomFormatter("QuoteMsg", createQuoteMsgFormatter)
	})
	return fmt.Sprintf(`{"agent":"%s","time":"%%Date(%s)","level":"%%LEVEL","msg":%%QuoteMsg}%%n`, strings.ToLower(name), logDateFormat)
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// buildConfig renders the seelog XML configuration for s. Level filtering is
// done by the wrapper so seelog itself lets everything through.
func buildConfig(s Settings) string {
	name := s.Name
	if name == "" {
		name = "CORE"
	}
	formatID := "common"
	if s.JSON {
		formatID = "json"
	}

	var outputs strings.Builder
	if s.ToConsole {
		outputs.WriteString("<console />")
	}
	if s.File != "" {
		fmt.Fprintf(&outputs, `<rollingfile type="size" filename="%s" maxsize="%d" maxrolls="%d" />`,
			xmlEscape(s.File), maxLogFileSize, maxLogFileRoll)
	}

	return fmt.Sprintf(`<seelog minlevel="trace">
	<outputs formatid="%s">%s</outputs>
	<formats>
		<format id="common" format="%s"/>
		<format id="json" format="%s"/>
	</formats>
</seelog>`, formatID, outputs.String(), xmlEscape(buildCommonFormat(name)), xmlEscape(buildJSONFormat(name)))
}

// BuildLogger creates a seelog logger from s without installing it.
func BuildLogger(s Settings) (seelog.LoggerInterface, error) {
	if !s.ToConsole && s.File == "" {
		return seelog.Disabled, nil
	}
	l, err := seelog.LoggerFromConfigAsString(buildConfig(s))
	if err != nil {
		return nil, fmt.Errorf("unable to build logger: %w", err)
	}
	return l, nil
}

// Setup builds the logger described by s and installs it.
func Setup(s Settings) error {
	if _, ok := seelog.LogLevelFromString(strings.ToLower(s.Level)); !ok {
		return fmt.Errorf("unknown log level %q", s.Level)
	}
	l, err := BuildLogger(s)
	if err != nil {
		return err
	}
	SetupLogger(l, s.Level)
	return nil
}
