// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package status

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
	"time"

	jsoniter "github.com/json-iterator/go"
)

//go:embed templates
var templatesFS embed.FS

var fmap = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format(time.RFC3339)
	},
	"join": func(s []string) string {
		if len(s) == 0 {
			return "none"
		}
		return strings.Join(s, ", ")
	},
	"printDashes": func(s string, dash string) string {
		return strings.Repeat(dash, len(s))
	},
}

var statusTemplate = template.Must(template.New("status.tmpl").Funcs(fmap).ParseFS(templatesFS, "templates/status.tmpl"))

// FormatStatus takes a json bytestring and prints out the formatted statuspage
func FormatStatus(data []byte) (string, error) {
	var s Status
	if err := jsoniter.Unmarshal(data, &s); err != nil {
		return "", err
	}
	return Render(&s)
}

// Render returns the text rendering of s
func Render(s *Status) (string, error) {
	var b bytes.Buffer
	if err := statusTemplate.Execute(&b, s); err != nil {
		return "", err
	}
	return b.String(), nil
}
