// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import (
	"unicode"
	"unicode/utf8"
)

// UnexpectedUnicodeCodepoint contains specifics about an occurrence of an unexpected unicode codepoint
type UnexpectedUnicodeCodepoint struct {
	codepoint rune
	reason    string
	position  int
}

// FindUnexpectedUnicode returns the invisible whitespace and control
// codepoints of input, which usually come from copy-pasted YAML and break
// key lookups silently.
func FindUnexpectedUnicode(input string) []UnexpectedUnicodeCodepoint {
	var results []UnexpectedUnicodeCodepoint
	for pos, r := range input {
		reason := ""
		switch {
		case r == utf8.RuneError:
			reason = "invalid unicode"
		case r == ' ' || r == '\r' || r == '\n' || r == '\t':
		case unicode.IsSpace(r):
			reason = "unsupported whitespace"
		case unicode.Is(unicode.Bidi_Control, r):
			reason = "bidirectional control codepoint"
		case unicode.Is(unicode.C, r):
			reason = "control codepoint"
		}
		if reason != "" {
			results = append(results, UnexpectedUnicodeCodepoint{codepoint: r, reason: reason, position: pos})
		}
	}
	return results
}
