// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package tagset handles the unordered key:value tag sets attached to
// metrics, events and service checks.
package tagset

import (
	"sort"
	"strings"
)

// Normalize returns a sorted copy of tags with empty and duplicated entries
// removed. The input slice is never modified.
func Normalize(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return dedupSorted(out)
}

// Union returns the normalized union of a and b.
func Union(a, b []string) []string {
	all := make([]string, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return Normalize(all)
}

// Equal reports whether a and b hold the same set of tags.
func Equal(a, b []string) bool {
	na, nb := Normalize(a), Normalize(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

// Split returns the key and value of a key:value tag. Tags without a colon
// are returned as a key with an empty value.
func Split(tag string) (string, string) {
	if i := strings.IndexByte(tag, ':'); i >= 0 {
		return tag[:i], tag[i+1:]
	}
	return tag, ""
}

func dedupSorted(tags []string) []string {
	if len(tags) < 2 {
		return tags
	}
	j := 1
	for i := 1; i < len(tags); i++ {
		if tags[i] != tags[j-1] {
			tags[j] = tags[i]
			j++
		}
	}
	return tags[:j]
}
