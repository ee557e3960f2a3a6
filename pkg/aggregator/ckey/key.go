// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package ckey computes the context keys the aggregator groups samples by.
package ckey

import (
	"github.com/twmb/murmur3"
)

// ContextKey is a non-cryptographic hash identifying one (name, host, tag set)
// aggregation context. Using a uint64 keeps map access on the fast path.
type ContextKey uint64

// seed is the neutral starting value of every key.
const seed = 0xc6a4a7935bd1e995

// fieldSeparator is mixed in between fields so that ("ab", "c") and
// ("a", "bc") do not produce the same key.
const fieldSeparator = "\x00"

// Generate returns the ContextKey for name, hostname and tags. Tags must
// already be normalized (sorted, without duplicates), see tagset.Normalize.
func Generate(name, hostname string, tags []string) ContextKey {
	h := murmur3.SeedStringSum64(seed, name)
	h = murmur3.SeedStringSum64(h, fieldSeparator+hostname)
	for _, t := range tags {
		h = murmur3.SeedStringSum64(h, fieldSeparator+t)
	}
	return ContextKey(h)
}

// IsZero returns true if the key is at zero value
func (k ContextKey) IsZero() bool {
	return k == 0
}
