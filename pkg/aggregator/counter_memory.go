// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregator

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/DataDog/datadog-collector-core/pkg/aggregator/ckey"
)

// counterMemory keeps the last raw value of the most recently used
// monotonic counters. A counter evicted from it starts over with a new
// baseline.
type counterMemory struct {
	cache *lru.Cache[ckey.ContextKey, float64]
}

func newCounterMemory(size int) (*counterMemory, error) {
	cache, err := lru.New[ckey.ContextKey, float64](size)
	if err != nil {
		return nil, err
	}
	return &counterMemory{cache: cache}, nil
}

func (m *counterMemory) Get(key ckey.ContextKey) (float64, bool) {
	return m.cache.Get(key)
}

func (m *counterMemory) Set(key ckey.ContextKey, value float64) {
	m.cache.Add(key, value)
}

func (m *counterMemory) Len() int {
	return m.cache.Len()
}
