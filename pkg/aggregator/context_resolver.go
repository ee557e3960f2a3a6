// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregator

import (
	"errors"

	"github.com/DataDog/datadog-collector-core/pkg/aggregator/ckey"
	"github.com/DataDog/datadog-collector-core/pkg/metrics"
	"github.com/DataDog/datadog-collector-core/pkg/tagset"
)

// ErrCardinalityLimitExceeded is returned when a sample would create a new
// context while the window already tracks the maximum number of contexts.
var ErrCardinalityLimitExceeded = errors.New("cardinality limit exceeded")

// Context holds the elements that form a context, and can be serialized into a context key
type Context struct {
	Name string
	Tags []string
	Host string
}

// contextResolver tracks the contexts of one flush window
type contextResolver struct {
	contextsByKey map[ckey.ContextKey]*Context
	maxContexts   int
}

func newContextResolver(maxContexts int) *contextResolver {
	return &contextResolver{
		contextsByKey: make(map[ckey.ContextKey]*Context),
		maxContexts:   maxContexts,
	}
}

// trackContext returns the contextKey associated with the context of the
// sample and tracks that context. A new context beyond the cap is rejected.
func (cr *contextResolver) trackContext(sample *metrics.MetricSample) (ckey.ContextKey, *Context, error) {
	tags := tagset.Normalize(sample.Tags)
	contextKey := ckey.Generate(sample.Name, sample.Host, tags)

	ctx, ok := cr.contextsByKey[contextKey]
	if ok {
		return contextKey, ctx, nil
	}
	if cr.maxContexts > 0 && len(cr.contextsByKey) >= cr.maxContexts {
		return contextKey, nil, ErrCardinalityLimitExceeded
	}
	ctx = &Context{
		Name: sample.Name,
		Tags: tags,
		Host: sample.Host,
	}
	cr.contextsByKey[contextKey] = ctx
	return contextKey, ctx, nil
}

func (cr *contextResolver) get(key ckey.ContextKey) (*Context, bool) {
	ctx, found := cr.contextsByKey[key]
	return ctx, found
}

func (cr *contextResolver) length() int {
	return len(cr.contextsByKey)
}
