// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package providers feeds check instance configurations into the agent at
// runtime. A provider watches one source and reports every addition, change
// and removal as a ConfigEvent.
package providers

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/benbjohnson/clock"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/config"
)

// ConfigEvent reports the current configuration of one instance, or its
// removal from the source
type ConfigEvent struct {
	// Key identifies the instance within its source and is stable across
	// changes of its configuration
	Key     string
	Check   string
	Config  check.InstanceConfig
	Removed bool
}

// ConfigProvider is the interface that wraps the Watch method
//
// Watch emits the initial configuration then every change until ctx is done,
// and closes the channel. A source that cannot be read produces no event:
// only configurations that disappear from a source that was read are
// reported as removed.
type ConfigProvider interface {
	fmt.Stringer
	Watch(ctx context.Context) <-chan ConfigEvent
}

// ProviderFactory builds a provider from its `config_providers` entry
type ProviderFactory func(providerConfig config.ConfigurationProviders, agentConfig *config.AgentConfig, clk clock.Clock) (ConfigProvider, error)

// ProviderCatalog keeps track of config providers by name
var ProviderCatalog = make(map[string]ProviderFactory)

// RegisterProvider adds a factory to the providers catalog
func RegisterProvider(name string, factory ProviderFactory) {
	ProviderCatalog[name] = factory
}

// NewProvider builds the provider named in providerConfig
func NewProvider(providerConfig config.ConfigurationProviders, agentConfig *config.AgentConfig, clk clock.Clock) (ConfigProvider, error) {
	factory, found := ProviderCatalog[providerConfig.Name]
	if !found {
		return nil, fmt.Errorf("unknown config provider %q", providerConfig.Name)
	}
	return factory(providerConfig, agentConfig, clk)
}

// configSet is the full content of a source, by key
type configSet map[string]ConfigEvent

// diff returns the events turning prev into next, sorted by key
func diff(prev, next configSet) []ConfigEvent {
	var events []ConfigEvent
	for key, ev := range next {
		old, found := prev[key]
		if found && old.Check == ev.Check && reflect.DeepEqual(old.Config, ev.Config) {
			continue
		}
		events = append(events, ev)
	}
	for key, old := range prev {
		if _, found := next[key]; !found {
			events = append(events, ConfigEvent{Key: key, Check: old.Check, Removed: true})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Key < events[j].Key })
	return events
}

// send delivers events in order. It returns false if ctx was done first.
func send(ctx context.Context, out chan<- ConfigEvent, events []ConfigEvent) bool {
	for _, ev := range events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
