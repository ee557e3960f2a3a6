// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package collector glues the config providers to the check registry
package collector

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/providers"
	"github.com/DataDog/datadog-collector-core/pkg/collector/registry"
	"github.com/DataDog/datadog-collector-core/pkg/collector/runner"
	"github.com/DataDog/datadog-collector-core/pkg/telemetry"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

var tlmConfigEvents = telemetry.NewCounter("collector", "config_events", []string{"action"}, "Config events applied to the registry, by action")

type appliedConfig struct {
	id     check.ID
	check  string
	config check.InstanceConfig
}

// ConfigApplier turns provider events into registry operations. Each
// source key maps to at most one instance; identical configs from several
// keys share the instance.
type ConfigApplier struct {
	catalog  *check.Catalog
	registry *registry.Registry
	stats    *runner.CheckStats

	m              sync.RWMutex
	configToChecks map[string]appliedConfig // cache the ID of the instance loaded for each key
	refs           map[check.ID]int
	configErrors   map[string]string
}

// NewConfigApplier returns an applier registering into reg the checks of
// catalog. stats may be nil.
func NewConfigApplier(catalog *check.Catalog, reg *registry.Registry, stats *runner.CheckStats) *ConfigApplier {
	return &ConfigApplier{
		catalog:        catalog,
		registry:       reg,
		stats:          stats,
		configToChecks: make(map[string]appliedConfig),
		refs:           make(map[check.ID]int),
		configErrors:   make(map[string]string),
	}
}

// Run applies events until ctx is done or every channel is closed
func (a *ConfigApplier) Run(ctx context.Context, sources ...<-chan providers.ConfigEvent) {
	merged := make(chan providers.ConfigEvent)
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src <-chan providers.ConfigEvent) {
			defer wg.Done()
			for ev := range src {
				select {
				case merged <- ev:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-merged:
			if !ok {
				return
			}
			a.Apply(ev)
		}
	}
}

// Apply applies a single event
func (a *ConfigApplier) Apply(ev providers.ConfigEvent) {
	a.m.Lock()
	defer a.m.Unlock()

	if ev.Removed {
		a.unschedule(ev.Key)
		delete(a.configErrors, ev.Key)
		tlmConfigEvents.Inc("remove")
		return
	}

	cur, found := a.configToChecks[ev.Key]
	if found && cur.check == ev.Check && reflect.DeepEqual(cur.config, ev.Config) {
		return
	}

	def, ok := a.catalog.Get(ev.Check)
	if !ok {
		a.setError(ev.Key, fmt.Errorf("unknown check %q", ev.Check))
		if found {
			a.unschedule(ev.Key)
		}
		return
	}

	if found && cur.check == ev.Check && a.refs[cur.id] == 1 && !a.registeredElsewhere(cur.id, ev) {
		// same instance, new configuration
		id, err := a.registry.Update(cur.id, ev.Config)
		if err != nil {
			a.setError(ev.Key, err)
			return
		}
		if id != cur.id {
			delete(a.refs, cur.id)
			a.refs[id] = 1
			if a.stats != nil {
				a.stats.Rename(cur.id, id)
			}
		}
		cur.id = id
		cur.config = ev.Config.Copy()
		a.configToChecks[ev.Key] = cur
		delete(a.configErrors, ev.Key)
		tlmConfigEvents.Inc("update")
		log.Infof("collector: instance %s updated from %s", cur.id, ev.Key)
		return
	}

	if found {
		a.unschedule(ev.Key)
	}
	ids, err := a.registry.Register(def, []check.InstanceConfig{ev.Config})
	if err != nil || len(ids) == 0 {
		if err == nil {
			err = fmt.Errorf("no instance registered")
		}
		a.setError(ev.Key, err)
		return
	}
	a.configToChecks[ev.Key] = appliedConfig{id: ids[0], check: ev.Check, config: ev.Config.Copy()}
	a.refs[ids[0]]++
	delete(a.configErrors, ev.Key)
	tlmConfigEvents.Inc("register")
	log.Debugf("collector: %s scheduled as instance %s", ev.Key, ids[0])
}

// registeredElsewhere returns whether the configuration of ev already runs
// as an instance other than id. Such an event joins that instance instead
// of updating id.
func (a *ConfigApplier) registeredElsewhere(id check.ID, ev providers.ConfigEvent) bool {
	next, err := check.BuildID(ev.Check, ev.Config)
	if err != nil || next == id {
		return false
	}
	_, found := a.registry.Get(next)
	return found
}

// unschedule drops the instance loaded for key once no other key uses it.
// Must be called with a.m held.
func (a *ConfigApplier) unschedule(key string) {
	cur, found := a.configToChecks[key]
	if !found {
		return
	}
	delete(a.configToChecks, key)
	a.refs[cur.id]--
	if a.refs[cur.id] > 0 {
		return
	}
	delete(a.refs, cur.id)
	if err := a.registry.Remove(cur.id); err != nil {
		log.Warnf("collector: unable to remove instance %s: %s", cur.id, err)
	}
	if a.stats != nil {
		a.stats.Remove(cur.id)
	}
}

func (a *ConfigApplier) setError(key string, err error) {
	a.configErrors[key] = err.Error()
	tlmConfigEvents.Inc("error")
	log.Errorf("collector: unable to load the check from %s: %s", key, err)
}

// InstanceID returns the instance loaded for key
func (a *ConfigApplier) InstanceID(key string) (check.ID, bool) {
	a.m.RLock()
	defer a.m.RUnlock()
	cur, found := a.configToChecks[key]
	return cur.id, found
}

// ConfigError describes a source key whose configuration was rejected
type ConfigError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// ConfigErrors returns the rejected configurations, sorted by key
func (a *ConfigApplier) ConfigErrors() []ConfigError {
	a.m.RLock()
	defer a.m.RUnlock()
	errs := make([]ConfigError, 0, len(a.configErrors))
	for key, msg := range a.configErrors {
		errs = append(errs, ConfigError{Key: key, Error: msg})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Key < errs[j].Key })
	return errs
}
