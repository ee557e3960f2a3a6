// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package registry holds the configured check instances and their runtime
// state. Readers get lock-free snapshots; writers serialize on a mutex and
// publish a new snapshot on every change.
package registry

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/tagset"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

// Options configures the registry defaults and the circuit breaker
type Options struct {
	DefaultInterval  time.Duration
	DefaultTimeout   time.Duration
	FailureThreshold int
	BackoffFactor    float64
	BackoffMax       time.Duration
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		DefaultInterval:  15 * time.Second,
		DefaultTimeout:   10 * time.Second,
		FailureThreshold: 1,
		BackoffFactor:    1.5,
		BackoffMax:       10 * time.Minute,
	}
}

// ErrInstanceExists is returned by Update when the new configuration is
// already registered as another instance.
var ErrInstanceExists = errors.New("instance already registered")

// Retired is a check object replaced by an update. Runs of the instance
// started before the update may still use it.
type Retired struct {
	Serial uint64
	Check  check.Check
}

// Registry owns every check instance. It is safe for concurrent use.
type Registry struct {
	m        sync.Mutex
	snapshot *atomic.Pointer[Snapshot]
	clock    clock.Clock
	opts     Options

	serial  uint64
	retired []Retired
}

// New returns an empty registry
func New(opts Options, clk clock.Clock) *Registry {
	if opts.FailureThreshold < 1 {
		opts.FailureThreshold = 1
	}
	if opts.BackoffFactor < 1 {
		opts.BackoffFactor = 1
	}
	r := &Registry{
		snapshot: atomic.NewPointer(&Snapshot{instances: map[check.ID]*Instance{}}),
		clock:    clk,
		opts:     opts,
	}
	return r
}

// Snapshot returns the current read-only view. It never blocks.
func (r *Registry) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// Get returns the current view of instance id
func (r *Registry) Get(id check.ID) (*Instance, bool) {
	return r.Snapshot().Get(id)
}

// update runs fn on a copy of the instance map and publishes the result.
// Must be called with r.m held.
func (r *Registry) update(fn func(map[check.ID]*Instance)) {
	cur := r.snapshot.Load()
	next := make(map[check.ID]*Instance, len(cur.instances)+1)
	for id, inst := range cur.instances {
		next[id] = inst
	}
	fn(next)
	r.snapshot.Store(&Snapshot{Version: cur.Version + 1, instances: next})
}

// Register validates configs against def and adds one instance per valid
// config. Registering a config that is already present is a no-op.
// Invalid configs are rejected with a *check.ConfigError; valid ones are
// registered regardless. The returned IDs match the valid configs.
func (r *Registry) Register(def *check.Definition, configs []check.InstanceConfig) ([]check.ID, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var errs *multierror.Error
	built := make([]*Instance, 0, len(configs))
	for i, cfg := range configs {
		inst, err := r.build(def, cfg)
		if err != nil {
			errs = multierror.Append(errs, withInstance(err, fmt.Sprintf("#%d", i)))
			continue
		}
		built = append(built, inst)
	}

	ids := make([]check.ID, 0, len(built))
	r.m.Lock()
	r.update(func(m map[check.ID]*Instance) {
		for _, inst := range built {
			ids = append(ids, inst.ID)
			if existing, found := m[inst.ID]; found {
				// the running check object is kept
				stopCheck(inst.Check)
				if existing.Removed {
					revived := existing.clone()
					revived.Removed = false
					m[inst.ID] = revived
					log.Debugf("registry: instance %s registered again before release", inst.ID)
				}
				continue
			}
			r.serial++
			inst.Serial = r.serial
			m[inst.ID] = inst
			log.Infof("registry: registered instance %s (interval %s, timeout %s)", inst.ID, inst.Interval, inst.Timeout)
		}
	})
	r.m.Unlock()

	return ids, errs.ErrorOrNil()
}

// build validates cfg and creates a configured instance, outside of any lock
func (r *Registry) build(def *check.Definition, cfg check.InstanceConfig) (*Instance, error) {
	if cfg == nil {
		cfg = check.InstanceConfig{}
	}
	if err := def.Schema.Validate(cfg); err != nil {
		return nil, &check.ConfigError{Check: def.Name, Err: err}
	}
	id, err := check.BuildID(def.Name, cfg)
	if err != nil {
		return nil, &check.ConfigError{Check: def.Name, Err: err}
	}
	digest, err := def.TargetIdentity(cfg)
	if err != nil {
		return nil, &check.ConfigError{Check: def.Name, Instance: string(id), Err: err}
	}

	c := def.Factory()
	if c == nil {
		return nil, &check.ConfigError{Check: def.Name, Instance: string(id), Err: fmt.Errorf("factory returned no check")}
	}
	if configurable, ok := c.(check.Configurable); ok {
		if err := configurable.Configure(cfg); err != nil {
			return nil, &check.ConfigError{Check: def.Name, Instance: string(id), Err: err}
		}
	}

	interval := def.DefaultInterval
	if interval <= 0 {
		interval = r.opts.DefaultInterval
	}
	if override, ok := cfg.MinCollectionInterval(); ok {
		interval = override
	}
	timeout := def.DefaultTimeout
	if timeout <= 0 {
		timeout = r.opts.DefaultTimeout
	}
	if override, ok := cfg.Timeout(); ok {
		timeout = override
	}

	return &Instance{
		ID:                id,
		Definition:        def,
		Check:             c,
		Config:            cfg.Copy(),
		Tags:              tagset.Normalize(cfg.Tags()),
		Interval:          interval,
		Timeout:           timeout,
		RegisteredAt:      r.clock.Now(),
		targetDigest:      digest,
		EffectiveInterval: interval,
	}, nil
}

func withInstance(err error, instance string) error {
	if ce, ok := err.(*check.ConfigError); ok && ce.Instance == "" {
		cp := *ce
		cp.Instance = instance
		return &cp
	}
	return err
}

// Update replaces the configuration of instance id and returns its new ID,
// derived from cfg like any registered instance. Failure and breaker state
// survive unless the monitored target changed. The replaced check object is
// handed out by TakeRetired.
func (r *Registry) Update(id check.ID, cfg check.InstanceConfig) (check.ID, error) {
	cur, ok := r.Get(id)
	if !ok || cur.Removed {
		return "", fmt.Errorf("unknown instance %s", id)
	}

	built, err := r.build(cur.Definition, cfg)
	if err != nil {
		return "", withInstance(err, string(id))
	}

	r.m.Lock()
	latest, found := r.Snapshot().Get(id)
	switch {
	case !found || latest.Removed:
		err = fmt.Errorf("unknown instance %s", id)
	case built.ID != id:
		if _, taken := r.Snapshot().Get(built.ID); taken {
			err = fmt.Errorf("%w: %s", ErrInstanceExists, built.ID)
		}
	}
	if err != nil {
		r.m.Unlock()
		stopCheck(built.Check)
		return "", err
	}
	r.update(func(m map[check.ID]*Instance) {
		next := latest.clone()
		next.ID = built.ID
		next.Check = built.Check
		next.Config = built.Config
		next.Tags = built.Tags
		next.Interval = built.Interval
		next.Timeout = built.Timeout
		next.Generation++

		if built.targetDigest != latest.targetDigest {
			next.targetDigest = built.targetDigest
			next.TargetGeneration++
			next.Failures = 0
			next.Breaker = BreakerClosed
			next.LastError = ""
			log.Infof("registry: target of instance %s changed, runtime state reset", id)
		}
		next.EffectiveInterval = r.effectiveInterval(next.Interval, next.Failures)
		delete(m, id)
		m[next.ID] = next
		r.retired = append(r.retired, Retired{Serial: latest.Serial, Check: latest.Check})
	})
	r.m.Unlock()
	if built.ID != id {
		log.Infof("registry: instance %s updated, now %s", id, built.ID)
	} else {
		log.Debugf("registry: instance %s updated", id)
	}
	return built.ID, nil
}

// TakeRetired returns the check objects replaced since the last call. The
// caller stops them once no run uses them.
func (r *Registry) TakeRetired() []Retired {
	r.m.Lock()
	defer r.m.Unlock()
	retired := r.retired
	r.retired = nil
	return retired
}

// Remove marks instance id for removal. Its next run is never scheduled; a
// run already in flight completes before Release drops it.
func (r *Registry) Remove(id check.ID) error {
	var err error
	r.m.Lock()
	r.update(func(m map[check.ID]*Instance) {
		cur, found := m[id]
		if !found {
			err = fmt.Errorf("unknown instance %s", id)
			return
		}
		if cur.Removed {
			return
		}
		next := cur.clone()
		next.Removed = true
		m[id] = next
	})
	r.m.Unlock()
	if err == nil {
		log.Infof("registry: instance %s marked for removal", id)
	}
	return err
}

// Release drops a removed instance and stops its check. The scheduler calls
// it once no run of the instance is in flight.
func (r *Registry) Release(id check.ID) {
	var released *Instance
	r.m.Lock()
	cur, found := r.Snapshot().Get(id)
	if found && cur.Removed {
		released = cur
		r.update(func(m map[check.ID]*Instance) {
			delete(m, id)
		})
	}
	r.m.Unlock()

	if released != nil {
		stopCheck(released.Check)
		log.Infof("registry: instance %s released", id)
	}
}

// RecordSuccess resets the failure counter of the instance the run was
// started for, following it across ID changes. Runs against a previous
// target are ignored.
func (r *Registry) RecordSuccess(ran *Instance, at time.Time) {
	r.record(ran, func(next *Instance) {
		next.LastRun = at
		next.LastSuccess = at
		next.Failures = 0
		next.Breaker = BreakerClosed
		next.LastError = ""
		next.EffectiveInterval = next.Interval
	})
}

// RecordFailure increments the failure counter and returns the effective
// interval to wait before the next run.
func (r *Registry) RecordFailure(ran *Instance, at time.Time, reason string) time.Duration {
	effective := r.effectiveInterval(ran.Interval, ran.Failures+1)
	r.record(ran, func(next *Instance) {
		next.LastRun = at
		next.Failures++
		next.LastError = reason
		if next.Failures >= r.opts.FailureThreshold {
			if next.Breaker != BreakerOpen {
				log.Warnf("registry: instance %s failed %d times in a row, backing off", next.ID, next.Failures)
			}
			next.Breaker = BreakerOpen
		}
		next.EffectiveInterval = r.effectiveInterval(next.Interval, next.Failures)
		effective = next.EffectiveInterval
	})
	return effective
}

func (r *Registry) record(ran *Instance, fn func(*Instance)) {
	r.m.Lock()
	defer r.m.Unlock()
	snap := r.Snapshot()
	cur, found := snap.Get(ran.ID)
	if !found || cur.Serial != ran.Serial {
		cur, found = snap.bySerial(ran.Serial)
	}
	if !found || cur.TargetGeneration != ran.TargetGeneration {
		return
	}
	r.update(func(m map[check.ID]*Instance) {
		next := cur.clone()
		fn(next)
		m[next.ID] = next
	})
}

// effectiveInterval is base while failures stay under the threshold, then
// base * factor^(failures-threshold+1), capped at max(BackoffMax, base).
func (r *Registry) effectiveInterval(base time.Duration, failures int) time.Duration {
	if failures < r.opts.FailureThreshold {
		return base
	}
	ceiling := r.opts.BackoffMax
	if ceiling < base {
		ceiling = base
	}
	exp := float64(failures - r.opts.FailureThreshold + 1)
	d := float64(base) * math.Pow(r.opts.BackoffFactor, exp)
	if math.IsInf(d, 0) || d > float64(ceiling) {
		return ceiling
	}
	return time.Duration(d)
}

func stopCheck(c check.Check) {
	if s, ok := c.(check.Stopper); ok {
		s.Stop()
	}
}
