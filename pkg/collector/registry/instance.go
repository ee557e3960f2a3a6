// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package registry

import (
	"sort"
	"time"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
)

// BreakerState is the circuit breaker status of an instance
type BreakerState int

// BreakerState values
const (
	// BreakerClosed: the instance runs at its configured interval
	BreakerClosed BreakerState = iota
	// BreakerOpen: the instance failed too often and is backing off
	BreakerOpen
)

func (b BreakerState) String() string {
	if b == BreakerOpen {
		return "open"
	}
	return "closed"
}

// Instance is an immutable view of one configured check instance. The
// registry replaces it on every change; holders never see it mutate.
type Instance struct {
	ID         check.ID
	Definition *check.Definition
	Check      check.Check
	Config     check.InstanceConfig
	Tags       []string
	Interval   time.Duration
	Timeout    time.Duration

	RegisteredAt time.Time

	// Serial identifies the instance across updates that change its ID.
	Serial uint64

	// Generation increases on every configuration update.
	Generation uint64
	// TargetGeneration increases when the monitored target changes.
	TargetGeneration uint64
	targetDigest     uint64

	LastRun           time.Time
	LastSuccess       time.Time
	Failures          int
	Breaker           BreakerState
	EffectiveInterval time.Duration
	LastError         string

	// Removed is set once removal was requested. The instance stays
	// visible until the scheduler releases it.
	Removed bool
}

func (i *Instance) clone() *Instance {
	c := *i
	return &c
}

// Snapshot is a read-only set of instances
type Snapshot struct {
	Version   uint64
	instances map[check.ID]*Instance
}

// Get returns the instance id
func (s *Snapshot) Get(id check.ID) (*Instance, bool) {
	inst, ok := s.instances[id]
	return inst, ok
}

// bySerial returns the instance with the given serial
func (s *Snapshot) bySerial(serial uint64) (*Instance, bool) {
	for _, inst := range s.instances {
		if inst.Serial == serial {
			return inst, true
		}
	}
	return nil, false
}

// Len returns the number of instances, removed ones included
func (s *Snapshot) Len() int {
	return len(s.instances)
}

// Instances returns all instances sorted by ID
func (s *Snapshot) Instances() []*Instance {
	out := make([]*Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
