// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package health tracks the liveness of the agent long-running loops. Each
// loop registers once and pings on every iteration; a loop that missed its
// timeout is reported unhealthy.
package health

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

// DefaultTimeout is used by components registered without one
const DefaultTimeout = 30 * time.Second

// ID objects are returned when registering and are to be used when pinging
type ID string

// Status represents the current status of registered components
type Status struct {
	Healthy   []string `json:"healthy"`
	Unhealthy []string `json:"unhealthy"`
}

type component struct {
	name       string
	timeout    time.Duration
	latestPing time.Time
}

type componentCatalog struct {
	sync.RWMutex
	components map[ID]*component
}

var (
	catalog = componentCatalog{components: make(map[ID]*component)}
	// for testing purpose
	now = time.Now
)

// Register a component with the default timeout, returns a token
func Register(name string) ID {
	return RegisterWithCustomTimeout(name, DefaultTimeout)
}

// RegisterWithCustomTimeout registers a component that must ping at least
// once per timeout. It is unhealthy until its first ping.
func RegisterWithCustomTimeout(name string, timeout time.Duration) ID {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	catalog.Lock()
	defer catalog.Unlock()

	id := ID(name)
	for n := 2; ; n++ {
		if _, taken := catalog.components[id]; !taken {
			break
		}
		id = ID(fmt.Sprintf("%s-%d", name, n))
	}

	catalog.components[id] = &component{name: name, timeout: timeout}
	log.Debugf("health: %s registered with a %s timeout", id, timeout)
	return id
}

// Deregister a component from the healthcheck
func Deregister(token ID) error {
	catalog.Lock()
	defer catalog.Unlock()
	if _, found := catalog.components[token]; !found {
		return fmt.Errorf("component %s not registered", token)
	}
	delete(catalog.components, token)
	return nil
}

// Ping is to be called regularly by component to signal they are still healthy
func Ping(token ID) error {
	catalog.Lock()
	defer catalog.Unlock()
	c, found := catalog.components[token]
	if !found {
		return fmt.Errorf("component %s not registered", token)
	}
	c.latestPing = now()
	return nil
}

// GetStatus allows to query the health status of the agent
func GetStatus() Status {
	status := Status{Healthy: []string{}, Unhealthy: []string{}}
	t := now()

	catalog.RLock()
	defer catalog.RUnlock()

	for _, c := range catalog.components {
		if c.latestPing.IsZero() || t.After(c.latestPing.Add(c.timeout)) {
			status.Unhealthy = append(status.Unhealthy, c.name)
		} else {
			status.Healthy = append(status.Healthy, c.name)
		}
	}
	sort.Strings(status.Healthy)
	sort.Strings(status.Unhealthy)
	return status
}

// IsHealthy returns whether every registered component pinged in time
func (s Status) IsHealthy() bool {
	return len(s.Unhealthy) == 0
}

// reset is used for unit testing
func reset() {
	catalog.Lock()
	catalog.components = make(map[ID]*component)
	catalog.Unlock()
}
