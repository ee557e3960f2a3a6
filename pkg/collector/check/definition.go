// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package check

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Capabilities declares what a check emits
type Capabilities uint8

// Capabilities flags
const (
	ProducesMetrics Capabilities = 1 << iota
	ProducesEvents
	ProducesServiceChecks
)

// Has returns whether c includes all of o
func (c Capabilities) Has(o Capabilities) bool {
	return c&o == o
}

// Factory builds a new, unconfigured check
type Factory func() Check

// Definition describes a check type. It is never modified once registered.
type Definition struct {
	Name            string
	Capabilities    Capabilities
	DefaultInterval time.Duration
	DefaultTimeout  time.Duration
	Schema          Schema
	// TargetKeys are the parameters identifying the monitored target. An
	// update changing one of them resets the instance runtime state. When
	// empty, every parameter but the common ones is used.
	TargetKeys []string
	Factory    Factory
}

// Validate returns an error if the definition is not usable
func (d *Definition) Validate() error {
	if d == nil {
		return errors.New("nil check definition")
	}
	if d.Name == "" {
		return errors.New("check definition has no name")
	}
	if d.Factory == nil {
		return fmt.Errorf("check %s has no factory", d.Name)
	}
	if d.DefaultInterval < 0 || d.DefaultTimeout < 0 {
		return fmt.Errorf("check %s has a negative default interval or timeout", d.Name)
	}
	return nil
}

// Catalog maps check type names to their definition
type Catalog struct {
	m    sync.RWMutex
	defs map[string]*Definition
}

// NewCatalog returns an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*Definition)}
}

// Register adds def to the catalog. Names are unique.
func (c *Catalog) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	c.m.Lock()
	defer c.m.Unlock()
	if _, found := c.defs[def.Name]; found {
		return fmt.Errorf("check %s is already registered", def.Name)
	}
	c.defs[def.Name] = def
	return nil
}

// Get returns the definition registered under name
func (c *Catalog) Get(name string) (*Definition, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	def, ok := c.defs[name]
	return def, ok
}

// Names returns the sorted names of all registered checks
func (c *Catalog) Names() []string {
	c.m.RLock()
	defer c.m.RUnlock()
	names := make([]string, 0, len(c.defs))
	for n := range c.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
