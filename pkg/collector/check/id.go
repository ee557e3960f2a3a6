// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package check

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/twmb/murmur3"
)

// ID is the unique identifier of a check instance
type ID string

// canonicalJSON sorts map keys so that equal configs always encode the same
var canonicalJSON = jsoniter.Config{
	SortMapKeys:            true,
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// BuildID returns the instance ID for a check name and its configuration:
// "<name>:<16 hex digits>". It only depends on the content of cfg.
func BuildID(name string, cfg InstanceConfig) (ID, error) {
	digest, err := configDigest(cfg, nil)
	if err != nil {
		return "", fmt.Errorf("unable to build an ID for check %s: %w", name, err)
	}
	return ID(fmt.Sprintf("%s:%016x", name, digest)), nil
}

// IDToCheckName returns the check name from a check ID
func IDToCheckName(id ID) string {
	name, _, _ := strings.Cut(string(id), ":")
	return name
}

// TargetIdentity returns a digest of the parameters identifying the target
// monitored by cfg.
func (d *Definition) TargetIdentity(cfg InstanceConfig) (uint64, error) {
	if len(d.TargetKeys) > 0 {
		keep := make(map[string]struct{}, len(d.TargetKeys))
		for _, k := range d.TargetKeys {
			keep[k] = struct{}{}
		}
		return configDigest(cfg, func(k string) bool {
			_, ok := keep[k]
			return ok
		})
	}
	return configDigest(cfg, func(k string) bool {
		_, common := commonParams[k]
		return !common
	})
}

func configDigest(cfg InstanceConfig, include func(string) bool) (uint64, error) {
	subset := make(map[string]interface{}, len(cfg))
	for k, v := range cfg {
		if include == nil || include(k) {
			subset[k] = v
		}
	}
	b, err := canonicalJSON.Marshal(subset)
	if err != nil {
		return 0, err
	}
	return murmur3.Sum64(b), nil
}
