// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package check

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Parameters every instance may set, whatever its check type.
const (
	ParamTags                  = "tags"
	ParamMinCollectionInterval = "min_collection_interval"
	ParamTimeout               = "timeout"
	ParamName                  = "name"
)

var commonParams = map[string]ParamKind{
	ParamTags:                  KindList,
	ParamMinCollectionInterval: KindDuration,
	ParamTimeout:               KindDuration,
	ParamName:                  KindString,
}

// InstanceConfig is the configuration of one check instance
type InstanceConfig map[string]interface{}

// NewInstanceConfig converts a decoded YAML or JSON object into an
// InstanceConfig. Nested maps keyed by interface{} are converted too.
func NewInstanceConfig(raw interface{}) (InstanceConfig, error) {
	if raw == nil {
		return InstanceConfig{}, nil
	}
	v, err := normalizeValue(raw)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("instance must be a mapping, got %T", raw)
	}
	return InstanceConfig(m), nil
}

func normalizeValue(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				ks = fmt.Sprint(k)
			}
			nv, err := normalizeValue(val)
			if err != nil {
				return nil, err
			}
			m[ks] = nv
		}
		return m, nil
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			nv, err := normalizeValue(val)
			if err != nil {
				return nil, err
			}
			m[k] = nv
		}
		return m, nil
	case []interface{}:
		l := make([]interface{}, len(t))
		for i, val := range t {
			nv, err := normalizeValue(val)
			if err != nil {
				return nil, err
			}
			l[i] = nv
		}
		return l, nil
	default:
		return v, nil
	}
}

// Copy returns a deep copy of c
func (c InstanceConfig) Copy() InstanceConfig {
	v, _ := normalizeValue(map[string]interface{}(c))
	return InstanceConfig(v.(map[string]interface{}))
}

// Keys returns the sorted parameter names
func (c InstanceConfig) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Name returns the optional instance name
func (c InstanceConfig) Name() string {
	s, _ := c.GetString(ParamName)
	return s
}

// Tags returns the instance tags
func (c InstanceConfig) Tags() []string {
	tags, _ := c.GetStringList(ParamTags)
	return tags
}

// MinCollectionInterval returns the interval override, if any
func (c InstanceConfig) MinCollectionInterval() (time.Duration, bool) {
	d, err := c.GetDuration(ParamMinCollectionInterval)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// Timeout returns the timeout override, if any
func (c InstanceConfig) Timeout() (time.Duration, bool) {
	d, err := c.GetDuration(ParamTimeout)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// GetString returns the string parameter key
func (c InstanceConfig) GetString(key string) (string, error) {
	v, ok := c[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T", key, v)
	}
	return s, nil
}

// GetInt returns the integer parameter key
func (c InstanceConfig) GetInt(key string) (int, error) {
	v, ok := c[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("parameter %q must be an integer, got %v", key, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("parameter %q must be an integer: %w", key, err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("parameter %q must be an integer, got %T", key, v)
}

// GetFloat returns the numeric parameter key
func (c InstanceConfig) GetFloat(key string) (float64, error) {
	v, ok := c[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	return toFloat(key, v)
}

func toFloat(key string, v interface{}) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("parameter %q must be a number: %w", key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("parameter %q must be a number, got %T", key, v)
}

// GetBool returns the boolean parameter key
func (c InstanceConfig) GetBool(key string) (bool, error) {
	v, ok := c[key]
	if !ok {
		return false, fmt.Errorf("missing parameter %q", key)
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("parameter %q must be a boolean: %w", key, err)
		}
		return parsed, nil
	}
	return false, fmt.Errorf("parameter %q must be a boolean, got %T", key, v)
}

// GetDuration returns the duration parameter key. Numbers are seconds,
// strings are either seconds or Go durations ("1m30s").
func (c InstanceConfig) GetDuration(key string) (time.Duration, error) {
	v, ok := c[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	if s, ok := v.(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
	}
	f, err := toFloat(key, v)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be a duration", key)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// GetStringList returns the list-of-strings parameter key
func (c InstanceConfig) GetStringList(key string) ([]string, error) {
	v, ok := c[key]
	if !ok {
		return nil, fmt.Errorf("missing parameter %q", key)
	}
	switch l := v.(type) {
	case []string:
		return append([]string(nil), l...), nil
	case []interface{}:
		out := make([]string, 0, len(l))
		for i, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %q item %d must be a string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("parameter %q must be a list, got %T", key, v)
}
