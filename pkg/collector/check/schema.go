// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package check

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ParamKind is the expected type of an instance parameter
type ParamKind int

// ParamKind values
const (
	KindString ParamKind = iota
	KindInt
	KindFloat
	KindBool
	KindDuration
	KindList
	KindMap
)

func (k ParamKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDuration:
		return "duration"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "unknown"
}

// Param declares one instance parameter
type Param struct {
	Name     string
	Kind     ParamKind
	Required bool
}

// Schema is the list of parameters a check understands. Parameters not
// declared are passed through untouched.
type Schema []Param

// Validate checks cfg against the schema and the common parameters. Every
// invalid field is reported.
func (s Schema) Validate(cfg InstanceConfig) error {
	var errs *multierror.Error

	for name, kind := range commonParams {
		if _, ok := cfg[name]; ok {
			if err := checkKind(cfg, name, kind); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}

	for _, p := range s {
		if _, ok := cfg[p.Name]; !ok {
			if p.Required {
				errs = multierror.Append(errs, fmt.Errorf("missing required parameter %q", p.Name))
			}
			continue
		}
		if err := checkKind(cfg, p.Name, p.Kind); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}

func checkKind(cfg InstanceConfig, name string, kind ParamKind) error {
	var err error
	switch kind {
	case KindString:
		var s string
		s, err = cfg.GetString(name)
		if err == nil && s == "" {
			err = fmt.Errorf("parameter %q must not be empty", name)
		}
	case KindInt:
		_, err = cfg.GetInt(name)
	case KindFloat:
		_, err = cfg.GetFloat(name)
	case KindBool:
		_, err = cfg.GetBool(name)
	case KindDuration:
		var d time.Duration
		d, err = cfg.GetDuration(name)
		if err == nil && d < 0 {
			err = fmt.Errorf("parameter %q must not be negative", name)
		}
	case KindList:
		v := cfg[name]
		switch v.(type) {
		case []interface{}, []string:
		default:
			err = fmt.Errorf("parameter %q must be a list, got %T", name, v)
		}
		if err == nil && name == ParamTags {
			_, err = cfg.GetStringList(name)
		}
	case KindMap:
		if _, ok := cfg[name].(map[string]interface{}); !ok {
			err = fmt.Errorf("parameter %q must be a mapping, got %T", name, cfg[name])
		}
	}
	return err
}
