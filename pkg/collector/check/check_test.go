// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package check

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
)

func noopFactory() Check {
	return CheckFunc(func(context.Context, InstanceConfig, sender.Sender) error { return nil })
}

func postgresDefinition() *Definition {
	return &Definition{
		Name:            "postgres",
		Capabilities:    ProducesMetrics | ProducesServiceChecks,
		DefaultInterval: 15 * time.Second,
		DefaultTimeout:  5 * time.Second,
		Schema: Schema{
			{Name: "host", Kind: KindString, Required: true},
			{Name: "port", Kind: KindInt, Required: true},
			{Name: "ssl", Kind: KindBool},
		},
		TargetKeys: []string{"host", "port"},
		Factory:    noopFactory,
	}
}

func parseInstance(t *testing.T, doc string) InstanceConfig {
	var raw interface{}
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	cfg, err := NewInstanceConfig(raw)
	require.NoError(t, err)
	return cfg
}

func TestNewInstanceConfigFromYAML(t *testing.T) {
	cfg := parseInstance(t, `
host: db1
port: 5432
tags: ["env:prod", "role:primary"]
min_collection_interval: 30
timeout: 2s
options:
  nested: {a: 1}
`)
	assert.Equal(t, []string{"env:prod", "role:primary"}, cfg.Tags())
	iv, ok := cfg.MinCollectionInterval()
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, iv)
	to, ok := cfg.Timeout()
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, to)
	port, err := cfg.GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, 5432, port)

	nested, ok := cfg["options"].(map[string]interface{})
	require.True(t, ok)
	_, ok = nested["nested"].(map[string]interface{})
	assert.True(t, ok)

	_, err = NewInstanceConfig([]interface{}{1})
	assert.Error(t, err)
}

func TestSchemaValidate(t *testing.T) {
	def := postgresDefinition()

	assert.NoError(t, def.Schema.Validate(parseInstance(t, "host: db1\nport: 5432\n")))

	err := def.Schema.Validate(parseInstance(t, "port: nope\nssl: maybe\ntags: [1]\n"))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `missing required parameter "host"`)
	assert.Contains(t, msg, `"port" must be an integer`)
	assert.Contains(t, msg, `"ssl" must be a boolean`)
	assert.Contains(t, msg, `"tags" item 0 must be a string`)
}

func TestBuildIDIsDeterministic(t *testing.T) {
	a := parseInstance(t, "host: db1\nport: 5432\ntags: [a]\n")
	b := parseInstance(t, "tags: [a]\nport: 5432\nhost: db1\n")
	c := parseInstance(t, "host: db2\nport: 5432\ntags: [a]\n")

	idA, err := BuildID("postgres", a)
	require.NoError(t, err)
	idB, err := BuildID("postgres", b)
	require.NoError(t, err)
	idC, err := BuildID("postgres", c)
	require.NoError(t, err)

	assert.Equal(t, idA, idB)
	assert.NotEqual(t, idA, idC)
	assert.True(t, strings.HasPrefix(string(idA), "postgres:"))
	assert.Len(t, string(idA), len("postgres:")+16)
	assert.Equal(t, "postgres", IDToCheckName(idA))
}

func TestTargetIdentity(t *testing.T) {
	def := postgresDefinition()
	base, err := def.TargetIdentity(parseInstance(t, "host: db1\nport: 5432\ntags: [a]\n"))
	require.NoError(t, err)

	retagged, err := def.TargetIdentity(parseInstance(t, "host: db1\nport: 5432\ntags: [b]\nssl: true\n"))
	require.NoError(t, err)
	assert.Equal(t, base, retagged)

	moved, err := def.TargetIdentity(parseInstance(t, "host: db2\nport: 5432\n"))
	require.NoError(t, err)
	assert.NotEqual(t, base, moved)

	// without TargetKeys every non common parameter counts
	def.TargetKeys = nil
	withSSL, err := def.TargetIdentity(parseInstance(t, "host: db1\nport: 5432\nssl: true\n"))
	require.NoError(t, err)
	assert.NotEqual(t, base, withSSL)
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(postgresDefinition()))
	assert.Error(t, c.Register(postgresDefinition()))
	assert.Error(t, c.Register(&Definition{Name: "nofactory"}))
	require.NoError(t, c.Register(&Definition{Name: "apache", Factory: noopFactory}))

	def, ok := c.Get("postgres")
	require.True(t, ok)
	assert.True(t, def.Capabilities.Has(ProducesMetrics))
	assert.False(t, def.Capabilities.Has(ProducesEvents))
	assert.Equal(t, []string{"apache", "postgres"}, c.Names())
}

func TestConfigError(t *testing.T) {
	inner := errors.New("missing host")
	err := error(&ConfigError{Check: "postgres", Instance: "postgres:0000000000000001", Err: inner})
	assert.True(t, errors.Is(err, inner))

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "postgres", ce.Check)
	assert.Contains(t, err.Error(), "instance postgres:0000000000000001")
}
