// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package tagset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	in := []string{"env:prod", "a:1", "", "env:prod", " b:2 "}
	out := Normalize(in)
	assert.Equal(t, []string{"a:1", "b:2", "env:prod"}, out)
	// input untouched
	assert.Equal(t, "env:prod", in[0])
	assert.Equal(t, []string{}, Normalize(nil))
}

func TestUnionAndEqual(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Union([]string{"c", "a"}, []string{"b", "a"}))
	assert.True(t, Equal([]string{"x:1", "y:2"}, []string{"y:2", "x:1", "x:1"}))
	assert.False(t, Equal([]string{"x:1"}, []string{"x:2"}))
}

func TestSplit(t *testing.T) {
	k, v := Split("service:web:api")
	assert.Equal(t, "service", k)
	assert.Equal(t, "web:api", v)
	k, v = Split("standalone")
	assert.Equal(t, "standalone", k)
	assert.Equal(t, "", v)
}
