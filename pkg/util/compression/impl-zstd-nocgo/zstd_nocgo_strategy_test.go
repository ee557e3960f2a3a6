// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package zstdimpl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompress(t *testing.T) {
	strategy, err := New(1)
	require.NoError(t, err)

	src := bytes.Repeat([]byte(`{"metric":"system.load.1","points":[[1700000000,0.5]]}`), 50)
	compressed, err := strategy.Compress(src)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(src))

	out, err := strategy.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, src, out)
	assert.Equal(t, "zstd", strategy.ContentEncoding())
}

func TestEmptyInputIsAFrame(t *testing.T) {
	strategy, err := New(1)
	require.NoError(t, err)

	compressed, err := strategy.Compress(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, compressed)

	out, err := strategy.Decompress(compressed)
	require.NoError(t, err)
	assert.Empty(t, out)
}
