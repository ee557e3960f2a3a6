// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package corechecks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarningsAreReset(t *testing.T) {
	base := NewCheckBase("ntp")
	assert.Equal(t, "ntp", base.Name())

	err := base.Warnf("host %s unreachable", "pool.ntp.org")
	assert.EqualError(t, err, "host pool.ntp.org unreachable")
	base.Warn("second")

	warnings := base.GetWarnings()
	require.Len(t, warnings, 2)
	assert.EqualError(t, warnings[1], "second")
	assert.Empty(t, base.GetWarnings())
}
