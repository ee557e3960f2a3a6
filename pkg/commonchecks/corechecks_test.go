// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package commonchecks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/config"
)

func TestRegisterChecks(t *testing.T) {
	catalog := check.NewCatalog()
	cfg := &config.AgentConfig{NTPEnabled: true, NTPHosts: []string{"0.pool.ntp.org"}, NTPOffsetThreshold: time.Minute}
	require.NoError(t, RegisterChecks(catalog, cfg))
	assert.Equal(t, []string{"load", "ntp"}, catalog.Names())

	// names are unique
	assert.Error(t, RegisterChecks(catalog, cfg))

	catalog = check.NewCatalog()
	require.NoError(t, RegisterChecks(catalog, &config.AgentConfig{}))
	assert.Equal(t, []string{"load"}, catalog.Names())
}
