// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package commonchecks contains shared checks for multiple agent components
package commonchecks

import (
	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/corechecks/net/ntp"
	"github.com/DataDog/datadog-collector-core/pkg/collector/corechecks/system/cpu/load"
	"github.com/DataDog/datadog-collector-core/pkg/config"
)

// RegisterChecks registers all the built-in checks in the catalog
func RegisterChecks(catalog *check.Catalog, cfg *config.AgentConfig) error {
	defs := []*check.Definition{load.Definition()}
	if cfg.NTPEnabled {
		defs = append(defs, ntp.Definition(cfg.NTPHosts, cfg.NTPOffsetThreshold))
	}
	for _, def := range defs {
		if err := catalog.Register(def); err != nil {
			return err
		}
	}
	return nil
}
