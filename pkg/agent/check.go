// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package agent

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
	"github.com/DataDog/datadog-collector-core/pkg/collector/providers"
	"github.com/DataDog/datadog-collector-core/pkg/collector/registry"
	"github.com/DataDog/datadog-collector-core/pkg/collector/runner"
	"github.com/DataDog/datadog-collector-core/pkg/collector/worker"
	"github.com/DataDog/datadog-collector-core/pkg/commonchecks"
	"github.com/DataDog/datadog-collector-core/pkg/config"
)

// CheckRun is the outcome of one run of an instance
type CheckRun struct {
	ID     check.ID
	Output *sender.RunOutput
	Err    error
}

// RunCheck runs every instance of check name configured in the confd
// directory once, through a single worker, and returns the outputs in
// instance order. Instances rejected by the check schema are reported in
// the returned error.
func RunCheck(ctx context.Context, cfg *config.AgentConfig, name string, clk clock.Clock, extra ...*check.Definition) ([]CheckRun, error) {
	catalog := check.NewCatalog()
	if err := commonchecks.RegisterChecks(catalog, cfg); err != nil {
		return nil, err
	}
	for _, def := range extra {
		if err := catalog.Register(def); err != nil {
			return nil, err
		}
	}
	def, ok := catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown check %q, known checks are %v", name, catalog.Names())
	}

	var configs []check.InstanceConfig
	for _, ev := range providers.NewFileConfigProvider(cfg.ConfdPath, 0, clk).Collect() {
		if ev.Check == name && !ev.Removed {
			configs = append(configs, ev.Config)
		}
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("no configuration found for check %s in %s", name, cfg.ConfdPath)
	}

	reg := registry.New(registry.Options{DefaultInterval: cfg.CheckDefaultInterval, DefaultTimeout: cfg.CheckDefaultTimeout}, clk)
	ids, regErr := reg.Register(def, configs)
	var errs *multierror.Error
	if regErr != nil {
		errs = multierror.Append(errs, regErr)
	}
	defer func() {
		for _, id := range ids {
			_ = reg.Remove(id)
			reg.Release(id)
		}
	}()

	output := make(chan *sender.RunOutput, 1)
	pool, err := worker.NewPool(1, output, runner.NewCheckStats(1), cfg.Hostname, clk)
	if err != nil {
		return nil, err
	}
	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go pool.Run(poolCtx)

	runs := make([]CheckRun, 0, len(ids))
	for _, id := range ids {
		inst, found := reg.Get(id)
		if !found {
			continue
		}
		select {
		case pool.Jobs() <- &worker.Job{Instance: inst}:
		case <-ctx.Done():
			return runs, ctx.Err()
		}

		var run CheckRun
		select {
		case run.Output = <-output:
		case <-ctx.Done():
			return runs, ctx.Err()
		}
		select {
		case res := <-pool.Results():
			run.ID = res.Instance.ID
			run.Err = res.Err
		case <-ctx.Done():
			return runs, ctx.Err()
		}
		runs = append(runs, run)
	}
	return runs, errs.ErrorOrNil()
}
