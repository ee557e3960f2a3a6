// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package agent assembles the collection pipeline: config providers feed the
// check registry, the scheduler dispatches instances to the worker pool, run
// outputs are aggregated and the flushed payloads forwarded.
package agent

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/DataDog/datadog-collector-core/pkg/aggregator"
	"github.com/DataDog/datadog-collector-core/pkg/api"
	"github.com/DataDog/datadog-collector-core/pkg/collector"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	corenet "github.com/DataDog/datadog-collector-core/pkg/collector/corechecks/net"
	"github.com/DataDog/datadog-collector-core/pkg/collector/providers"
	"github.com/DataDog/datadog-collector-core/pkg/collector/registry"
	"github.com/DataDog/datadog-collector-core/pkg/collector/runner"
	"github.com/DataDog/datadog-collector-core/pkg/collector/scheduler"
	"github.com/DataDog/datadog-collector-core/pkg/collector/worker"
	"github.com/DataDog/datadog-collector-core/pkg/commonchecks"
	"github.com/DataDog/datadog-collector-core/pkg/config"
	"github.com/DataDog/datadog-collector-core/pkg/forwarder"
	"github.com/DataDog/datadog-collector-core/pkg/forwarder/spool"
	"github.com/DataDog/datadog-collector-core/pkg/forwarder/transport"
	"github.com/DataDog/datadog-collector-core/pkg/serializer"
	"github.com/DataDog/datadog-collector-core/pkg/status"
	"github.com/DataDog/datadog-collector-core/pkg/status/health"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
	"github.com/DataDog/datadog-collector-core/pkg/version"
)

// Option customizes the agent built by New
type Option func(*options)

type options struct {
	transport transport.Transport
	checks    []*check.Definition
	providers []providers.ConfigProvider
}

// WithTransport replaces the HTTP transport of the forwarder
func WithTransport(tr transport.Transport) Option {
	return func(o *options) { o.transport = tr }
}

// WithChecks registers additional check definitions next to the built-in ones
func WithChecks(defs ...*check.Definition) Option {
	return func(o *options) { o.checks = append(o.checks, defs...) }
}

// WithProviders replaces the config providers listed in the configuration
func WithProviders(p ...providers.ConfigProvider) Option {
	return func(o *options) { o.providers = p }
}

// Agent owns every stage of the pipeline
type Agent struct {
	cfg       *config.AgentConfig
	clock     clock.Clock
	startedAt time.Time

	catalog    *check.Catalog
	registry   *registry.Registry
	stats      *runner.CheckStats
	pool       *worker.Pool
	scheduler  *scheduler.Scheduler
	aggregator *aggregator.Aggregator
	forwarder  *forwarder.Forwarder
	applier    *collector.ConfigApplier
	providers  []providers.ConfigProvider
	api        *api.Server
}

// New builds the agent described by cfg. The spool is opened here and
// closed when Run returns.
func New(cfg *config.AgentConfig, clk clock.Clock, opts ...Option) (*Agent, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	catalog := check.NewCatalog()
	if err := commonchecks.RegisterChecks(catalog, cfg); err != nil {
		return nil, err
	}
	for _, def := range o.checks {
		if err := catalog.Register(def); err != nil {
			return nil, err
		}
	}

	reg := registry.New(registry.Options{
		DefaultInterval:  cfg.CheckDefaultInterval,
		DefaultTimeout:   cfg.CheckDefaultTimeout,
		FailureThreshold: cfg.CheckFailureThreshold,
		BackoffFactor:    cfg.CheckBackoffFactor,
		BackoffMax:       cfg.CheckBackoffMax,
	}, clk)
	stats := runner.NewCheckStats(uint64(cfg.LoggingFrequency))

	ser, err := serializer.New(cfg.ForwarderCompression)
	if err != nil {
		return nil, err
	}
	tr := o.transport
	if tr == nil {
		tr = transport.NewHTTPTransport(cfg.APIKey, cfg.ForwarderTimeout)
	}

	sp, err := spool.Open(spool.Options{
		Path:       cfg.SpoolPath,
		MaxEntries: cfg.SpoolMaxEntries,
		MaxSize:    cfg.SpoolMaxSize,
		MaxAge:     cfg.SpoolMaxAge,
	})
	if err != nil {
		return nil, err
	}
	a, err := build(cfg, clk, catalog, reg, stats, ser, tr, sp)
	if err != nil {
		sp.Close() //nolint:errcheck
		return nil, err
	}

	a.providers = o.providers
	if a.providers == nil {
		for _, pc := range cfg.Providers {
			p, err := providers.NewProvider(pc, cfg, clk)
			if err != nil {
				sp.Close() //nolint:errcheck
				return nil, err
			}
			log.Infof("agent: config provider %s enabled", p)
			a.providers = append(a.providers, p)
		}
	}
	if cfg.StatusAddr != "" {
		a.api = api.NewServer(cfg.StatusAddr, a)
	}
	return a, nil
}

func build(cfg *config.AgentConfig, clk clock.Clock, catalog *check.Catalog, reg *registry.Registry, stats *runner.CheckStats,
	ser *serializer.Serializer, tr transport.Transport, sp *spool.Spool) (*Agent, error) {
	fwd, err := forwarder.New(forwarder.Options{
		Endpoints:                cfg.Endpoints,
		QueueSize:                cfg.ForwarderQueueSize,
		MaxAttempts:              cfg.ForwarderMaxAttempts,
		BackoffBase:              cfg.ForwarderBackoffBase,
		BackoffMax:               cfg.ForwarderBackoffMax,
		BackoffJitter:            cfg.ForwarderBackoffJitter,
		RetryInterval:            cfg.ForwarderRetryInterval,
		EndpointFailureThreshold: cfg.ForwarderEndpointFailureThreshold,
		EndpointBlock:            cfg.ForwarderEndpointBlock,
	}, ser, tr, sp, clk)
	if err != nil {
		return nil, err
	}

	// sequence numbers keep growing across restarts
	agg, err := aggregator.New(aggregator.Options{
		FlushInterval:     cfg.FlushInterval,
		MaxContexts:       cfg.AggregatorMaxContexts,
		BufferSize:        cfg.AggregatorBufferSize,
		MaxEventsPerFlush: cfg.AggregatorMaxEventsPerFlush,
		CounterMemorySize: cfg.AggregatorCounterMemory,
		Hostname:          cfg.Hostname,
	}, fwd, sp.MaxSequence(), clk)
	if err != nil {
		return nil, err
	}

	pool, err := worker.NewPool(cfg.CheckRunners, agg.Input(), stats, cfg.Hostname, clk)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(reg, pool, agg.Input(), scheduler.Options{
		TickInterval:      cfg.SchedulerTickInterval,
		SaturationBackoff: cfg.SchedulerSaturationBackoff,
		FlushInterval:     cfg.FlushInterval,
		JitterRatio:       cfg.CheckJitterRatio,
		Hostname:          cfg.Hostname,
	}, clk)

	return &Agent{
		cfg:        cfg,
		clock:      clk,
		startedAt:  clk.Now(),
		catalog:    catalog,
		registry:   reg,
		stats:      stats,
		pool:       pool,
		scheduler:  sched,
		aggregator: agg,
		forwarder:  fwd,
		applier:    collector.NewConfigApplier(catalog, reg, stats),
	}, nil
}

// stage is a set of goroutines stopped together
type stage struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
}

func newStage(name string) *stage {
	ctx, cancel := context.WithCancel(context.Background())
	return &stage{name: name, ctx: ctx, cancel: cancel}
}

func (s *stage) goRun(failed chan<- error, fn func(context.Context) error) {
	s.group.Go(func() error {
		err := fn(s.ctx)
		if err != nil {
			err = fmt.Errorf("%s: %w", s.name, err)
			select {
			case failed <- err:
			default:
			}
		}
		return err
	})
}

func (s *stage) stop() error {
	s.cancel()
	return s.group.Wait()
}

// Run runs the pipeline until ctx is done or a stage fails. Stages stop in
// order: providers and the API first, then the scheduler and its workers,
// then the aggregator after a final flush, and the forwarder last, writing
// what it could not deliver to the spool.
func (a *Agent) Run(ctx context.Context) error {
	log.Infof("agent: starting version %s on %s", version.String(), a.cfg.Hostname)

	failed := make(chan error, 1)
	fwdStage := newStage("forwarder")
	aggStage := newStage("aggregator")
	schedStage := newStage("scheduler")
	inputStage := newStage("providers")

	fwdStage.goRun(failed, a.forwarder.Run)
	aggStage.goRun(failed, a.aggregator.Run)
	schedStage.goRun(failed, func(ctx context.Context) error {
		a.pool.Run(ctx)
		return nil
	})
	schedStage.goRun(failed, a.scheduler.Run)

	sources := make([]<-chan providers.ConfigEvent, 0, len(a.providers))
	for _, p := range a.providers {
		sources = append(sources, p.Watch(inputStage.ctx))
	}
	inputStage.goRun(failed, func(ctx context.Context) error {
		a.applier.Run(ctx, sources...)
		return nil
	})
	if a.api != nil {
		inputStage.goRun(failed, a.api.Run)
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Infof("agent: shutting down")
	case runErr = <-failed:
		_ = log.Criticalf("agent: %s, shutting down", runErr)
	}

	for _, s := range []*stage{inputStage, schedStage, aggStage, fwdStage} {
		if err := s.stop(); err != nil && runErr == nil {
			runErr = err
		}
		log.Debugf("agent: %s stopped", s.name)
	}
	log.Infof("agent: stopped")
	return runErr
}

// Status returns the agent status document
func (a *Agent) Status() *status.Status {
	clocks := map[string]interface{}{}
	corenet.Provider{}.JSON(clocks)

	return &status.Status{
		Version:      version.String(),
		Hostname:     a.cfg.Hostname,
		Pid:          os.Getpid(),
		Time:         a.clock.Now(),
		StartedAt:    a.startedAt,
		Health:       health.GetStatus(),
		Clocks:       clocks,
		Checks:       status.Checks(a.registry.Snapshot().Instances(), a.scheduler.Status(), a.stats),
		ConfigErrors: a.applier.ConfigErrors(),
		Aggregator:   a.aggregator.Stats(),
		Forwarder:    a.forwarder.Stats(),
	}
}

// Catalog returns the known check definitions
func (a *Agent) Catalog() *check.Catalog {
	return a.catalog
}
