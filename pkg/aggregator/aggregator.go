// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package aggregator merges the output of check runs over a flush interval
// and hands one payload per interval to the forwarder.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/servicecheck"
	"github.com/DataDog/datadog-collector-core/pkg/serializer"
	"github.com/DataDog/datadog-collector-core/pkg/status/health"
	"github.com/DataDog/datadog-collector-core/pkg/telemetry"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

// CardinalityServiceCheck is emitted once per window when new contexts were
// rejected.
const CardinalityServiceCheck = "datadog.agent.aggregator.cardinality_limit"

var (
	tlmFlushes        = telemetry.NewSimpleCounter("aggregator", "flushes", "Payloads produced by the aggregator")
	tlmSeries         = telemetry.NewSimpleCounter("aggregator", "series_flushed", "Series flushed")
	tlmContexts       = telemetry.NewGauge("aggregator", "contexts", nil, "Contexts in the current window")
	tlmSamplesDropped = telemetry.NewCounter("aggregator", "samples_dropped", []string{"reason"}, "Samples dropped at ingestion")
	tlmEventsDropped  = telemetry.NewSimpleCounter("aggregator", "events_dropped", "Events dropped because the window was full")
	tlmCounterResets  = telemetry.NewSimpleCounter("aggregator", "counter_resets", "Monotonic counters seen going backwards")
)

// Forwarder receives the flushed payloads
type Forwarder interface {
	Submit(p *serializer.Payload) error
}

// Options configures the aggregator
type Options struct {
	FlushInterval     time.Duration
	MaxContexts       int
	BufferSize        int
	MaxEventsPerFlush int
	CounterMemorySize int
	Hostname          string
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		FlushInterval:     15 * time.Second,
		MaxContexts:       100000,
		BufferSize:        100,
		MaxEventsPerFlush: 1000,
		CounterMemorySize: 50000,
	}
}

// Stats is a point in time view of the aggregator
type Stats struct {
	Contexts         int
	Flushes          uint64
	LastSequence     uint64
	LastFlush        time.Time
	SamplesDropped   uint64
	ContextsRejected uint64
	EventsDropped    uint64
	TrackedCounters  int
}

// Aggregator owns the aggregation windows. Run outputs arrive on Input and
// are merged as a whole, so a flush never splits a run.
type Aggregator struct {
	m       sync.Mutex
	current *window
	memory  *counterMemory
	stats   Stats

	in        chan *sender.RunOutput
	forwarder Forwarder
	clock     clock.Clock
	opts      Options
	interval  int64
	sequence  uint64
}

// New returns an aggregator submitting to fwd. Sequence numbers start right
// after lastSequence.
func New(opts Options, fwd Forwarder, lastSequence uint64, clk clock.Clock) (*Aggregator, error) {
	if opts.FlushInterval < time.Second {
		return nil, fmt.Errorf("flush interval must be at least 1s, got %s", opts.FlushInterval)
	}
	if fwd == nil {
		return nil, errors.New("aggregator needs a forwarder")
	}
	if opts.BufferSize < 0 {
		opts.BufferSize = 0
	}
	if opts.CounterMemorySize <= 0 {
		opts.CounterMemorySize = DefaultOptions().CounterMemorySize
	}
	memory, err := newCounterMemory(opts.CounterMemorySize)
	if err != nil {
		return nil, err
	}

	a := &Aggregator{
		memory:    memory,
		in:        make(chan *sender.RunOutput, opts.BufferSize),
		forwarder: fwd,
		clock:     clk,
		opts:      opts,
		interval:  int64(opts.FlushInterval / time.Second),
		sequence:  lastSequence,
	}
	a.current = a.newWindow()
	a.stats.LastSequence = lastSequence
	return a, nil
}

func (a *Aggregator) newWindow() *window {
	return newWindow(a.interval, a.memory, a.opts.MaxContexts, a.opts.MaxEventsPerFlush)
}

// Input is the channel run outputs are sent on
func (a *Aggregator) Input() chan<- *sender.RunOutput {
	return a.in
}

// Ingest merges the output of one run into the current window
func (a *Aggregator) Ingest(out *sender.RunOutput) {
	if out == nil {
		return
	}
	a.m.Lock()
	defer a.m.Unlock()

	now := float64(a.clock.Now().Unix())
	w := a.current
	for _, sample := range out.Samples {
		if err := w.addSample(sample, now); err != nil && w.contextsRejected == 1 {
			log.Warnf("aggregator: %s, %d contexts tracked: new contexts are rejected until the next flush", err, a.opts.MaxContexts)
		}
	}
	w.serviceChecks = append(w.serviceChecks, out.ServiceChecks...)
	for _, e := range out.Events {
		w.addEvent(e)
	}
	tlmContexts.Set(float64(w.contexts.length()))
}

// Flush swaps the current window for an empty one and returns its content.
// It returns nil, without consuming a sequence number, when the window was
// empty.
func (a *Aggregator) Flush(now time.Time) *serializer.Payload {
	a.m.Lock()
	w := a.current
	a.current = a.newWindow()
	a.m.Unlock()

	ts := now.Unix()
	series, resets := w.flush(float64(ts), a.interval, a.opts.Hostname)

	serviceChecks := w.serviceChecks
	if w.contextsRejected > 0 {
		serviceChecks = append(serviceChecks, &servicecheck.ServiceCheck{
			CheckName: CardinalityServiceCheck,
			Host:      a.opts.Hostname,
			Ts:        ts,
			Status:    servicecheck.ServiceCheckWarning,
			Message:   fmt.Sprintf("%d samples rejected: the limit of %d contexts per flush was reached", w.contextsRejected, a.opts.MaxContexts),
			Tags:      []string{},
		})
	}
	// run outputs are shared with their producer, fill the host on copies
	for i, sc := range serviceChecks {
		if sc.Host == "" {
			filled := *sc
			filled.Host = a.opts.Hostname
			serviceChecks[i] = &filled
		}
	}
	for i, e := range w.events {
		if e.Host == "" {
			filled := *e
			filled.Host = a.opts.Hostname
			w.events[i] = &filled
		}
	}
	if w.eventsDropped > 0 {
		tlmEventsDropped.Add(float64(w.eventsDropped))
	}

	payload := &serializer.Payload{
		CreatedAt:     ts,
		Host:          a.opts.Hostname,
		Series:        series,
		ServiceChecks: serviceChecks,
		Events:        w.events,
		ResetMarkers:  resets,
	}

	a.m.Lock()
	defer a.m.Unlock()
	a.stats.SamplesDropped += uint64(w.samplesDropped)
	a.stats.ContextsRejected += uint64(w.contextsRejected)
	a.stats.EventsDropped += uint64(w.eventsDropped)
	a.stats.LastFlush = now
	if payload.IsEmpty() {
		return nil
	}
	a.sequence++
	payload.Sequence = a.sequence
	a.stats.Flushes++
	a.stats.LastSequence = a.sequence
	tlmFlushes.Inc()
	tlmSeries.Add(float64(len(series)))
	tlmContexts.Set(0)
	return payload
}

// Run merges run outputs and flushes on the flush interval until ctx is
// done. The remaining outputs are merged and flushed once before returning.
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := a.clock.Ticker(a.opts.FlushInterval)
	defer ticker.Stop()

	token := health.RegisterWithCustomTimeout("aggregator", 2*a.opts.FlushInterval)
	defer health.Deregister(token) //nolint:errcheck

	log.Infof("aggregator: flushing every %s", a.opts.FlushInterval)
	_ = health.Ping(token)
	for {
		select {
		case <-ctx.Done():
			a.drain()
			a.flushAndSubmit(a.clock.Now())
			log.Infof("aggregator: stopped after a final flush")
			return nil
		case out := <-a.in:
			a.Ingest(out)
		case now := <-ticker.C:
			_ = health.Ping(token)
			a.flushAndSubmit(now)
		}
	}
}

func (a *Aggregator) drain() {
	for {
		select {
		case out := <-a.in:
			a.Ingest(out)
		default:
			return
		}
	}
}

func (a *Aggregator) flushAndSubmit(now time.Time) {
	payload := a.Flush(now)
	if payload == nil {
		return
	}
	log.Debugf("aggregator: flushing payload %d with %d series, %d service checks, %d events",
		payload.Sequence, len(payload.Series), len(payload.ServiceChecks), len(payload.Events))
	if err := a.forwarder.Submit(payload); err != nil {
		_ = log.Errorf("aggregator: could not submit payload %d: %s", payload.Sequence, err)
	}
}

// Stats returns a copy of the aggregator statistics
func (a *Aggregator) Stats() Stats {
	a.m.Lock()
	defer a.m.Unlock()
	s := a.stats
	s.Contexts = a.current.contexts.length()
	s.TrackedCounters = a.memory.Len()
	return s
}
