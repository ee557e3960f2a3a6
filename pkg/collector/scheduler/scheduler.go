// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package scheduler runs every active check instance at its interval on the
// worker pool, and backs off the ones that keep failing.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
	"github.com/DataDog/datadog-collector-core/pkg/collector/registry"
	"github.com/DataDog/datadog-collector-core/pkg/collector/worker"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/servicecheck"
	"github.com/DataDog/datadog-collector-core/pkg/status/health"
	"github.com/DataDog/datadog-collector-core/pkg/telemetry"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

// SaturationServiceCheck is emitted when runs keep being deferred because
// no worker is free.
const SaturationServiceCheck = "datadog.agent.scheduler.saturation"

var (
	tlmDispatched = telemetry.NewSimpleCounter("scheduler", "dispatched", "Runs handed to a worker")
	tlmDeferred   = telemetry.NewCounter("scheduler", "deferred", []string{"reason"}, "Runs deferred because no worker was free or the previous run still hangs")
	tlmQueued     = telemetry.NewGauge("scheduler", "queued_instances", nil, "Instances waiting for their next run")
	tlmInFlight   = telemetry.NewGauge("scheduler", "in_flight", nil, "Runs currently executing")
)

// Options configures the scheduler
type Options struct {
	TickInterval      time.Duration
	SaturationBackoff time.Duration
	FlushInterval     time.Duration
	JitterRatio       float64
	Hostname          string
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		TickInterval:      time.Second,
		SaturationBackoff: 500 * time.Millisecond,
		FlushInterval:     15 * time.Second,
		JitterRatio:       0.1,
	}
}

// Scheduler dispatches due instances to the worker pool. Only the Run loop
// mutates it; the mutex lets the status page read it.
type Scheduler struct {
	m sync.Mutex

	registry *registry.Registry
	jobs     chan<- *worker.Job
	results  <-chan *worker.Result
	tracker  *worker.RunningChecksTracker
	signals  chan<- *sender.RunOutput
	clock    clock.Clock
	rand     *rand.Rand
	opts     Options

	queue       readyQueue
	entries     map[check.ID]*entry
	bySerial    map[uint64]*entry
	snapVersion uint64
	synced      bool

	windowStart time.Time
	deferrals   int
	signalled   bool
}

// New returns a scheduler reading instances from reg and dispatching them on
// pool. Internal service checks are sent on signals.
func New(reg *registry.Registry, pool *worker.Pool, signals chan<- *sender.RunOutput, opts Options, clk clock.Clock) *Scheduler {
	return newScheduler(reg, pool.Jobs(), pool.Results(), pool.Tracker(), signals, opts, clk)
}

func newScheduler(reg *registry.Registry, jobs chan<- *worker.Job, results <-chan *worker.Result, tracker *worker.RunningChecksTracker, signals chan<- *sender.RunOutput, opts Options, clk clock.Clock) *Scheduler {
	def := DefaultOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.SaturationBackoff <= 0 {
		opts.SaturationBackoff = def.SaturationBackoff
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = def.FlushInterval
	}
	if opts.JitterRatio < 0 {
		opts.JitterRatio = 0
	}
	if opts.JitterRatio > 0.1 {
		opts.JitterRatio = 0.1
	}
	return &Scheduler{
		registry: reg,
		jobs:     jobs,
		results:  results,
		tracker:  tracker,
		signals:  signals,
		clock:    clk,
		rand:     rand.New(rand.NewSource(clk.Now().UnixNano())),
		opts:     opts,
		entries:  make(map[check.ID]*entry),
		bySerial: make(map[uint64]*entry),
	}
}

// Run drives the scheduler until ctx is done. It only returns an error on
// an internal fault.
func (s *Scheduler) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: internal fault: %v", r)
		}
	}()

	ticker := s.clock.Ticker(s.opts.TickInterval)
	defer ticker.Stop()

	token := health.RegisterWithCustomTimeout("scheduler", health.DefaultTimeout+2*s.opts.TickInterval)
	defer health.Deregister(token) //nolint:errcheck

	log.Infof("scheduler: started, tick every %s", s.opts.TickInterval)
	_ = health.Ping(token)
	s.tick(s.clock.Now())
	for {
		select {
		case <-ctx.Done():
			log.Infof("scheduler: stopped")
			return nil
		case now := <-ticker.C:
			_ = health.Ping(token)
			s.tick(now)
		case res := <-s.results:
			s.handleResult(res)
		}
	}
}

// tick syncs with the registry and dispatches every due entry
func (s *Scheduler) tick(now time.Time) {
	s.m.Lock()
	defer s.m.Unlock()

	s.sync(now)
	for _, e := range s.queue.popDue(now) {
		s.dispatch(e, now)
	}
	tlmQueued.Set(float64(s.queue.Len()))
}

// sync applies the registry changes since the last tick
func (s *Scheduler) sync(now time.Time) {
	// retired checks are taken before the snapshot so that none of them
	// belongs to an update the snapshot does not show yet
	for _, r := range s.registry.TakeRetired() {
		if e, found := s.bySerial[r.Serial]; found && e.inFlight {
			e.retired = append(e.retired, r.Check)
			continue
		}
		stopCheck(r.Check)
	}

	snap := s.registry.Snapshot()
	if s.synced && snap.Version == s.snapVersion {
		return
	}
	s.synced = true
	s.snapVersion = snap.Version

	// follow the instances an update gave a new ID
	for _, inst := range snap.Instances() {
		if _, found := s.entries[inst.ID]; found {
			continue
		}
		if e, found := s.bySerial[inst.Serial]; found {
			log.Debugf("scheduler: instance %s is now %s", e.id, inst.ID)
			delete(s.entries, e.id)
			e.id = inst.ID
			s.entries[inst.ID] = e
		}
	}

	for id, e := range s.entries {
		if _, found := snap.Get(id); !found {
			s.drop(e)
		}
	}

	for _, inst := range snap.Instances() {
		e, found := s.entries[inst.ID]
		if !found {
			if inst.Removed {
				s.registry.Release(inst.ID)
				continue
			}
			e = &entry{id: inst.ID, serial: inst.Serial, inst: inst, nextDue: now, index: -1}
			s.entries[inst.ID] = e
			s.bySerial[inst.Serial] = e
			heap.Push(&s.queue, e)
			log.Debugf("scheduler: scheduling instance %s every %s", inst.ID, inst.Interval)
			continue
		}

		if inst.Removed {
			if e.inFlight {
				e.removed = true
				continue
			}
			s.drop(e)
			s.registry.Release(inst.ID)
			log.Debugf("scheduler: unscheduled instance %s", inst.ID)
			continue
		}
		e.removed = false

		previous := e.inst
		e.inst = inst
		if inst.Generation == previous.Generation {
			continue
		}
		if !e.inFlight {
			if limit := now.Add(inst.EffectiveInterval); e.nextDue.After(limit) {
				e.nextDue = limit
				heap.Fix(&s.queue, e.index)
			}
		}
	}
}

// drop forgets e
func (s *Scheduler) drop(e *entry) {
	s.queue.remove(e)
	delete(s.entries, e.id)
	delete(s.bySerial, e.serial)
}

func (s *Scheduler) dispatch(e *entry, now time.Time) {
	running := s.tracker.IsRunning(e.id)
	if !running && e.dispatchedAs != "" && e.dispatchedAs != e.id {
		// an abandoned run from before an ID change
		running = s.tracker.IsRunning(e.dispatchedAs)
	}
	if running {
		tlmDeferred.Inc("hung")
		log.Debugf("scheduler: previous run of %s still in progress, deferring", e.id)
		s.deferEntry(e, now)
		return
	}

	select {
	case s.jobs <- &worker.Job{Instance: e.inst}:
		e.inFlight = true
		e.dispatchedAs = e.id
		tlmDispatched.Inc()
		tlmInFlight.Inc()
	default:
		tlmDeferred.Inc("saturated")
		s.deferEntry(e, now)
		s.noteSaturation(now)
	}
}

func (s *Scheduler) deferEntry(e *entry, now time.Time) {
	e.nextDue = now.Add(s.opts.SaturationBackoff)
	heap.Push(&s.queue, e)
}

// noteSaturation emits the saturation service check at most once per flush
// window, starting with the second deferral in that window.
func (s *Scheduler) noteSaturation(now time.Time) {
	if s.windowStart.IsZero() || now.Sub(s.windowStart) >= s.opts.FlushInterval {
		s.windowStart = now
		s.deferrals = 0
		s.signalled = false
	}
	s.deferrals++
	if s.deferrals < 2 || s.signalled {
		return
	}
	s.signalled = true
	msg := fmt.Sprintf("%d check runs deferred since %s: all workers are busy", s.deferrals, s.windowStart.UTC().Format(time.RFC3339))
	log.Warnf("scheduler: %s", msg)

	out := &sender.RunOutput{
		CheckName: "scheduler",
		ServiceChecks: servicecheck.ServiceChecks{{
			CheckName: SaturationServiceCheck,
			Host:      s.opts.Hostname,
			Ts:        now.Unix(),
			Status:    servicecheck.ServiceCheckWarning,
			Message:   msg,
			Tags:      []string{},
		}},
	}
	select {
	case s.signals <- out:
	default:
		log.Warnf("scheduler: aggregator input full, saturation signal dropped")
	}
}

// handleResult records the outcome of a run and schedules the next one
func (s *Scheduler) handleResult(res *worker.Result) {
	s.m.Lock()
	defer s.m.Unlock()

	e, found := s.bySerial[res.Instance.Serial]
	if !found {
		e, found = s.entries[res.Instance.ID]
	}
	if !found || !e.inFlight {
		return
	}
	e.inFlight = false
	tlmInFlight.Dec()
	for _, c := range e.retired {
		stopCheck(c)
	}
	e.retired = nil

	if e.removed {
		s.drop(e)
		s.registry.Release(e.id)
		log.Debugf("scheduler: unscheduled instance %s after its last run", e.id)
		return
	}

	at := res.Finished
	if res.Err == nil {
		s.registry.RecordSuccess(res.Instance, at)
		interval := res.Instance.Interval
		if cur, ok := s.registry.Get(e.id); ok {
			interval = cur.Interval
		}
		e.nextDue = at.Add(interval + s.jitter(interval))
	} else {
		effective := s.registry.RecordFailure(res.Instance, at, res.Err.Error())
		e.nextDue = at.Add(effective)
		log.Debugf("scheduler: instance %s failed (%s), next run in %s", e.id, res.Err, effective)
	}
	heap.Push(&s.queue, e)
}

// jitter returns a random delay of at most JitterRatio*interval
func (s *Scheduler) jitter(interval time.Duration) time.Duration {
	max := float64(interval) * s.opts.JitterRatio
	if max < 1 {
		return 0
	}
	return time.Duration(s.rand.Float64() * max)
}

// EntryStatus describes the scheduling state of one instance
type EntryStatus struct {
	ID       check.ID
	NextRun  time.Time
	InFlight bool
}

// Status returns the scheduling state of every instance, sorted by ID
func (s *Scheduler) Status() []EntryStatus {
	s.m.Lock()
	defer s.m.Unlock()

	out := make([]EntryStatus, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, EntryStatus{ID: e.id, NextRun: e.nextDue, InFlight: e.inFlight})
	}
	sortStatus(out)
	return out
}

func stopCheck(c check.Check) {
	if st, ok := c.(check.Stopper); ok {
		st.Stop()
	}
}
