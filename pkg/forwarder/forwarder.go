// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package forwarder delivers flushed payloads to the backend. Payloads wait
// in a bounded memory queue that spills into an on-disk spool, and are
// retried with backoff across the configured endpoints.
package forwarder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/DataDog/datadog-collector-core/pkg/forwarder/spool"
	"github.com/DataDog/datadog-collector-core/pkg/forwarder/transport"
	"github.com/DataDog/datadog-collector-core/pkg/serializer"
	"github.com/DataDog/datadog-collector-core/pkg/status/health"
	"github.com/DataDog/datadog-collector-core/pkg/telemetry"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

const (
	pollInterval   = time.Second
	expireInterval = time.Minute
)

var (
	errAllEndpointsBlocked = errors.New("every endpoint is blocked")
	errStopped             = errors.New("forwarder is stopped")
)

var (
	tlmPayloads       = telemetry.NewCounter("forwarder", "payloads", []string{"state"}, "Payloads by outcome: sent, dropped, requeued")
	tlmAttemptErrors  = telemetry.NewSimpleCounter("forwarder", "attempt_errors", "Failed delivery attempts")
	tlmEvictions      = telemetry.NewSimpleCounter("forwarder", "spool_evictions", "Payloads evicted from the spool, lost")
	tlmEndpointBlocks = telemetry.NewSimpleCounter("forwarder", "endpoint_blocks", "Endpoints blocked after repeated errors")
	tlmQueueSize      = telemetry.NewGauge("forwarder", "queue_size", nil, "Payloads in the memory queue")
	tlmSpoolSize      = telemetry.NewGauge("forwarder", "spool_entries", nil, "Payloads in the spool")
)

// Options configures the forwarder
type Options struct {
	Endpoints                []string
	QueueSize                int
	MaxAttempts              int
	BackoffBase              time.Duration
	BackoffMax               time.Duration
	BackoffJitter            float64
	RetryInterval            time.Duration
	EndpointFailureThreshold int
	EndpointBlock            time.Duration
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		QueueSize:                32,
		MaxAttempts:              5,
		BackoffBase:              time.Second,
		BackoffMax:               64 * time.Second,
		BackoffJitter:            0.5,
		RetryInterval:            30 * time.Second,
		EndpointFailureThreshold: 3,
		EndpointBlock:            30 * time.Second,
	}
}

// Stats is a point in time view of the forwarder
type Stats struct {
	QueueLen  int
	SpoolLen  int
	SpoolSize int64
	Sent      uint64
	Dropped   uint64
	Requeued  uint64
	Evicted   uint64
	Failures  uint64
	LastError string
	Endpoints map[string]string
}

// Forwarder sends payloads in sequence order from a single delivery loop
type Forwarder struct {
	m      sync.Mutex
	queue  []*spool.Entry
	closed bool
	stats  Stats
	wake   chan struct{}

	serializer *serializer.Serializer
	transport  transport.Transport
	spool      *spool.Spool
	blocked    *blockedEndpoints
	clock      clock.Clock
	opts       Options
	lastExpire time.Time
}

// New returns a forwarder. It owns sp from now on and closes it when Run
// returns.
func New(opts Options, ser *serializer.Serializer, tr transport.Transport, sp *spool.Spool, clk clock.Clock) (*Forwarder, error) {
	if len(opts.Endpoints) == 0 {
		return nil, errors.New("forwarder needs at least one endpoint")
	}
	if ser == nil || tr == nil || sp == nil {
		return nil, errors.New("forwarder needs a serializer, a transport and a spool")
	}
	def := DefaultOptions()
	if opts.QueueSize < 1 {
		opts.QueueSize = def.QueueSize
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = def.BackoffBase
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = opts.BackoffBase
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = def.RetryInterval
	}
	if opts.EndpointBlock <= 0 {
		opts.EndpointBlock = def.EndpointBlock
	}

	return &Forwarder{
		wake:       make(chan struct{}, 1),
		serializer: ser,
		transport:  tr,
		spool:      sp,
		blocked:    newBlockedEndpoints(opts.EndpointFailureThreshold, opts.EndpointBlock, clk),
		clock:      clk,
		opts:       opts,
		lastExpire: clk.Now(),
	}, nil
}

// Submit encodes p and queues it. It never waits on the network: when the
// memory queue is full the oldest payload goes to the spool.
func (f *Forwarder) Submit(p *serializer.Payload) error {
	data, err := f.serializer.Encode(p)
	if err != nil {
		return err
	}
	e := &spool.Entry{
		Sequence:        p.Sequence,
		ContentEncoding: f.serializer.ContentEncoding(),
		Data:            data,
		CreatedAt:       f.clock.Now(),
	}

	f.m.Lock()
	if f.closed {
		f.m.Unlock()
		return errStopped
	}
	var spill *spool.Entry
	if len(f.queue) >= f.opts.QueueSize {
		spill = f.queue[0]
		f.queue = f.queue[1:]
	}
	f.queue = append(f.queue, e)
	tlmQueueSize.Set(float64(len(f.queue)))
	f.m.Unlock()

	if spill != nil {
		log.Debugf("forwarder: memory queue full, spilling payload %d to the spool", spill.Sequence)
		f.spoolEntry(spill)
	}
	f.notify()
	return nil
}

func (f *Forwarder) notify() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// spoolEntry writes e to the spool. Any loss is logged.
func (f *Forwarder) spoolEntry(e *spool.Entry) {
	evicted, err := f.spool.Put(e)
	if evicted > 0 {
		f.m.Lock()
		f.stats.Evicted += uint64(evicted)
		f.m.Unlock()
		tlmEvictions.Add(float64(evicted))
		log.Warnf("forwarder: data lost: %s", err)
	} else if err != nil {
		f.m.Lock()
		f.stats.Dropped++
		f.m.Unlock()
		tlmPayloads.Inc("dropped")
		_ = log.Errorf("forwarder: data lost: payload %d could not be spooled: %s", e.Sequence, err)
	}
	tlmSpoolSize.Set(float64(f.spool.Len()))
}

// Run delivers payloads until ctx is done, then writes the memory queue to
// the spool and closes it.
func (f *Forwarder) Run(ctx context.Context) error {
	log.Infof("forwarder: delivering to %v", f.opts.Endpoints)
	defer f.shutdown()

	// a delivery retries for at most MaxAttempts backoffs
	healthTimeout := health.DefaultTimeout + time.Duration(f.opts.MaxAttempts)*f.opts.BackoffMax
	token := health.RegisterWithCustomTimeout("forwarder", healthTimeout)
	defer health.Deregister(token) //nolint:errcheck

	for {
		if ctx.Err() != nil {
			return nil
		}
		_ = health.Ping(token)
		f.expire()

		e, fromSpool := f.next()
		if e == nil {
			timer := f.clock.Timer(pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-f.wake:
			case <-timer.C:
			}
			timer.Stop()
			continue
		}
		f.deliver(ctx, e, fromSpool)
	}
}

// next returns the payload with the lowest sequence among the memory queue
// head and the due spool entries. A spooled payload is held until its
// delivery ends.
func (f *Forwarder) next() (*spool.Entry, bool) {
	for {
		spooled, err := f.spool.Next(f.clock.Now())
		if err != nil {
			_ = log.Errorf("forwarder: %s", err)
			spooled = nil
		}

		f.m.Lock()
		if len(f.queue) > 0 && (spooled == nil || f.queue[0].Sequence < spooled.Sequence) {
			e := f.queue[0]
			f.queue = f.queue[1:]
			tlmQueueSize.Set(float64(len(f.queue)))
			f.m.Unlock()
			return e, false
		}
		f.m.Unlock()

		if spooled == nil {
			return nil, false
		}
		if f.spool.Hold(spooled.Sequence) {
			return spooled, true
		}
		// evicted by a spill since it was read
	}
}

func (f *Forwarder) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.BackoffBase
	b.MaxInterval = f.opts.BackoffMax
	b.RandomizationFactor = f.opts.BackoffJitter
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Clock = f.clock
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.opts.MaxAttempts-1)), ctx)
}

func (f *Forwarder) deliver(ctx context.Context, e *spool.Entry, fromSpool bool) {
	if fromSpool {
		defer f.spool.Release(e.Sequence)
	}
	req := &transport.Request{Sequence: e.Sequence, Body: e.Data, ContentEncoding: e.ContentEncoding}
	attempts := 0
	operation := func() error {
		attempts++
		err := f.attempt(ctx, req)
		if err == nil {
			return nil
		}
		if transport.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		f.recordFailure(err)
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Debugf("forwarder: payload %d attempt %d failed (%s), retrying in %s", e.Sequence, attempts, err, wait)
	}
	err := backoff.RetryNotifyWithTimer(operation, f.newBackOff(ctx), notify, &clockTimer{clock: f.clock})

	switch {
	case err == nil:
		f.m.Lock()
		f.stats.Sent++
		f.m.Unlock()
		tlmPayloads.Inc("sent")
		log.Tracef("forwarder: payload %d delivered", e.Sequence)
		if fromSpool {
			f.deleteSpooled(e.Sequence)
		}
	case transport.IsPermanent(err):
		f.m.Lock()
		f.stats.Dropped++
		f.stats.LastError = err.Error()
		f.m.Unlock()
		tlmPayloads.Inc("dropped")
		_ = log.Errorf("forwarder: dropping payload %d: %s", e.Sequence, err)
		if fromSpool {
			f.deleteSpooled(e.Sequence)
		}
	case ctx.Err() != nil:
		// shutting down: the payload is written to the spool with the queue
		if !fromSpool {
			f.m.Lock()
			f.queue = append([]*spool.Entry{e}, f.queue...)
			f.m.Unlock()
		}
	default:
		e.Attempts += attempts
		e.NotBefore = f.clock.Now().Add(f.opts.RetryInterval)
		log.Warnf("forwarder: payload %d still undelivered after %d attempts (%s), retrying in %s", e.Sequence, e.Attempts, err, f.opts.RetryInterval)
		f.spoolEntry(e)
		f.m.Lock()
		f.stats.Requeued++
		f.m.Unlock()
		tlmPayloads.Inc("requeued")
	}
}

// attempt tries each endpoint that is not blocked, in order, until one
// accepts the payload.
func (f *Forwarder) attempt(ctx context.Context, req *transport.Request) error {
	var lastErr error
	tried := false
	for _, endpoint := range f.opts.Endpoints {
		if f.blocked.isBlock(endpoint) {
			continue
		}
		tried = true
		err := f.transport.Send(ctx, endpoint, req)
		if err == nil {
			f.blocked.recover(endpoint)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if transport.IsPermanent(err) {
			return err
		}
		f.blocked.close(endpoint)
		lastErr = err
	}
	if !tried {
		return errAllEndpointsBlocked
	}
	return lastErr
}

func (f *Forwarder) recordFailure(err error) {
	f.m.Lock()
	f.stats.Failures++
	f.stats.LastError = err.Error()
	f.m.Unlock()
	tlmAttemptErrors.Inc()
}

func (f *Forwarder) deleteSpooled(seq uint64) {
	if err := f.spool.Delete(seq); err != nil {
		_ = log.Errorf("forwarder: %s", err)
	}
	tlmSpoolSize.Set(float64(f.spool.Len()))
}

func (f *Forwarder) expire() {
	now := f.clock.Now()
	if now.Sub(f.lastExpire) < expireInterval {
		return
	}
	f.lastExpire = now
	n, err := f.spool.Expire(now)
	if err != nil {
		_ = log.Errorf("forwarder: %s", err)
	}
	if n > 0 {
		f.m.Lock()
		f.stats.Evicted += uint64(n)
		f.m.Unlock()
		tlmEvictions.Add(float64(n))
		log.Warnf("forwarder: data lost: %d spooled payloads expired", n)
	}
}

func (f *Forwarder) shutdown() {
	f.m.Lock()
	f.closed = true
	pending := f.queue
	f.queue = nil
	f.m.Unlock()

	for _, e := range pending {
		f.spoolEntry(e)
	}
	if len(pending) > 0 {
		log.Infof("forwarder: %d undelivered payloads written to the spool", len(pending))
	}
	if err := f.spool.Close(); err != nil {
		_ = log.Errorf("forwarder: could not close the spool: %s", err)
	}
	log.Infof("forwarder: stopped")
}

// Stats returns a copy of the forwarder statistics
func (f *Forwarder) Stats() Stats {
	f.m.Lock()
	s := f.stats
	s.QueueLen = len(f.queue)
	f.m.Unlock()

	s.SpoolLen = f.spool.Len()
	s.SpoolSize = f.spool.Size()
	s.Endpoints = make(map[string]string, len(f.opts.Endpoints))
	for _, endpoint := range f.opts.Endpoints {
		s.Endpoints[endpoint] = stateName(f.blocked.getState(endpoint))
	}
	return s
}

func stateName(state circuitBreakerState) string {
	switch state {
	case HalfBlocked:
		return "half-blocked"
	case Blocked:
		return "blocked"
	}
	return "unblocked"
}

// clockTimer drives backoff waits from a clock.Clock
type clockTimer struct {
	clock clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.Timer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}

