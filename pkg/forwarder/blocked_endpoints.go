// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package forwarder

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

const (
	// Unblocked lets every payload through
	Unblocked = iota
	// HalfBlocked lets a single trial payload through
	HalfBlocked
	// Blocked skips the endpoint until the block expires
	Blocked
)

const maxBlockDuration = 5 * time.Minute

type circuitBreakerState = int

type block struct {
	nbError int
	until   time.Time
	state   circuitBreakerState
}

// blockedEndpoints is a circuit breaker per endpoint. An endpoint failing
// threshold times in a row is skipped for a duration that doubles with
// every further failure.
type blockedEndpoints struct {
	errorPerEndpoint map[string]*block
	threshold        int
	blockDuration    time.Duration
	clock            clock.Clock
	m                sync.Mutex
}

func newBlockedEndpoints(threshold int, blockDuration time.Duration, clk clock.Clock) *blockedEndpoints {
	if threshold < 1 {
		threshold = 1
	}
	return &blockedEndpoints{
		errorPerEndpoint: make(map[string]*block),
		threshold:        threshold,
		blockDuration:    blockDuration,
		clock:            clk,
	}
}

func (e *blockedEndpoints) get(endpoint string) *block {
	b, ok := e.errorPerEndpoint[endpoint]
	if !ok {
		b = &block{state: Unblocked}
		e.errorPerEndpoint[endpoint] = b
	}
	return b
}

// close records a failed delivery
func (e *blockedEndpoints) close(endpoint string) {
	e.m.Lock()
	defer e.m.Unlock()

	b := e.get(endpoint)
	b.nbError++
	switch b.state {
	case Unblocked:
		if b.nbError < e.threshold {
			return
		}
		fallthrough
	case HalfBlocked:
		// the trial failed too, back to blocked for longer
		b.until = e.clock.Now().Add(e.getBackoffDuration(b.nbError))
		b.state = Blocked
		tlmEndpointBlocks.Inc()
		log.Warnf("forwarder: too many errors for endpoint %s, blocked until %s", endpoint, b.until.Format(time.RFC3339))
	case Blocked:
	}
}

// recover records a successful delivery
func (e *blockedEndpoints) recover(endpoint string) {
	e.m.Lock()
	defer e.m.Unlock()

	b := e.get(endpoint)
	if b.state != Unblocked {
		log.Infof("forwarder: endpoint %s recovered", endpoint)
	}
	b.nbError = 0
	b.state = Unblocked
}

// isBlock returns whether endpoint must be skipped. Once a block expires a
// single trial is let through.
func (e *blockedEndpoints) isBlock(endpoint string) bool {
	e.m.Lock()
	defer e.m.Unlock()

	b, ok := e.errorPerEndpoint[endpoint]
	if !ok {
		return false
	}
	switch b.state {
	case HalfBlocked:
		return true
	case Blocked:
		if e.clock.Now().Before(b.until) {
			return true
		}
		b.state = HalfBlocked
		return false
	}
	return false
}

// getState returns the breaker state of endpoint
func (e *blockedEndpoints) getState(endpoint string) circuitBreakerState {
	e.m.Lock()
	defer e.m.Unlock()
	if b, ok := e.errorPerEndpoint[endpoint]; ok {
		return b.state
	}
	return Unblocked
}

func (e *blockedEndpoints) getBackoffDuration(numErrors int) time.Duration {
	shift := numErrors - e.threshold
	if shift < 0 {
		shift = 0
	}
	if shift > 16 {
		return maxBlockDuration
	}
	d := e.blockDuration << uint(shift)
	if d <= 0 || d > maxBlockDuration {
		return maxBlockDuration
	}
	return d
}
