// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
	"github.com/DataDog/datadog-collector-core/pkg/collector/runner"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

// Pool is a fixed set of workers fed through an unbuffered channel: a send
// on Jobs only succeeds when a worker is idle.
type Pool struct {
	workers []*Worker
	jobs    chan *Job
	results chan *Result
	tracker *RunningChecksTracker
	stats   *runner.CheckStats
}

// NewPool returns a pool of n workers delivering run outputs to output
func NewPool(n int, output chan<- *sender.RunOutput, stats *runner.CheckStats, hostname string, clk clock.Clock) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("worker pool needs at least one worker, got %d", n)
	}
	if output == nil {
		return nil, fmt.Errorf("worker pool cannot initialize using a nil output channel")
	}
	if stats == nil {
		stats = runner.NewCheckStats(500)
	}
	p := &Pool{
		jobs:    make(chan *Job),
		results: make(chan *Result, n),
		tracker: NewRunningChecksTracker(),
		stats:   stats,
	}
	for i := 0; i < n; i++ {
		p.workers = append(p.workers, &Worker{
			ID:       i,
			Name:     fmt.Sprintf("worker_%d", i),
			jobs:     p.jobs,
			results:  p.results,
			output:   output,
			tracker:  p.tracker,
			stats:    stats,
			clock:    clk,
			hostname: hostname,
		})
	}
	return p, nil
}

// Jobs is the channel the scheduler dispatches on
func (p *Pool) Jobs() chan<- *Job {
	return p.jobs
}

// Results is the channel run outcomes are reported on
func (p *Pool) Results() <-chan *Result {
	return p.results
}

// Tracker returns the tracker of runs still executing
func (p *Pool) Tracker() *RunningChecksTracker {
	return p.tracker
}

// Stats returns the per instance execution statistics
func (p *Pool) Stats() *runner.CheckStats {
	return p.stats
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return len(p.workers)
}

// Run starts the workers and blocks until ctx is done and they all returned.
// Runs abandoned after their timeout are not waited for.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	log.Infof("worker pool started with %d workers", len(p.workers))
	wg.Wait()
	log.Infof("worker pool stopped")
}
