// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package worker runs check instances handed over by the scheduler, each
// under a hard timeout.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
	"github.com/DataDog/datadog-collector-core/pkg/collector/registry"
	"github.com/DataDog/datadog-collector-core/pkg/collector/runner"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/servicecheck"
	"github.com/DataDog/datadog-collector-core/pkg/tagset"
	"github.com/DataDog/datadog-collector-core/pkg/telemetry"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

const (
	// ServiceCheckStatusKey is the service check reporting the outcome of every run
	ServiceCheckStatusKey = "datadog.agent.check_status"

	// Variables for the utilization telemetry
	pollingInterval = 15 * time.Second
)

var (
	tlmRuns        = telemetry.NewCounter("checks", "runs", []string{"check_name", "state"}, "Check runs by outcome")
	tlmExecTime    = telemetry.NewHistogram("checks", "execution_seconds", []string{"check_name"}, "Check execution time", []float64{0.1, 0.5, 1, 5, 10, 30, 60})
	tlmRunning     = telemetry.NewGauge("checks", "running", nil, "Check runs in progress, abandoned ones included")
	tlmUtilization = telemetry.NewGauge("checks", "worker_utilization", []string{"worker_name"}, "Share of time spent running checks")
)

// Job asks a worker to run one instance
type Job struct {
	Instance *registry.Instance
}

// Result reports the outcome of a Job to the scheduler
type Result struct {
	Instance *registry.Instance
	Started  time.Time
	Finished time.Time
	// Err is nil, a *RunTimeout or a *RunError
	Err error
}

// TimedOut returns whether the run was abandoned at its timeout
func (r *Result) TimedOut() bool {
	var pt *RunTimeout
	return errors.As(r.Err, &pt)
}

// Worker is an object that encapsulates the logic to manage a loop of processing
// jobs over the jobs channel
type Worker struct {
	ID   int
	Name string

	jobs     <-chan *Job
	results  chan<- *Result
	output   chan<- *sender.RunOutput
	tracker  *RunningChecksTracker
	stats    *runner.CheckStats
	clock    clock.Clock
	hostname string
}

// Run waits for jobs and runs them as long as they arrive on the channel
// and ctx is not done.
func (w *Worker) Run(ctx context.Context) {
	log.Debugf("worker %s: Ready to process checks...", w.Name)

	ut := NewUtilizationTracker(w.clock)
	ticker := w.clock.Ticker(pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debugf("worker %s: Finished processing checks.", w.Name)
			return
		case <-ticker.C:
			tlmUtilization.Set(ut.Tick(), w.Name)
		case job, ok := <-w.jobs:
			if !ok {
				log.Debugf("worker %s: Finished processing checks.", w.Name)
				return
			}
			ut.CheckStarted()
			res := w.process(ctx, job)
			ut.CheckFinished()
			if res == nil {
				continue
			}
			select {
			case w.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// process runs one instance and delivers its output. It returns nil if
// ctx was cancelled while the check ran.
func (w *Worker) process(ctx context.Context, job *Job) *Result {
	inst := job.Instance
	name := inst.Definition.Name

	if !w.tracker.AddCheck(inst.ID) {
		// the scheduler never dispatches a run that is still tracked
		log.Warnf("worker %s: instance %s is already running, skipping execution", w.Name, inst.ID)
		return &Result{Instance: inst, Started: w.clock.Now(), Finished: w.clock.Now(), Err: &RunError{Err: errors.New("previous run still in progress")}}
	}
	tlmRunning.Inc()

	doLog, lastLog := w.stats.ShouldLog(inst.ID)
	if doLog {
		log.Infof("check:%s | Running check...", inst.ID)
	} else {
		log.Debugf("check:%s | Running check...", inst.ID)
	}

	s := sender.NewBufferedSender(name, string(inst.ID), inst.Tags, w.clock)
	runCtx, cancel := w.clock.WithTimeout(ctx, inst.Timeout)
	defer cancel()

	started := w.clock.Now()
	done := make(chan error, 1)
	go func() {
		err := safeRun(runCtx, inst, s)
		w.tracker.DeleteCheck(inst.ID)
		tlmRunning.Dec()
		done <- err
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-runCtx.Done():
		select {
		case runErr = <-done:
		default:
			if ctx.Err() != nil {
				s.Seal()
				return nil
			}
			runErr = &RunTimeout{Timeout: inst.Timeout}
			log.Warnf("check:%s | Run did not complete within %s, abandoning it", inst.ID, inst.Timeout)
		}
	}
	if _, isTimeout := runErr.(*RunTimeout); runErr != nil && !isTimeout && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		// the check gave up because its deadline passed
		runErr = &RunTimeout{Timeout: inst.Timeout}
	}
	finished := w.clock.Now()

	out := s.Seal()
	status := servicecheck.ServiceCheckOK
	message := ""
	state := "ok"
	if runErr != nil {
		status = servicecheck.ServiceCheckCritical
		message = runErr.Error()
		state = "error"
		if _, timedOut := runErr.(*RunTimeout); timedOut {
			state = "timeout"
		} else {
			log.Errorf("check:%s | Error running check: %s", inst.ID, runErr)
		}
	}
	out.ServiceChecks = append(out.ServiceChecks, &servicecheck.ServiceCheck{
		CheckName: ServiceCheckStatusKey,
		Host:      w.hostname,
		Ts:        finished.Unix(),
		Status:    status,
		Message:   message,
		Tags:      tagset.Union(inst.Tags, []string{fmt.Sprintf("check:%s", name), fmt.Sprintf("instance:%s", inst.ID)}),
	})

	select {
	case w.output <- out:
	case <-ctx.Done():
		return nil
	}

	w.stats.Add(inst.ID, finished.Sub(started), runErr, state == "timeout", s.Stats(), finished)
	if warner, ok := inst.Check.(check.Warner); ok && state != "timeout" {
		warnings := warner.GetWarnings()
		for _, warn := range warnings {
			log.Warnf("check:%s | %s", inst.ID, warn)
		}
		w.stats.AddWarnings(inst.ID, warnings)
	}
	tlmRuns.Inc(name, state)
	tlmExecTime.Observe(finished.Sub(started).Seconds(), name)

	if doLog || lastLog {
		log.Infof("check:%s | Done running check", inst.ID)
		if lastLog {
			log.Infof("check:%s | Further runs are logged at debug level", inst.ID)
		}
	}

	return &Result{Instance: inst, Started: started, Finished: finished, Err: runErr}
}

// safeRun runs the check and converts its failure, panics included, to a
// *RunError.
func safeRun(ctx context.Context, inst *registry.Instance, s sender.Sender) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	if runErr := inst.Check.Run(ctx, inst.Config, s); runErr != nil {
		return &RunError{Err: runErr}
	}
	return nil
}
