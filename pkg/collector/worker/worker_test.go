// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/check/sender"
	"github.com/DataDog/datadog-collector-core/pkg/collector/registry"
	"github.com/DataDog/datadog-collector-core/pkg/collector/runner"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/servicecheck"
)

func newInstance(id string, timeout time.Duration, run check.CheckFunc) *registry.Instance {
	return &registry.Instance{
		ID:         check.ID(id),
		Definition: &check.Definition{Name: check.IDToCheckName(check.ID(id))},
		Check:      run,
		Config:     check.InstanceConfig{},
		Tags:       []string{"env:test"},
		Interval:   15 * time.Second,
		Timeout:    timeout,
	}
}

type testPool struct {
	*Pool
	output chan *sender.RunOutput
	clock  *clock.Mock
	cancel context.CancelFunc
	done   chan struct{}
}

func startPool(t *testing.T, n int) *testPool {
	clk := clock.NewMock()
	output := make(chan *sender.RunOutput, 16)
	p, err := NewPool(n, output, runner.NewCheckStats(10), "myhost", clk)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	tp := &testPool{Pool: p, output: output, clock: clk, cancel: cancel, done: make(chan struct{})}
	go func() {
		p.Run(ctx)
		close(tp.done)
	}()
	t.Cleanup(func() {
		cancel()
		<-tp.done
	})
	return tp
}

func (tp *testPool) next(t *testing.T) (*Result, *sender.RunOutput) {
	var out *sender.RunOutput
	select {
	case out = <-tp.output:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no run output")
	}
	select {
	case res := <-tp.Results():
		return res, out
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no run result")
	}
	return nil, nil
}

func statusOf(out *sender.RunOutput) *servicecheck.ServiceCheck {
	for _, sc := range out.ServiceChecks {
		if sc.CheckName == ServiceCheckStatusKey {
			return sc
		}
	}
	return nil
}

func TestNewPoolValidation(t *testing.T) {
	_, err := NewPool(0, make(chan *sender.RunOutput), nil, "", clock.NewMock())
	assert.Error(t, err)
	_, err = NewPool(1, nil, nil, "", clock.NewMock())
	assert.Error(t, err)
}

func TestWorkerSuccessfulRun(t *testing.T) {
	tp := startPool(t, 1)
	inst := newInstance("redis:1", 5*time.Second, func(_ context.Context, _ check.InstanceConfig, s sender.Sender) error {
		s.Gauge("redis.mem", 42, "", []string{"role:primary"})
		return nil
	})

	tp.Jobs() <- &Job{Instance: inst}
	res, out := tp.next(t)

	assert.NoError(t, res.Err)
	assert.False(t, res.TimedOut())
	require.Len(t, out.Samples, 1)
	assert.Equal(t, []string{"env:test", "role:primary"}, out.Samples[0].Tags)

	sc := statusOf(out)
	require.NotNil(t, sc)
	assert.Equal(t, servicecheck.ServiceCheckOK, sc.Status)
	assert.Equal(t, "myhost", sc.Host)
	assert.Equal(t, []string{"check:redis", "env:test", "instance:redis:1"}, sc.Tags)

	stats, ok := tp.Stats().Get("redis:1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.TotalRuns)
	assert.False(t, tp.Tracker().IsRunning("redis:1"))
}

func TestWorkerFailedRun(t *testing.T) {
	tp := startPool(t, 1)
	inst := newInstance("mysql:1", 5*time.Second, func(context.Context, check.InstanceConfig, sender.Sender) error {
		return errors.New("connection refused")
	})

	tp.Jobs() <- &Job{Instance: inst}
	res, out := tp.next(t)

	var pe *RunError
	require.True(t, errors.As(res.Err, &pe))
	sc := statusOf(out)
	require.NotNil(t, sc)
	assert.Equal(t, servicecheck.ServiceCheckCritical, sc.Status)
	assert.Equal(t, "connection refused", sc.Message)
}

func TestWorkerRecoversPanics(t *testing.T) {
	tp := startPool(t, 1)
	inst := newInstance("buggy:1", 5*time.Second, func(context.Context, check.InstanceConfig, sender.Sender) error {
		panic("nil map")
	})

	tp.Jobs() <- &Job{Instance: inst}
	res, out := tp.next(t)

	var pe *RunError
	require.True(t, errors.As(res.Err, &pe))
	assert.Contains(t, pe.Error(), "check panicked: nil map")
	assert.Equal(t, servicecheck.ServiceCheckCritical, statusOf(out).Status)
}

func TestWorkerTimeoutReleasesSlot(t *testing.T) {
	tp := startPool(t, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	hung := newInstance("slow:1", 5*time.Second, func(_ context.Context, _ check.InstanceConfig, s sender.Sender) error {
		s.Count("slow.partial", 1, "", nil)
		close(started)
		// ignores its context
		<-release
		s.Count("slow.late", 1, "", nil)
		return nil
	})

	tp.Jobs() <- &Job{Instance: hung}
	<-started
	tp.clock.Add(5 * time.Second)

	res, out := tp.next(t)
	assert.True(t, res.TimedOut())
	sc := statusOf(out)
	require.NotNil(t, sc)
	assert.Equal(t, servicecheck.ServiceCheckCritical, sc.Status)
	assert.Equal(t, "timeout", sc.Message)
	require.Len(t, out.Samples, 1)
	assert.Equal(t, "slow.partial", out.Samples[0].Name)

	// the abandoned run is still tracked
	assert.True(t, tp.Tracker().IsRunning("slow:1"))

	// the worker is free for other instances
	fast := newInstance("fast:1", 5*time.Second, func(context.Context, check.InstanceConfig, sender.Sender) error { return nil })
	tp.Jobs() <- &Job{Instance: fast}
	res, _ = tp.next(t)
	assert.NoError(t, res.Err)

	close(release)
	assert.Eventually(t, func() bool { return !tp.Tracker().IsRunning("slow:1") }, 5*time.Second, 10*time.Millisecond)

	stats, ok := tp.Stats().Get("slow:1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.TotalTimeouts)
	assert.Equal(t, "timeout", stats.LastError)
}

func TestTrackerAndUtilization(t *testing.T) {
	tr := NewRunningChecksTracker()
	assert.True(t, tr.AddCheck("a:1"))
	assert.False(t, tr.AddCheck("a:1"))
	assert.Equal(t, 1, tr.Len())
	tr.DeleteCheck("a:1")
	assert.False(t, tr.IsRunning("a:1"))

	clk := clock.NewMock()
	ut := NewUtilizationTracker(clk)
	ut.CheckStarted()
	clk.Add(3 * time.Second)
	ut.CheckFinished()
	clk.Add(1 * time.Second)
	assert.InDelta(t, 0.75, ut.Tick(), 0.0001)
	clk.Add(time.Second)
	assert.Equal(t, 0.0, ut.Tick())
}
