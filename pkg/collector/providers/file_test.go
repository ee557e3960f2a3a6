// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
)

const testPollInterval = time.Minute

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// receive returns the next n events, advancing clk to trigger rescans
func receive(t *testing.T, clk *clock.Mock, ch <-chan ConfigEvent, n int) []ConfigEvent {
	var got []ConfigEvent
	deadline := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "channel closed")
			got = append(got, ev)
		case <-time.After(10 * time.Millisecond):
			clk.Add(testPollInterval)
		case <-deadline:
			require.FailNow(t, "missing events", "got %v", got)
		}
	}
	return got
}

func TestFileCollect(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "redis.yaml"), `
init_config:
instances:
  - host: localhost
    port: 6379
    tags: [role:cache]
  - host: replica
    port: 6380
`)
	writeFile(t, filepath.Join(root, "http.d", "site.yml"), "instances:\n  - url: https://example.com\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "not a config")
	writeFile(t, filepath.Join(root, "broken.yaml"), "instances: [\n")

	p := NewFileConfigProvider(root, testPollInterval, clock.NewMock())
	events := p.Collect()
	require.Len(t, events, 3)

	assert.Equal(t, "http.d/site.yml#0", events[0].Key)
	assert.Equal(t, "http", events[0].Check)
	assert.Equal(t, check.InstanceConfig{"url": "https://example.com"}, events[0].Config)

	assert.Equal(t, "redis.yaml#0", events[1].Key)
	assert.Equal(t, "redis", events[1].Check)
	assert.Equal(t, "localhost", events[1].Config["host"])
	assert.Equal(t, []interface{}{"role:cache"}, events[1].Config["tags"])
	assert.Equal(t, "redis.yaml#1", events[2].Key)
}

func TestFileWatch(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "redis.yaml")
	writeFile(t, path, "instances:\n  - host: a\n  - host: b\n")

	clk := clock.NewMock()
	p := NewFileConfigProvider(root, testPollInterval, clk)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := p.Watch(ctx)

	initial := receive(t, clk, ch, 2)
	assert.Equal(t, "redis.yaml#0", initial[0].Key)
	assert.Equal(t, "redis.yaml#1", initial[1].Key)

	// one instance changes, the other disappears
	writeFile(t, path, "instances:\n  - host: c\n")
	changes := receive(t, clk, ch, 2)
	assert.Equal(t, ConfigEvent{Key: "redis.yaml#0", Check: "redis", Config: check.InstanceConfig{"host": "c"}}, changes[0])
	assert.Equal(t, ConfigEvent{Key: "redis.yaml#1", Check: "redis", Removed: true}, changes[1])

	// a broken file removes nothing; the next event is the fixed content
	writeFile(t, path, "instances: [\n")
	for i := 0; i < 3; i++ {
		clk.Add(testPollInterval)
		time.Sleep(10 * time.Millisecond)
	}
	writeFile(t, path, "instances:\n  - host: d\n")
	fixed := receive(t, clk, ch, 1)
	assert.False(t, fixed[0].Removed)
	assert.Equal(t, check.InstanceConfig{"host": "d"}, fixed[0].Config)

	// so does an unreadable root
	require.NoError(t, os.Rename(root, root+".moved"))
	t.Cleanup(func() { os.Rename(root+".moved", root) })
	for i := 0; i < 3; i++ {
		clk.Add(testPollInterval)
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case ev := <-ch:
		assert.Failf(t, "unexpected event", "%v", ev)
	default:
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}
