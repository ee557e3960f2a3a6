// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"
	yaml "gopkg.in/yaml.v2"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/config"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

const (
	defaultFileDebounce     = 500 * time.Millisecond
	defaultFilePollInterval = time.Minute
)

type configFormat struct {
	InitConfig interface{}   `yaml:"init_config"`
	Instances  []interface{} `yaml:"instances"`
}

// FileConfigProvider collects instance configurations from the YAML files
// of a conf.d directory: `<check>.yaml` or `<check>.d/*.yaml`, each holding
// the usual `init_config` and `instances` sections.
type FileConfigProvider struct {
	root         string
	debounce     time.Duration
	pollInterval time.Duration
	clock        clock.Clock

	// last successfully read content of every file, by file key
	files map[string]configSet
}

// NewFileConfigProvider returns a provider reading root
func NewFileConfigProvider(root string, pollInterval time.Duration, clk clock.Clock) *FileConfigProvider {
	if pollInterval <= 0 {
		pollInterval = defaultFilePollInterval
	}
	return &FileConfigProvider{
		root:         root,
		debounce:     defaultFileDebounce,
		pollInterval: pollInterval,
		clock:        clk,
		files:        make(map[string]configSet),
	}
}

func newFileConfigProvider(providerConfig config.ConfigurationProviders, agentConfig *config.AgentConfig, clk clock.Clock) (ConfigProvider, error) {
	root := providerConfig.TemplateDir
	if root == "" {
		root = agentConfig.ConfdPath
	}
	var poll time.Duration
	if providerConfig.PollInterval != "" {
		d, err := time.ParseDuration(providerConfig.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("file provider: invalid poll_interval: %w", err)
		}
		poll = d
	}
	return NewFileConfigProvider(root, poll, clk), nil
}

func (p *FileConfigProvider) String() string {
	return fmt.Sprintf("file (%s)", p.root)
}

// Collect reads every configuration file once and returns the instances
// found, sorted by key
func (p *FileConfigProvider) Collect() []ConfigEvent {
	return diff(nil, p.collect())
}

// collect reads every configuration file. Files that cannot be read or
// parsed keep the content they had at the previous successful read.
func (p *FileConfigProvider) collect() configSet {
	found := make(map[string]string)
	entries, err := os.ReadDir(p.root)
	if err != nil {
		log.Warnf("file provider: unable to read %s: %s", p.root, err)
		return p.merged()
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if !strings.HasSuffix(name, ".d") {
				continue
			}
			checkName := strings.TrimSuffix(name, ".d")
			sub, err := os.ReadDir(filepath.Join(p.root, name))
			if err != nil {
				log.Warnf("file provider: unable to read %s: %s", filepath.Join(p.root, name), err)
				found[name] = ""
				continue
			}
			for _, f := range sub {
				if !f.IsDir() && isYAML(f.Name()) {
					found[filepath.Join(name, f.Name())] = checkName
				}
			}
			continue
		}
		if isYAML(name) {
			found[name] = strings.TrimSuffix(name, filepath.Ext(name))
		}
	}

	next := make(map[string]configSet, len(found))
	for rel, checkName := range found {
		if checkName == "" {
			// unreadable directory: keep what was read from it before
			for key, set := range p.files {
				if strings.HasPrefix(key, rel+string(filepath.Separator)) {
					next[key] = set
				}
			}
			continue
		}
		set, err := p.readFile(rel, checkName)
		if err != nil {
			log.Warnf("file provider: skipping %s: %s", filepath.Join(p.root, rel), err)
			if prev, ok := p.files[rel]; ok {
				next[rel] = prev
			}
			continue
		}
		next[rel] = set
	}
	p.files = next
	return p.merged()
}

func (p *FileConfigProvider) merged() configSet {
	all := make(configSet)
	for _, set := range p.files {
		for key, ev := range set {
			all[key] = ev
		}
	}
	return all
}

func (p *FileConfigProvider) readFile(rel, checkName string) (configSet, error) {
	data, err := os.ReadFile(filepath.Join(p.root, rel))
	if err != nil {
		return nil, err
	}
	var cf configFormat
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	set := make(configSet, len(cf.Instances))
	for i, raw := range cf.Instances {
		cfg, err := check.NewInstanceConfig(raw)
		if err != nil {
			return nil, fmt.Errorf("instance #%d: %w", i, err)
		}
		key := fmt.Sprintf("%s#%d", filepath.ToSlash(rel), i)
		set[key] = ConfigEvent{Key: key, Check: checkName, Config: cfg}
	}
	return set, nil
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// Watch implements ConfigProvider. Files are read again shortly after a
// change is notified, and every poll interval in any case.
func (p *FileConfigProvider) Watch(ctx context.Context) <-chan ConfigEvent {
	out := make(chan ConfigEvent)
	go func() {
		defer close(out)

		current := p.collect()
		if !send(ctx, out, diff(nil, current)) {
			return
		}

		var notifications <-chan fsnotify.Event
		var watchErrors <-chan error
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			log.Warnf("file provider: unable to watch %s, polling only: %s", p.root, err)
		} else {
			defer watcher.Close()
			p.watchDirs(watcher)
			notifications = watcher.Events
			watchErrors = watcher.Errors
		}

		poll := p.clock.Ticker(p.pollInterval)
		defer poll.Stop()
		var debounce *clock.Timer
		var debounced <-chan time.Time

		for {
			rescan := false
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-notifications:
				if !ok {
					notifications = nil
					continue
				}
				log.Tracef("file provider: %s", ev)
				if ev.Has(fsnotify.Create) {
					if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
						_ = watcher.Add(ev.Name)
					}
				}
				if debounce == nil {
					debounce = p.clock.Timer(p.debounce)
					debounced = debounce.C
				}
			case err, ok := <-watchErrors:
				if !ok {
					watchErrors = nil
					continue
				}
				log.Warnf("file provider: watch error: %s", err)
			case <-debounced:
				debounce, debounced = nil, nil
				rescan = true
			case <-poll.C:
				rescan = true
			}
			if !rescan {
				continue
			}
			next := p.collect()
			if !send(ctx, out, diff(current, next)) {
				return
			}
			current = next
		}
	}()
	return out
}

func (p *FileConfigProvider) watchDirs(watcher *fsnotify.Watcher) {
	if err := watcher.Add(p.root); err != nil {
		log.Warnf("file provider: unable to watch %s: %s", p.root, err)
		return
	}
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".d") {
			if err := watcher.Add(filepath.Join(p.root, entry.Name())); err != nil {
				log.Warnf("file provider: unable to watch %s: %s", entry.Name(), err)
			}
		}
	}
}

func init() {
	RegisterProvider("file", newFileConfigProvider)
}
