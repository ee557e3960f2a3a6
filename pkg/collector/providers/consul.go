// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	consul "github.com/hashicorp/consul/api"
	yaml "gopkg.in/yaml.v2"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/config"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

const (
	defaultConsulPrefix   = "datadog/check_configs"
	consulWaitTime        = 5 * time.Minute
	consulBackoffInitial  = time.Second
	consulBackoffMaxDelay = time.Minute
)

// consulKV is the part of the consul KV client the provider uses
type consulKV interface {
	List(prefix string, q *consul.QueryOptions) (consul.KVPairs, *consul.QueryMeta, error)
}

// ConsulConfigProvider watches instance configurations stored under a
// consul KV prefix as `<prefix>/<check>/<instance>`, each value being a
// YAML or JSON instance.
type ConsulConfigProvider struct {
	kv     consulKV
	prefix string
	clock  clock.Clock

	// last successfully parsed instance, by key
	last configSet
}

// newConsulConfigProviderWithKV returns a provider reading prefix through kv
func newConsulConfigProviderWithKV(kv consulKV, prefix string, clk clock.Clock) *ConsulConfigProvider {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultConsulPrefix
	}
	return &ConsulConfigProvider{kv: kv, prefix: prefix, clock: clk, last: make(configSet)}
}

// NewConsulConfigProvider returns a provider connected to the consul agent
// at providerConfig.TemplateURL. Connectivity is not checked at this stage.
func NewConsulConfigProvider(providerConfig config.ConfigurationProviders, _ *config.AgentConfig, clk clock.Clock) (ConfigProvider, error) {
	cfg := consul.DefaultConfig()
	if providerConfig.TemplateURL != "" {
		u, err := url.Parse(providerConfig.TemplateURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("consul provider: invalid template_url %q", providerConfig.TemplateURL)
		}
		cfg.Address = u.Host
		cfg.Scheme = u.Scheme
	}
	if providerConfig.Token != "" {
		cfg.Token = providerConfig.Token
	}
	client, err := consul.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul provider: %w", err)
	}
	return newConsulConfigProviderWithKV(client.KV(), providerConfig.TemplateDir, clk), nil
}

func (p *ConsulConfigProvider) String() string {
	return fmt.Sprintf("consul (%s)", p.prefix)
}

// parse turns the KV pairs under the prefix into a config set. Values that
// do not parse keep their previous content.
func (p *ConsulConfigProvider) parse(pairs consul.KVPairs) configSet {
	next := make(configSet, len(pairs))
	for _, pair := range pairs {
		rel := strings.TrimPrefix(strings.TrimPrefix(pair.Key, p.prefix), "/")
		parts := strings.Split(rel, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			// folders and keys outside the layout
			continue
		}
		key := pair.Key
		var raw interface{}
		err := yaml.Unmarshal(pair.Value, &raw)
		var cfg check.InstanceConfig
		if err == nil {
			cfg, err = check.NewInstanceConfig(raw)
		}
		if err != nil {
			log.Warnf("consul provider: skipping %s: %s", key, err)
			if prev, ok := p.last[key]; ok {
				next[key] = prev
			}
			continue
		}
		next[key] = ConfigEvent{Key: key, Check: parts[0], Config: cfg}
	}
	return next
}

func (p *ConsulConfigProvider) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = consulBackoffInitial
	b.MaxInterval = consulBackoffMaxDelay
	b.MaxElapsedTime = 0
	b.Clock = p.clock
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// Watch implements ConfigProvider with consul blocking queries. Errors are
// retried with backoff and never reported as removals.
func (p *ConsulConfigProvider) Watch(ctx context.Context) <-chan ConfigEvent {
	out := make(chan ConfigEvent)
	go func() {
		defer close(out)

		var index uint64
		b := p.newBackOff(ctx)
		for ctx.Err() == nil {
			opts := (&consul.QueryOptions{WaitIndex: index, WaitTime: consulWaitTime}).WithContext(ctx)
			pairs, meta, err := p.kv.List(p.prefix, opts)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				wait := b.NextBackOff()
				if wait == backoff.Stop {
					return
				}
				log.Warnf("consul provider: unable to list %s, retrying in %s: %s", p.prefix, wait, err)
				timer := p.clock.Timer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				continue
			}
			b.Reset()

			if meta != nil {
				if meta.LastIndex < index {
					// the index went backwards, start over
					index = 0
				} else {
					index = meta.LastIndex
				}
			}
			next := p.parse(pairs)
			if !send(ctx, out, diff(p.last, next)) {
				return
			}
			p.last = next
		}
	}()
	return out
}

func init() {
	RegisterProvider("consul", NewConsulConfigProvider)
}
