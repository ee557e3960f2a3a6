// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregator

import (
	"math"
	"sort"
	"strings"

	"github.com/DataDog/datadog-collector-core/pkg/metrics"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/event"
	"github.com/DataDog/datadog-collector-core/pkg/metrics/servicecheck"
	"github.com/DataDog/datadog-collector-core/pkg/tagset"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

// window aggregates everything received during one flush interval. It is
// swapped for a fresh one on every flush.
type window struct {
	contexts      *contextResolver
	metrics       metrics.ContextMetrics
	serviceChecks servicecheck.ServiceChecks
	events        event.Events

	maxEvents        int
	eventsDropped    int
	contextsRejected int
	samplesDropped   int
}

func newWindow(interval int64, memory metrics.CounterMemory, maxContexts, maxEvents int) *window {
	return &window{
		contexts:  newContextResolver(maxContexts),
		metrics:   metrics.MakeContextMetrics(interval, memory),
		maxEvents: maxEvents,
	}
}

// addSample merges sample into the window
func (w *window) addSample(sample *metrics.MetricSample, timestamp float64) error {
	if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
		w.samplesDropped++
		tlmSamplesDropped.Inc("invalid_value")
		return nil
	}

	contextKey, _, err := w.contexts.trackContext(sample)
	if err != nil {
		w.contextsRejected++
		tlmSamplesDropped.Inc("cardinality")
		return err
	}

	if err := w.metrics.AddSample(contextKey, sample, timestamp); err != nil {
		w.samplesDropped++
		tlmSamplesDropped.Inc("invalid_type")
		log.Debugf("aggregator: ignoring sample %q: %s", sample.Name, err)
	}
	return nil
}

func (w *window) addEvent(e *event.Event) {
	if w.maxEvents > 0 && len(w.events) >= w.maxEvents {
		w.eventsDropped++
		if w.eventsDropped == 1 {
			log.Warnf("aggregator: more than %d events in this flush window, dropping the newest ones", w.maxEvents)
		}
		return
	}
	w.events = append(w.events, e)
}

// flush resolves the contexts of the window into series
func (w *window) flush(timestamp float64, interval int64, defaultHostname string) (metrics.Series, []metrics.ResetMarker) {
	rawSeries, resets, errs := w.metrics.Flush(timestamp)
	for contextKey, err := range errs {
		log.Debugf("aggregator: unable to flush context %d: %s", contextKey, err)
	}

	series := make(metrics.Series, 0, len(rawSeries))
	for _, serie := range rawSeries {
		context, found := w.contexts.get(serie.ContextKey)
		if !found {
			continue
		}
		serie.Name = context.Name + serie.NameSuffix
		serie.Tags = context.Tags
		if context.Host != "" {
			serie.Host = context.Host
		} else {
			serie.Host = defaultHostname
		}
		serie.Interval = interval
		series = append(series, serie)
	}
	sortSeries(series)

	for i := range resets {
		resets[i].Tags = tagset.Normalize(resets[i].Tags)
		if resets[i].Host == "" {
			resets[i].Host = defaultHostname
		}
	}
	if len(resets) > 0 {
		tlmCounterResets.Add(float64(len(resets)))
	}
	return series, resets
}

func sortSeries(series metrics.Series) {
	sort.Slice(series, func(i, j int) bool {
		a, b := series[i], series[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Host != b.Host {
			return a.Host < b.Host
		}
		return strings.Join(a.Tags, ",") < strings.Join(b.Tags, ",")
	})
}
