// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package scheduler

import (
	"container/heap"
	"time"

	"github.com/DataDog/datadog-collector-core/pkg/collector/check"
	"github.com/DataDog/datadog-collector-core/pkg/collector/registry"
)

// entry binds an instance to its next due time. An entry is either in the
// ready queue or in flight, never both.
type entry struct {
	id       check.ID
	serial   uint64
	inst     *registry.Instance
	nextDue  time.Time
	inFlight bool
	// dispatchedAs is the ID of the last dispatched run
	dispatchedAs check.ID
	// removed is set when removal was requested during a run
	removed bool
	// retired holds check objects replaced by an update during a run
	retired []check.Check
	index   int
}

type readyQueue []*entry

func (pq readyQueue) Len() int {
	return len(pq)
}

func (pq readyQueue) Less(i1, i2 int) bool {
	if pq[i1].nextDue.Equal(pq[i2].nextDue) {
		return pq[i1].id < pq[i2].id
	}
	return pq[i1].nextDue.Before(pq[i2].nextDue)
}

func (pq readyQueue) Swap(i1, i2 int) {
	pq[i1], pq[i2] = pq[i2], pq[i1]
	pq[i1].index = i1
	pq[i2].index = i2
}

func (pq *readyQueue) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*pq)
	*pq = append(*pq, e)
}

func (pq *readyQueue) Pop() interface{} {
	old := *pq
	e := old[len(old)-1]
	old[len(old)-1] = nil
	e.index = -1
	*pq = old[:len(old)-1]
	return e
}

// popDue pops every entry due at or before now, in due order
func (pq *readyQueue) popDue(now time.Time) []*entry {
	var due []*entry
	for pq.Len() > 0 {
		next := (*pq)[0]
		if next.nextDue.After(now) {
			break
		}
		due = append(due, heap.Pop(pq).(*entry))
	}
	return due
}

func (pq *readyQueue) remove(e *entry) {
	if e.index >= 0 && e.index < pq.Len() && (*pq)[e.index] == e {
		heap.Remove(pq, e.index)
	}
}
