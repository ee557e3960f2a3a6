// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package scheduler

import "sort"

func sortStatus(s []EntryStatus) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
}
