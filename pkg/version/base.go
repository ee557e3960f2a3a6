// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package version defines the version of the agent
package version

// AgentVersion contains the version of the Agent.
// It is populated at build time using build flags
var AgentVersion string

// Commit is populated with the short commit hash from which the Agent was built
var Commit string

var agentVersionDefault = "7.0.0-devel"

func init() {
	if AgentVersion == "" {
		AgentVersion = agentVersionDefault
	}
}

// String returns the version with the commit, when known
func String() string {
	if Commit == "" {
		return AgentVersion
	}
	return AgentVersion + "+commit." + Commit
}
