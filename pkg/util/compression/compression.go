// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package compression provides the payload compression strategies
package compression

const (
	// NoneKind disables compression
	NoneKind = "none"
	// ZstdKind compresses with zstd
	ZstdKind = "zstd"

	// ZstdEncoding is the Content-Encoding header value for zstd
	ZstdEncoding = "zstd"
)

// Compressor compresses and decompresses whole payloads
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
	ContentEncoding() string
	Kind() string
}
