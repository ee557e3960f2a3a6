// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package compression

// NoopCompressor leaves payloads untouched
type NoopCompressor struct{}

// NewNoopCompressor returns a NoopCompressor
func NewNoopCompressor() Compressor {
	return &NoopCompressor{}
}

// Compress returns src unchanged
func (s *NoopCompressor) Compress(src []byte) ([]byte, error) {
	return src, nil
}

// Decompress returns src unchanged
func (s *NoopCompressor) Decompress(src []byte) ([]byte, error) {
	return src, nil
}

// ContentEncoding is empty since there's no compression
func (s *NoopCompressor) ContentEncoding() string {
	return ""
}

// Kind returns NoneKind
func (s *NoopCompressor) Kind() string {
	return NoneKind
}
