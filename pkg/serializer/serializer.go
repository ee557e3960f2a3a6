// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package serializer turns flushed payloads into the bytes sent to the
// backend, and back.
package serializer

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/DataDog/datadog-collector-core/pkg/util/compression"
	zstdimpl "github.com/DataDog/datadog-collector-core/pkg/util/compression/impl-zstd-nocgo"
)

const (
	// JSONContentType is the Content-Type of encoded payloads
	JSONContentType = "application/json"

	defaultZstdLevel = 1
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Serializer encodes payloads as JSON, optionally compressed. It is safe for
// concurrent use.
type Serializer struct {
	Strategy compression.Compressor
}

// NewCompressor returns the compressor registered under kind
func NewCompressor(kind string) (compression.Compressor, error) {
	switch kind {
	case "", compression.NoneKind:
		return compression.NewNoopCompressor(), nil
	case compression.ZstdKind:
		return zstdimpl.New(defaultZstdLevel)
	default:
		return nil, fmt.Errorf("unknown compression %q", kind)
	}
}

// New returns a Serializer compressing with kind ("none" or "zstd")
func New(kind string) (*Serializer, error) {
	strategy, err := NewCompressor(kind)
	if err != nil {
		return nil, err
	}
	return &Serializer{Strategy: strategy}, nil
}

// ContentEncoding is the Content-Encoding header matching Encode's output
func (s *Serializer) ContentEncoding() string {
	return s.Strategy.ContentEncoding()
}

// Encode serializes p
func (s *Serializer) Encode(p *Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("could not marshal payload %d: %w", p.Sequence, err)
	}
	compressed, err := s.Strategy.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("could not compress payload %d: %w", p.Sequence, err)
	}
	return compressed, nil
}

// Decode is the inverse of Encode
func (s *Serializer) Decode(data []byte) (*Payload, error) {
	return Decode(data, s.Strategy)
}

// Decode decodes data compressed with strategy
func Decode(data []byte, strategy compression.Compressor) (*Payload, error) {
	raw, err := strategy.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("could not decompress payload: %w", err)
	}
	p := &Payload{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("could not unmarshal payload: %w", err)
	}
	return p, nil
}
