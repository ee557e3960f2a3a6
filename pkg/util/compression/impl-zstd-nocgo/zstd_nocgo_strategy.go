// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package zstdimpl provides a set of functions for compressing with zstd
package zstdimpl

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/DataDog/datadog-collector-core/pkg/util/compression"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

// ZstdNoCgoStrategy compresses with the pure Go zstd implementation.
// EncodeAll and DecodeAll are safe for concurrent use.
type ZstdNoCgoStrategy struct {
	level   int
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New returns a new ZstdNoCgoStrategy compressing at level
func New(level int) (compression.Compressor, error) {
	log.Debugf("Compressing native zstd at level %d", level)

	// WithZeroFrames(true) makes empty input produce a valid zstd frame
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
		zstd.WithLowerEncoderMem(true),
		zstd.WithZeroFrames(true))
	if err != nil {
		return nil, fmt.Errorf("error creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("error creating zstd decoder: %w", err)
	}

	return &ZstdNoCgoStrategy{
		level:   level,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Compress will compress the data with zstd
func (s *ZstdNoCgoStrategy) Compress(src []byte) ([]byte, error) {
	return s.encoder.EncodeAll(src, nil), nil
}

// Decompress will decompress the data with zstd
func (s *ZstdNoCgoStrategy) Decompress(src []byte) ([]byte, error) {
	return s.decoder.DecodeAll(src, nil)
}

// ContentEncoding returns the content encoding value for zstd
func (s *ZstdNoCgoStrategy) ContentEncoding() string {
	return compression.ZstdEncoding
}

// Kind returns ZstdKind
func (s *ZstdNoCgoStrategy) Kind() string {
	return compression.ZstdKind
}
