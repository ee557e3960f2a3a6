// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code     int
		expected Outcome
	}{
		{200, Success},
		{202, Success},
		{400, PermanentFailure},
		{403, PermanentFailure},
		{413, PermanentFailure},
		{408, TransientFailure},
		{429, TransientFailure},
		{500, TransientFailure},
		{503, TransientFailure},
		{302, TransientFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Classify(tt.code), "status %d", tt.code)
	}
}

func TestSendSetsHeaders(t *testing.T) {
	var got *http.Request
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewHTTPTransport("abcdef", time.Second)
	err := tr.Send(context.Background(), srv.URL+"/", &Request{Sequence: 7, Body: []byte("payload"), ContentEncoding: "zstd"})
	require.NoError(t, err)

	assert.Equal(t, IntakeEndpoint, got.URL.Path)
	assert.Equal(t, "abcdef", got.Header.Get("DD-Api-Key"))
	assert.Equal(t, "7", got.Header.Get("DD-Payload-Sequence"))
	assert.Equal(t, "zstd", got.Header.Get("Content-Encoding"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "payload", string(body))
}

func TestSendClassifiesFailures(t *testing.T) {
	status := http.StatusForbidden
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("invalid api key\n"))
	}))
	defer srv.Close()
	tr := NewHTTPTransport("k", time.Second)

	err := tr.Send(context.Background(), srv.URL, &Request{Sequence: 1})
	var pf *DeliveryPermanentFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, 403, pf.StatusCode)
	assert.Equal(t, "invalid api key", pf.Body)
	assert.True(t, IsPermanent(err))

	status = http.StatusServiceUnavailable
	err = tr.Send(context.Background(), srv.URL, &Request{Sequence: 1})
	var tf *DeliveryTransientFailure
	require.True(t, errors.As(err, &tf))
	assert.Equal(t, 503, tf.StatusCode)
	assert.False(t, IsPermanent(err))
}

func TestSendNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewHTTPTransport("k", time.Second).Send(context.Background(), url, &Request{Sequence: 1})
	var tf *DeliveryTransientFailure
	require.True(t, errors.As(err, &tf))
	assert.Equal(t, 0, tf.StatusCode)
}
