// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package transport sends encoded payloads to the backend
package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DataDog/datadog-collector-core/pkg/serializer"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

const (
	// IntakeEndpoint is the path payloads are posted to
	IntakeEndpoint = "/api/v2/collector"

	apiHTTPHeaderKey      = "DD-Api-Key"
	sequenceHTTPHeaderKey = "DD-Payload-Sequence"
	userAgent             = "datadog-collector-core"

	maxErrorBody = 512
)

// Request is one encoded payload to deliver
type Request struct {
	Sequence        uint64
	Body            []byte
	ContentEncoding string
}

// Transport delivers a request to one endpoint. It returns nil on success, a
// *DeliveryTransientFailure or a *DeliveryPermanentFailure.
type Transport interface {
	Send(ctx context.Context, endpoint string, req *Request) error
}

// HTTPTransport posts requests over HTTP
type HTTPTransport struct {
	Client  *http.Client
	APIKey  string
	Timeout time.Duration
}

// NewHTTPTransport returns an HTTPTransport authenticating with apiKey.
// timeout bounds each attempt.
func NewHTTPTransport(apiKey string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		Client:  NewHTTPClient(timeout),
		APIKey:  apiKey,
		Timeout: timeout,
	}
}

// NewHTTPClient creates a new http.Client
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			TLSHandshakeTimeout:   10 * time.Second,
			MaxConnsPerHost:       1,
			MaxIdleConnsPerHost:   1,
			IdleConnTimeout:       45 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Send implements Transport
func (t *HTTPTransport) Send(ctx context.Context, endpoint string, req *Request) error {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	url := strings.TrimSuffix(endpoint, "/") + IntakeEndpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(req.Body))
	if err != nil {
		return &DeliveryPermanentFailure{Endpoint: endpoint, Body: err.Error()}
	}
	httpReq.Header.Set("Content-Type", serializer.JSONContentType)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set(apiHTTPHeaderKey, t.APIKey)
	httpReq.Header.Set(sequenceHTTPHeaderKey, strconv.FormatUint(req.Sequence, 10))
	if req.ContentEncoding != "" {
		httpReq.Header.Set("Content-Encoding", req.ContentEncoding)
	}

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return &DeliveryTransientFailure{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	switch Classify(resp.StatusCode) {
	case Success:
		log.Tracef("transport: payload %d accepted by %s", req.Sequence, endpoint)
		return nil
	case PermanentFailure:
		return &DeliveryPermanentFailure{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	default:
		return &DeliveryTransientFailure{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}
}
