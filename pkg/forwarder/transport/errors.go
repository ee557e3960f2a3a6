// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// DeliveryTransientFailure is a failure worth retrying: network error,
// timeout or 5xx class response.
type DeliveryTransientFailure struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *DeliveryTransientFailure) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient failure from %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("transient failure from %s: %v", e.Endpoint, e.Err)
}

func (e *DeliveryTransientFailure) Unwrap() error {
	return e.Err
}

// DeliveryPermanentFailure is a failure that retrying cannot fix, like a
// malformed payload or a rejected API key.
type DeliveryPermanentFailure struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *DeliveryPermanentFailure) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("permanent failure from %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("permanent failure from %s: HTTP %d", e.Endpoint, e.StatusCode)
}

// IsPermanent returns whether err is a DeliveryPermanentFailure
func IsPermanent(err error) bool {
	var pf *DeliveryPermanentFailure
	return errors.As(err, &pf)
}

// Outcome is the classification of a backend response
type Outcome int

const (
	// Success means the payload was accepted
	Success Outcome = iota
	// TransientFailure means the payload can be sent again later
	TransientFailure
	// PermanentFailure means the payload must be dropped
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case TransientFailure:
		return "transient"
	case PermanentFailure:
		return "permanent"
	}
	return "unknown"
}

// Classify maps an HTTP status code to an Outcome. 408 and 429 are
// transient even though they are 4xx.
func Classify(statusCode int) Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return Success
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return TransientFailure
	case statusCode >= 400 && statusCode < 500:
		return PermanentFailure
	default:
		return TransientFailure
	}
}
