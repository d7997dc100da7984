// Copyright 2022 The OpenZipkin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zipkintracer

import (
	"errors"
	"fmt"
)

var (
	// ErrNilSpan is returned when a nil span is handed to the Tracer.
	ErrNilSpan = errors.New("span is nil")
	// ErrServerReceiveMissing is returned when a server span is sent
	// without a prior server receive annotation.
	ErrServerReceiveMissing = errors.New("server span has no server receive annotation")
	// ErrClientSendMissing is returned when a client span is received
	// without a prior client send annotation.
	ErrClientSendMissing = errors.New("client span has no client send annotation")
	// ErrSpanNotStarted is returned when annotating a span that none of the
	// start methods returned.
	ErrSpanNotStarted = errors.New("span has not been started")
	// ErrSpanAlreadySent is returned when ending or annotating a span that
	// was already handed to the collector.
	ErrSpanAlreadySent = errors.New("span has already been sent")
	// ErrInvalidTraceContext is returned when starting a span from a
	// TraceContext without ids.
	ErrInvalidTraceContext = errors.New("trace context has no trace id or span id")
	// ErrSpanIDEqualsParentID is the propagation contract violation of a
	// span being its own parent.
	ErrSpanIDEqualsParentID = errors.New("span id equals parent span id")
	// ErrInvalidSampleRate is returned for sample rates outside [0,1].
	ErrInvalidSampleRate = errors.New("sample rate must be within [0,1]")
	// ErrInvalidExcludedPath is returned for blank excluded path prefixes.
	ErrInvalidExcludedPath = errors.New("excluded path must not be blank")
	// ErrCollectorStopped is returned by Collect once the collector stopped.
	ErrCollectorStopped = errors.New("collector stopped")
)

// SetupError reports a collector that could not be wired. Partially
// acquired resources have been released when it is returned.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("collector setup failed: %v", e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// DeliveryError reports a batch that was abandoned after exhausting its
// send attempts.
type DeliveryError struct {
	Spans    int
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("dropped batch of %d spans after %d attempts: %v", e.Spans, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
