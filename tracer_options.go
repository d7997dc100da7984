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
	"net"
	"time"

	"github.com/zoobzio/clockz"
)

// TracerOptions allows creating a customized Tracer.
type TracerOptions struct {
	clock            clockz.Clock
	logger           Logger
	idAnnotations    bool
	notToBeDisplayed []string
	lookupIP         func(host string) ([]net.IP, error)
	dropLogInterval  time.Duration
}

// TracerOption allows for functional options.
// See: http://dave.cheney.net/2014/10/17/functional-options-for-friendly-apis
type TracerOption func(opts *TracerOptions)

// WithClock sets the clock annotations are timestamped with.
func WithClock(clock clockz.Clock) TracerOption {
	return func(opts *TracerOptions) {
		opts.clock = clock
	}
}

// WithLogger sets the logger reporting spans the collector refused.
func WithLogger(logger Logger) TracerOption {
	return func(opts *TracerOptions) {
		opts.logger = logger
	}
}

// WithIDAnnotations records the trace, span and parent ids of server spans
// as binary annotations, which helps correlating logs with traces.
func WithIDAnnotations(enabled bool) TracerOption {
	return func(opts *TracerOptions) {
		opts.idAnnotations = enabled
	}
}

// WithNotToBeDisplayedDomains sets the domain suffixes trimmed from remote
// host names to build the service names of client spans, e.g. with
// ".svc.cluster.local" the host "orders.svc.cluster.local" is displayed
// as "orders".
func WithNotToBeDisplayedDomains(domains []string) TracerOption {
	return func(opts *TracerOptions) {
		opts.notToBeDisplayed = domains
	}
}

// WithLookupIP replaces the resolver of remote host addresses.
func WithLookupIP(lookup func(host string) ([]net.IP, error)) TracerOption {
	return func(opts *TracerOptions) {
		opts.lookupIP = lookup
	}
}
