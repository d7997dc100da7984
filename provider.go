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
	"context"
	"strconv"

	"github.com/openzipkin/zipkin-go/model"

	"github.com/openzipkin-contrib/zipkin-go-collector/propagation/b3"
)

// ContextProvider establishes the TraceContext of inbound requests.
type ContextProvider struct {
	sampler       *Sampler
	traceID128Bit bool
}

// ProviderOption sets an optional parameter of the ContextProvider.
type ProviderOption func(p *ContextProvider)

// WithTraceID128Bit makes the provider generate 128-bit trace ids for new
// traces.
func WithTraceID128Bit(enabled bool) ProviderOption {
	return func(p *ContextProvider) { p.traceID128Bit = enabled }
}

// NewContextProvider returns a provider asking sampler about traces without
// a propagated sampling decision. A nil sampler never samples.
func NewContextProvider(sampler *Sampler, options ...ProviderOption) *ContextProvider {
	if sampler == nil {
		sampler = NeverSample()
	}
	p := &ContextProvider{sampler: sampler}
	for _, option := range options {
		option(p)
	}
	return p
}

// Create returns the TraceContext of the current request. A context already
// stored in ctx is reused verbatim; otherwise ids are read from carrier,
// falling back to the single b3 header, malformed or missing ones being
// replaced.
func (p *ContextProvider) Create(ctx context.Context, carrier b3.Getter, path string) (TraceContext, error) {
	if tc, ok := FromContext(ctx); ok {
		return tc, nil
	}

	h := b3.Extract(carrier)
	if h.Empty() {
		if single, ok := b3.ExtractSingle(carrier); ok {
			h = single
		}
	}

	var tc TraceContext
	if traceID, ok := parseTraceID(h.TraceID); ok {
		tc.TraceID = traceID
	} else {
		tc.TraceID = newTraceID(p.traceID128Bit)
	}
	if spanID, ok := parseID(h.SpanID); ok {
		tc.SpanID = spanID
	} else if tc.TraceID.Low != 0 {
		tc.SpanID = model.ID(tc.TraceID.Low)
	} else {
		tc.SpanID = newSpanID(0)
	}
	if parentID, ok := parseID(h.ParentSpanID); ok {
		tc.ParentID = &parentID
	}

	if tc.ParentID != nil && *tc.ParentID == tc.SpanID {
		return TraceContext{}, ErrSpanIDEqualsParentID
	}

	// debug implies sampled
	tc.Debug = h.Flags == "1"
	if sampled, err := strconv.ParseBool(h.Sampled); tc.Debug || err == nil {
		tc.Sampled = tc.Debug || sampled
	} else {
		tc.Sampled = p.sampler.ShouldSample(path)
	}
	return tc, nil
}
