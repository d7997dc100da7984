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

// TraceContext identifies one unit of work.
type TraceContext struct {
	TraceID  model.TraceID
	SpanID   model.ID
	ParentID *model.ID
	Sampled  bool
	Debug    bool
}

// Valid reports whether both the trace and the span id are set.
func (tc TraceContext) Valid() bool {
	return !tc.TraceID.Empty() && tc.SpanID != 0
}

// GetNext returns the context of an outbound call: same trace and sampling
// decision, a fresh span id and the current span as parent.
func (tc TraceContext) GetNext() TraceContext {
	parent := tc.SpanID
	return TraceContext{
		TraceID:  tc.TraceID,
		SpanID:   newSpanID(tc.SpanID),
		ParentID: &parent,
		Sampled:  tc.Sampled,
		Debug:    tc.Debug,
	}
}

// Headers renders tc as B3 header values.
func (tc TraceContext) Headers() b3.Headers {
	h := b3.Headers{
		TraceID: tc.TraceID.String(),
		SpanID:  tc.SpanID.String(),
		Sampled: "0",
	}
	if tc.ParentID != nil {
		h.ParentSpanID = tc.ParentID.String()
	}
	if tc.Sampled {
		h.Sampled = "1"
	}
	if tc.Debug {
		h.Flags = "1"
	}
	return h
}

// Inject writes tc onto an outbound carrier.
func (tc TraceContext) Inject(carrier b3.Setter) {
	b3.Inject(carrier, tc.Headers())
}

func (tc TraceContext) String() string {
	parent := "none"
	if tc.ParentID != nil {
		parent = tc.ParentID.String()
	}
	return tc.TraceID.String() + "/" + tc.SpanID.String() + "/" + parent + "/" + strconv.FormatBool(tc.Sampled)
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying tc.
func NewContext(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the TraceContext stored in ctx, if any.
func FromContext(ctx context.Context) (TraceContext, bool) {
	if ctx == nil {
		return TraceContext{}, false
	}
	tc, ok := ctx.Value(contextKey{}).(TraceContext)
	return tc, ok
}
