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

// Package events mirrors opentracing spans into golang.org/x/net/trace so
// in-flight requests show up on /debug/requests.
package events

import (
	otobserver "github.com/opentracing-contrib/go-observer"
	opentracing "github.com/opentracing/opentracing-go"
	"golang.org/x/net/trace"

	"github.com/openzipkin-contrib/zipkin-go-collector/otbridge"
)

// Family is the net/trace family spans are registered under.
const Family = "tracing"

// newTrace is replaced in tests.
var newTrace = trace.New

// NetTraceIntegrator can be passed into otbridge.WithSpanEventListener and
// causes all spans to be registered with the net/trace endpoint.
var NetTraceIntegrator = func() func(otbridge.SpanEvent) {
	var tr trace.Trace
	return func(e otbridge.SpanEvent) {
		switch t := e.(type) {
		case otbridge.EventCreate:
			tr = newTrace(Family, t.OperationName)
		case otbridge.EventFinish:
			if tr != nil {
				tr.Finish()
			}
		case otbridge.EventTag:
			if tr != nil {
				tr.LazyPrintf("%s=%v", t.Key, t.Value)
			}
		case otbridge.EventLog:
			if tr == nil {
				return
			}
			if t.Payload != nil {
				tr.LazyPrintf("%s (payload %v)", t.Event, t.Payload)
			} else {
				tr.LazyPrintf("%s", t.Event)
			}
		}
	}
}

// NetTraceObserver is an opentracing observer doing the same for tracers
// that accept go-observer observers.
type NetTraceObserver struct{}

var _ otobserver.Observer = NetTraceObserver{}

// OnStartSpan implements otobserver.Observer.
func (NetTraceObserver) OnStartSpan(sp opentracing.Span, operationName string, options opentracing.StartSpanOptions) (otobserver.SpanObserver, bool) {
	return &netTraceSpan{tr: newTrace(Family, operationName)}, true
}

type netTraceSpan struct {
	tr trace.Trace
}

func (s *netTraceSpan) OnSetOperationName(operationName string) {
	s.tr.LazyPrintf("renamed to %s", operationName)
}

func (s *netTraceSpan) OnSetTag(key string, value interface{}) {
	s.tr.LazyPrintf("%s=%v", key, value)
	if key == "error" {
		if failed, _ := value.(bool); failed {
			s.tr.SetError()
		}
	}
}

func (s *netTraceSpan) OnFinish(options opentracing.FinishOptions) {
	s.tr.Finish()
}
