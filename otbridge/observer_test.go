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

package otbridge

import (
	"testing"

	otobserver "github.com/opentracing-contrib/go-observer"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"
	"github.com/stretchr/testify/assert"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
)

type recordingObserver struct {
	decline bool
	calls   []string
}

func (o *recordingObserver) OnStartSpan(sp opentracing.Span, operationName string, options opentracing.StartSpanOptions) (otobserver.SpanObserver, bool) {
	if o.decline {
		return nil, false
	}
	o.calls = append(o.calls, "start:"+operationName)
	return o, true
}

func (o *recordingObserver) OnSetOperationName(operationName string) {
	o.calls = append(o.calls, "name:"+operationName)
}

func (o *recordingObserver) OnSetTag(key string, value interface{}) {
	o.calls = append(o.calls, "tag:"+key)
}

func (o *recordingObserver) OnFinish(options opentracing.FinishOptions) {
	o.calls = append(o.calls, "finish")
}

func TestObserverFanOut(t *testing.T) {
	first, declining, last := &recordingObserver{}, &recordingObserver{decline: true}, &recordingObserver{}
	tracer, _ := newTracer(zipkintracer.AlwaysSample(),
		WithObserver(first),
		WithObserver(declining),
		WithObserver(nil),
		WithObserver(last),
	)

	span := tracer.StartSpan("x")
	span.SetOperationName("y")
	span.SetTag("k", "v")
	span.Finish()

	want := []string{"start:x", "name:y", "tag:k", "finish"}
	assert.Equal(t, want, first.calls)
	assert.Equal(t, want, last.calls)
	assert.Empty(t, declining.calls)
}

func TestObserverAllDecline(t *testing.T) {
	_, ok := observer{observers: []otobserver.Observer{&recordingObserver{decline: true}}}.
		OnStartSpan(nil, "x", opentracing.StartSpanOptions{})
	assert.False(t, ok)
}

func TestSpanEventListener(t *testing.T) {
	var events []SpanEvent
	tracer, _ := newTracer(zipkintracer.AlwaysSample(), WithSpanEventListener(func() func(SpanEvent) {
		return func(e SpanEvent) { events = append(events, e) }
	}))

	span := tracer.StartSpan("x")
	span.SetTag("k", "v")
	span.LogFields(log.String("event", "retry"))
	span.Finish()

	if want, have := 4, len(events); want != have {
		t.Fatalf("want %d events, have %d: %v", want, have, events)
	}
	assert.Equal(t, EventCreate{OperationName: "x"}, events[0])
	assert.Equal(t, EventTag{Key: "k", Value: "v"}, events[1])
	assert.Equal(t, "event:retry", events[2].(EventLog).Event)
	finish := events[3].(EventFinish)
	assert.Equal(t, "x", finish.OperationName)
	assert.Equal(t, span.Context(), finish.Context)
}
