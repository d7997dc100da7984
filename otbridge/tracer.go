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

// Package otbridge exposes the span builder as an opentracing Tracer.
//
// Spans tagged span.kind=client are recorded as outbound calls (cs/cr),
// every other span as the handling of an inbound request (sr/ss). A server
// span started from an extracted context shares the span id of the calling
// client, as Zipkin v1 instrumentation does.
package otbridge

import (
	"context"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
)

type tracerImpl struct {
	tracer             *zipkintracer.Tracer
	provider           *zipkintracer.ContextProvider
	textPropagator     *textMapPropagator
	accessorPropagator *accessorPropagator
	binaryPropagator   *binaryPropagator
	observer           observer
	opts               *TracerOptions
}

// Wrap receives a span builder and the provider deciding the sampling of new
// traces and returns an opentracing tracer. A nil provider never samples.
func Wrap(tr *zipkintracer.Tracer, provider *zipkintracer.ContextProvider, opts ...TracerOption) opentracing.Tracer {
	if provider == nil {
		provider = zipkintracer.NewContextProvider(nil)
	}
	t := &tracerImpl{
		tracer:   tr,
		provider: provider,
		opts:     &TracerOptions{},
	}
	t.textPropagator = &textMapPropagator{t}
	t.accessorPropagator = &accessorPropagator{t}
	t.binaryPropagator = &binaryPropagator{t.accessorPropagator}

	for _, o := range opts {
		o(t.opts)
	}
	t.observer = observer{observers: t.opts.observers}

	return t
}

func (t *tracerImpl) StartSpan(operationName string, opts ...opentracing.StartSpanOption) opentracing.Span {
	var startSpanOptions opentracing.StartSpanOptions
	for _, opt := range opts {
		opt.Apply(&startSpanOptions)
	}

	var parent *SpanContext
	for _, ref := range startSpanOptions.References {
		if sc, ok := spanContextOf(ref.ReferencedContext); ok {
			parent = &sc
			break
		}
	}

	kind := kindOf(startSpanOptions.Tags[string(ext.SpanKind)])
	uri, _ := startSpanOptions.Tags[string(ext.HTTPUrl)].(string)

	sp := &spanImpl{
		tracer:  t,
		kind:    kind,
		context: t.contextFor(kind, parent, operationName),
	}
	if t.opts.newListener != nil {
		sp.event = t.opts.newListener()
	}

	// contextFor always returns a valid context
	if kind == kindClient {
		sp.span, _ = t.tracer.SendClientSpan(operationName, sp.context.TraceContext, uri)
	} else {
		if uri == "" {
			uri = operationName
		}
		sp.span, _ = t.tracer.ReceiveServerSpan(operationName, sp.context.TraceContext, uri)
	}
	sp.onCreate(operationName)

	for key, value := range startSpanOptions.Tags {
		if key == string(ext.HTTPUrl) {
			continue
		}
		sp.setTag(key, value)
	}

	if obs, ok := t.observer.OnStartSpan(sp, operationName, startSpanOptions); ok {
		sp.observer = obs
	}
	return sp
}

// contextFor derives the context of a new span from its parent.
func (t *tracerImpl) contextFor(kind spanKind, parent *SpanContext, operationName string) SpanContext {
	if parent == nil {
		// without a carrier there is no parent id to conflict with
		tc, _ := t.provider.Create(context.Background(), nil, operationName)
		return SpanContext{TraceContext: tc}
	}
	if kind == kindServer && parent.remote {
		sc := *parent
		sc.remote = false
		return sc
	}
	return SpanContext{TraceContext: parent.GetNext(), Baggage: parent.Baggage}
}

func spanContextOf(c opentracing.SpanContext) (SpanContext, bool) {
	switch sc := c.(type) {
	case SpanContext:
		return sc, sc.Valid()
	case *SpanContext:
		if sc == nil {
			return SpanContext{}, false
		}
		return *sc, sc.Valid()
	}
	return SpanContext{}, false
}

type spanKind int

const (
	kindServer spanKind = iota
	kindClient
)

func kindOf(tag interface{}) spanKind {
	var kind string
	switch v := tag.(type) {
	case string:
		kind = v
	case ext.SpanKindEnum:
		kind = string(v)
	}
	switch strings.ToLower(kind) {
	case string(ext.SpanKindRPCClientEnum), string(ext.SpanKindProducerEnum):
		return kindClient
	}
	return kindServer
}

type delegatorType struct{}

// Delegator is the format to use for DelegatingCarrier.
var Delegator delegatorType

func (t *tracerImpl) Inject(sc opentracing.SpanContext, format interface{}, carrier interface{}) error {
	spanContext, ok := spanContextOf(sc)
	if !ok {
		return opentracing.ErrInvalidSpanContext
	}
	switch format {
	case opentracing.TextMap, opentracing.HTTPHeaders:
		return t.textPropagator.Inject(spanContext, carrier)
	case opentracing.Binary:
		return t.binaryPropagator.Inject(spanContext, carrier)
	}
	if _, ok := format.(delegatorType); ok {
		return t.accessorPropagator.Inject(spanContext, carrier)
	}
	return opentracing.ErrUnsupportedFormat
}

func (t *tracerImpl) Extract(format interface{}, carrier interface{}) (opentracing.SpanContext, error) {
	var (
		sc  SpanContext
		err error
	)
	switch format {
	case opentracing.TextMap, opentracing.HTTPHeaders:
		sc, err = t.textPropagator.Extract(carrier)
	case opentracing.Binary:
		sc, err = t.binaryPropagator.Extract(carrier)
	default:
		if _, ok := format.(delegatorType); !ok {
			return nil, opentracing.ErrUnsupportedFormat
		}
		sc, err = t.accessorPropagator.Extract(carrier)
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}
