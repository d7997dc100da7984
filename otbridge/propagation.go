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
	"context"
	"io"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/openzipkin/zipkin-go/model"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
	"github.com/openzipkin-contrib/zipkin-go-collector/propagation/b3"
	"github.com/openzipkin-contrib/zipkin-go-collector/wire"
)

const prefixBaggage = "ot-baggage-"

// DelegatingCarrier is a flexible carrier interface which can be implemented
// by types which have a means of storing the trace metadata and already know
// how to serialize themselves. *wire.StateCarrier implements it.
type DelegatingCarrier interface {
	SetState(traceID model.TraceID, spanID, parentSpanID model.ID, sampled bool)
	State() (traceID model.TraceID, spanID, parentSpanID model.ID, sampled bool)
	SetBaggageItem(key, value string)
	GetBaggage(func(key, value string))
}

var _ DelegatingCarrier = (*wire.StateCarrier)(nil)

type textMapPropagator struct {
	tracer *tracerImpl
}

func (p *textMapPropagator) Inject(sc SpanContext, opaqueCarrier interface{}) error {
	carrier, ok := opaqueCarrier.(opentracing.TextMapWriter)
	if !ok || carrier == nil {
		return opentracing.ErrInvalidCarrier
	}
	h := sc.Headers()
	setter := b3.TextMapSetter{Writer: carrier}
	switch p.tracer.opts.b3InjectOpt {
	case B3InjectSingle:
		b3.InjectSingle(setter, h)
	case B3InjectBoth:
		b3.Inject(setter, h)
		b3.InjectSingle(setter, h)
	default:
		b3.Inject(setter, h)
	}
	for k, v := range sc.Baggage {
		carrier.Set(prefixBaggage+k, v)
	}
	return nil
}

func (p *textMapPropagator) Extract(opaqueCarrier interface{}) (SpanContext, error) {
	carrier, ok := opaqueCarrier.(opentracing.TextMapReader)
	if !ok || carrier == nil {
		return SpanContext{}, opentracing.ErrInvalidCarrier
	}
	headers := b3.Map{}
	var baggage map[string]string
	err := carrier.ForeachKey(func(k, v string) error {
		lowercaseK := strings.ToLower(k)
		if strings.HasPrefix(lowercaseK, prefixBaggage) {
			if baggage == nil {
				baggage = map[string]string{}
			}
			baggage[strings.TrimPrefix(lowercaseK, prefixBaggage)] = v
			return nil
		}
		headers.Set(lowercaseK, v)
		return nil
	})
	if err != nil {
		return SpanContext{}, err
	}

	h := b3.Extract(headers)
	if h.TraceID == "" {
		single, ok := b3.ExtractSingle(headers)
		if !ok {
			return SpanContext{}, opentracing.ErrSpanContextNotFound
		}
		h = single
	}
	return p.tracer.contextFromHeaders(h, baggage)
}

type accessorPropagator struct {
	tracer *tracerImpl
}

func (p *accessorPropagator) Inject(sc SpanContext, carrier interface{}) error {
	ac, ok := carrier.(DelegatingCarrier)
	if !ok || ac == nil {
		return opentracing.ErrInvalidCarrier
	}
	var parent model.ID
	if sc.ParentID != nil {
		parent = *sc.ParentID
	}
	ac.SetState(sc.TraceID, sc.SpanID, parent, sc.Sampled)
	for k, v := range sc.Baggage {
		ac.SetBaggageItem(k, v)
	}
	return nil
}

func (p *accessorPropagator) Extract(carrier interface{}) (SpanContext, error) {
	ac, ok := carrier.(DelegatingCarrier)
	if !ok || ac == nil {
		return SpanContext{}, opentracing.ErrInvalidCarrier
	}
	traceID, spanID, parentSpanID, sampled := ac.State()
	if traceID.Empty() || spanID == 0 {
		return SpanContext{}, opentracing.ErrSpanContextNotFound
	}
	sc := SpanContext{
		TraceContext: zipkintracer.TraceContext{
			TraceID: traceID,
			SpanID:  spanID,
			Sampled: sampled,
		},
		remote: true,
	}
	if parentSpanID != 0 {
		sc.ParentID = &parentSpanID
	}
	ac.GetBaggage(func(k, v string) {
		sc = sc.withBaggageItem(k, v)
	})
	return sc, nil
}

type binaryPropagator struct {
	accessor *accessorPropagator
}

func (p *binaryPropagator) Inject(sc SpanContext, opaqueCarrier interface{}) error {
	carrier, ok := opaqueCarrier.(io.Writer)
	if !ok || carrier == nil {
		return opentracing.ErrInvalidCarrier
	}
	state := &wire.StateCarrier{}
	if err := p.accessor.Inject(sc, state); err != nil {
		return err
	}
	return wire.WriteStateCarrier(carrier, state)
}

func (p *binaryPropagator) Extract(opaqueCarrier interface{}) (SpanContext, error) {
	carrier, ok := opaqueCarrier.(io.Reader)
	if !ok || carrier == nil {
		return SpanContext{}, opentracing.ErrInvalidCarrier
	}
	state, err := wire.ReadStateCarrier(carrier)
	if err == io.EOF {
		return SpanContext{}, opentracing.ErrSpanContextNotFound
	}
	if err != nil {
		return SpanContext{}, opentracing.ErrSpanContextCorrupted
	}
	return p.accessor.Extract(state)
}

// contextFromHeaders validates propagated headers the way inbound requests
// are validated, so malformed ids are replaced and sampling is decided once.
func (t *tracerImpl) contextFromHeaders(h b3.Headers, baggage map[string]string) (SpanContext, error) {
	carrier := b3.Map{}
	b3.Inject(carrier, h)
	tc, err := t.provider.Create(context.Background(), carrier, "")
	if err != nil {
		return SpanContext{}, opentracing.ErrSpanContextCorrupted
	}
	return SpanContext{TraceContext: tc, Baggage: baggage, remote: true}, nil
}
