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
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	otobserver "github.com/opentracing-contrib/go-observer"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"

	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

// spanImpl guards the span under construction. Once finished the span
// belongs to the collector and every mutation is a no-op.
type spanImpl struct {
	tracer   *tracerImpl
	kind     spanKind
	observer otobserver.SpanObserver
	event    func(SpanEvent)

	mtx        sync.Mutex
	span       *models.Span
	context    SpanContext
	statusCode int
	finished   bool
}

func (s *spanImpl) SetOperationName(operationName string) opentracing.Span {
	if s.observer != nil {
		s.observer.OnSetOperationName(operationName)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.finished {
		s.span.Name = strings.ToLower(operationName)
	}
	return s
}

func (s *spanImpl) SetTag(key string, value interface{}) opentracing.Span {
	if s.observer != nil {
		s.observer.OnSetTag(key, value)
	}
	s.setTag(key, value)
	return s
}

func (s *spanImpl) setTag(key string, value interface{}) {
	switch key {
	case string(ext.SamplingPriority):
		// the sampling decision is taken when the trace starts
		return
	case string(ext.SpanKind):
		// the kind can only be set on span creation
		return
	}

	s.onTag(key, value)

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.finished {
		return
	}
	if key == string(ext.HTTPStatusCode) {
		if code, ok := statusCodeOf(value); ok {
			s.statusCode = code
			if s.kind == kindClient {
				// recorded with the cr annotation
				return
			}
		}
	}
	_ = s.tracer.tracer.RecordBinary(s.span, key, value)
}

func (s *spanImpl) LogKV(keyValues ...interface{}) {
	fields, err := log.InterleavedKVToFields(keyValues...)
	if err != nil {
		return
	}
	s.LogFields(fields...)
}

func (s *spanImpl) LogFields(fields ...log.Field) {
	s.logFields(time.Now(), fields...)
}

func (s *spanImpl) logFields(t time.Time, fields ...log.Field) {
	for _, field := range fields {
		s.annotate(opentracing.LogData{Timestamp: t, Event: field.String()})
	}
}

func (s *spanImpl) LogEvent(event string) {
	s.Log(opentracing.LogData{
		Event: event,
	})
}

func (s *spanImpl) LogEventWithPayload(event string, payload interface{}) {
	s.Log(opentracing.LogData{
		Event:   event,
		Payload: payload,
	})
}

func (s *spanImpl) Log(ld opentracing.LogData) {
	if ld.Timestamp.IsZero() {
		ld.Timestamp = time.Now()
	}
	s.annotate(ld)
}

func (s *spanImpl) annotate(ld opentracing.LogData) {
	annotation := ld.Event
	if ld.Payload != nil {
		annotation = fmt.Sprintf("%s:%v", ld.Event, ld.Payload)
	}

	s.onLog(ld)

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.finished {
		_ = s.tracer.tracer.Record(s.span, annotation)
	}
}

func (s *spanImpl) Finish() {
	s.FinishWithOptions(opentracing.FinishOptions{})
}

func (s *spanImpl) FinishWithOptions(opts opentracing.FinishOptions) {
	if s.observer != nil {
		s.observer.OnFinish(opts)
	}

	for _, lr := range opts.LogRecords {
		s.logFields(lr.Timestamp, lr.Fields...)
	}

	s.mtx.Lock()
	if s.finished {
		s.mtx.Unlock()
		return
	}
	s.finished = true
	name, sc := s.span.Name, s.context
	// the span was started by StartSpan, so neither call can fail
	if s.kind == kindClient {
		_ = s.tracer.tracer.ReceiveClientSpan(s.span, s.statusCode)
	} else {
		_ = s.tracer.tracer.SendServerSpan(s.span)
	}
	s.mtx.Unlock()

	s.onFinish(name, sc)
}

func (s *spanImpl) Tracer() opentracing.Tracer {
	return s.tracer
}

func (s *spanImpl) Context() opentracing.SpanContext {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.context
}

func (s *spanImpl) SetBaggageItem(key, val string) opentracing.Span {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.context = s.context.withBaggageItem(key, val)
	return s
}

func (s *spanImpl) BaggageItem(key string) string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.context.Baggage[key]
}

func statusCodeOf(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case uint16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint32:
		return int(v), true
	case string:
		code, err := strconv.Atoi(v)
		return code, err == nil
	}
	return 0, false
}
