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
	"net/url"
	"strings"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

const defaultDropLogInterval = time.Minute

// SpanCollector accepts finished spans. *Collector implements it.
type SpanCollector interface {
	Collect(span *models.Span) error
}

// NopCollector drops every span.
type NopCollector struct{}

// Collect implements SpanCollector.
func (NopCollector) Collect(*models.Span) error { return nil }

// Tracer builds the spans of the four span events: server receive, server
// send, client send and client receive. Only the send events hand the span
// to the collector.
type Tracer struct {
	collector SpanCollector
	local     models.Endpoint
	opts      TracerOptions
	remote    *remoteResolver
	dropLog   *StateLogger
}

// NewTracer returns a Tracer recording annotations at the local endpoint and
// delivering sampled spans to collector.
func NewTracer(collector SpanCollector, local models.Endpoint, opts ...TracerOption) *Tracer {
	if collector == nil {
		collector = NopCollector{}
	}
	t := &Tracer{
		collector: collector,
		local:     local,
		opts: TracerOptions{
			clock:           clockz.RealClock,
			logger:          NewNopLogger(),
			dropLogInterval: defaultDropLogInterval,
		},
	}
	for _, o := range opts {
		o(&t.opts)
	}
	t.remote = newRemoteResolver(t.opts.lookupIP, t.opts.notToBeDisplayed)
	t.dropLog = newStateLogger(t.opts.logger, t.opts.dropLogInterval, t.opts.clock)
	return t
}

// LocalEndpoint returns the endpoint annotations are recorded at.
func (t *Tracer) LocalEndpoint() models.Endpoint { return t.local }

// ReceiveServerSpan starts the span of an inbound request.
func (t *Tracer) ReceiveServerSpan(name string, tc TraceContext, requestURI string) (*models.Span, error) {
	if !tc.Valid() {
		return nil, ErrInvalidTraceContext
	}
	span := newSpan(name, tc)
	annotate(span, t.now(), models.ServerRecv, t.local, nil)
	annotateBinary(span, "http.uri", requestPath(requestURI), t.local)
	if t.opts.idAnnotations {
		annotateBinary(span, "trace_id", tc.TraceID.String(), t.local)
		annotateBinary(span, "span_id", tc.SpanID.String(), t.local)
		if tc.ParentID != nil {
			annotateBinary(span, "parent_id", tc.ParentID.String(), t.local)
		}
	}
	return span, nil
}

// SendServerSpan ends the span of an inbound request and delivers it.
func (t *Tracer) SendServerSpan(span *models.Span) error {
	if span == nil {
		return ErrNilSpan
	}
	sr, ok := span.FindAnnotation(models.ServerRecv)
	if !ok {
		return ErrServerReceiveMissing
	}
	if sent(span) {
		return ErrSpanAlreadySent
	}
	now := t.now()
	annotate(span, now, models.ServerSend, t.local, elapsed(sr.Timestamp, now))
	t.deliver(span)
	return nil
}

// SendClientSpan starts the span of an outbound call to remoteURI. tc is
// usually the result of GetNext on the current context.
func (t *Tracer) SendClientSpan(name string, tc TraceContext, remoteURI string) (*models.Span, error) {
	if !tc.Valid() {
		return nil, ErrInvalidTraceContext
	}
	remote, path := t.remote.resolve(remoteURI)
	span := newSpan(name, tc)
	annotate(span, t.now(), models.ClientSend, t.local, nil)
	annotateBinary(span, "http.uri", path, t.local)
	if !remote.Empty() {
		annotateBinary(span, "sa", true, remote)
	}
	return span, nil
}

// ReceiveClientSpan ends the span of an outbound call and delivers it.
func (t *Tracer) ReceiveClientSpan(span *models.Span, statusCode int) error {
	if span == nil {
		return ErrNilSpan
	}
	cs, ok := span.FindAnnotation(models.ClientSend)
	if !ok {
		return ErrClientSendMissing
	}
	if sent(span) {
		return ErrSpanAlreadySent
	}
	now := t.now()
	annotate(span, now, models.ClientRecv, t.local, elapsed(cs.Timestamp, now))
	annotateBinary(span, "http.status_code", statusCode, t.local)
	t.deliver(span)
	return nil
}

// deliver hands span to the collector. A refused span is logged and
// dropped, never reported to the request path.
func (t *Tracer) deliver(span *models.Span) {
	if !span.Sampled {
		return
	}
	if err := t.collector.Collect(span); err != nil {
		t.dropLog.LogError(err, "msg", "span dropped", "span", span.Name)
		return
	}
	t.dropLog.Fixed("msg", "collector accepting spans again")
}

func (t *Tracer) now() int64 {
	return t.opts.clock.Now().UnixNano() / 1e3
}

func newSpan(name string, tc TraceContext) *models.Span {
	span := &models.Span{
		TraceID: tc.TraceID,
		ID:      tc.SpanID,
		Name:    strings.ToLower(name),
		Debug:   tc.Debug,
		Sampled: tc.Sampled,
	}
	if tc.ParentID != nil {
		parent := *tc.ParentID
		span.ParentID = &parent
	}
	return span
}

func elapsed(from, to int64) *int64 {
	d := to - from
	if d < 0 {
		d = 0
	}
	return &d
}

func requestPath(requestURI string) string {
	u, err := url.Parse(requestURI)
	if err != nil || u.Path == "" {
		return requestURI
	}
	return u.Path
}
