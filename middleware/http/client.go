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

package http

import (
	"net/http"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
)

type transport struct {
	tracer *zipkintracer.Tracer
	rt     http.RoundTripper
	logger zipkintracer.Logger
}

// TransportOption allows one to configure optional transport configuration.
type TransportOption func(*transport)

// RoundTripper adds the RoundTripper to wrap.
func RoundTripper(rt http.RoundTripper) TransportOption {
	return func(t *transport) {
		if rt != nil {
			t.rt = rt
		}
	}
}

// TransportLogger sets the logger calls that cannot be traced are reported
// to.
func TransportLogger(logger zipkintracer.Logger) TransportOption {
	return func(t *transport) { t.logger = logger }
}

// NewTransport returns a RoundTripper recording a client span for every
// request made within a traced request context and propagating the B3
// headers of that span. Requests without a TraceContext pass through
// untouched.
func NewTransport(tracer *zipkintracer.Tracer, options ...TransportOption) http.RoundTripper {
	t := &transport{
		tracer: tracer,
		rt:     http.DefaultTransport,
		logger: zipkintracer.NewNopLogger(),
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// RoundTrip satisfies the RoundTripper interface.
func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	parent, ok := zipkintracer.FromContext(req.Context())
	if !ok {
		return t.rt.RoundTrip(req)
	}

	tc := parent.GetNext()
	span, err := t.tracer.SendClientSpan(req.Method, tc, req.URL.String())
	if err != nil {
		_ = t.logger.Log("msg", "call not traced", "err", err, "url", req.URL.String())
		return t.rt.RoundTrip(req)
	}

	// a RoundTripper must not modify the caller's request
	req = req.Clone(req.Context())
	tc.Inject(req.Header)

	res, err := t.rt.RoundTrip(req)
	statusCode := 0
	if err != nil {
		_ = t.tracer.RecordBinary(span, "error", err.Error())
	} else {
		statusCode = res.StatusCode
	}
	if err := t.tracer.ReceiveClientSpan(span, statusCode); err != nil {
		_ = t.logger.Log("msg", "span not sent", "err", err)
	}
	return res, err
}
