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

// Package http provides net/http server middleware and a client
// RoundTripper recording Zipkin spans.
package http

import (
	"bufio"
	"net"
	"net/http"

	"github.com/pkg/errors"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
)

type handler struct {
	tracer   *zipkintracer.Tracer
	provider *zipkintracer.ContextProvider
	next     http.Handler
	name     string
	logger   zipkintracer.Logger
}

// ServerOption allows the server middleware to be optionally configured.
type ServerOption func(*handler)

// SpanName sets the name of the spans the middleware records. The default
// is the request method.
func SpanName(name string) ServerOption {
	return func(h *handler) { h.name = name }
}

// ServerLogger sets the logger requests that cannot be traced are reported
// to.
func ServerLogger(logger zipkintracer.Logger) ServerOption {
	return func(h *handler) { h.logger = logger }
}

// NewServerMiddleware returns middleware recording a server span around
// every request. The TraceContext of the request is stored in the request
// context, where the client Transport picks it up. Tracing failures never
// fail the request.
func NewServerMiddleware(tracer *zipkintracer.Tracer, provider *zipkintracer.ContextProvider, options ...ServerOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := &handler{
			tracer:   tracer,
			provider: provider,
			next:     next,
			logger:   zipkintracer.NewNopLogger(),
		}
		for _, option := range options {
			option(h)
		}
		return h
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tc, err := h.provider.Create(r.Context(), r.Header, r.URL.Path)
	if err != nil {
		_ = h.logger.Log("msg", "request not traced", "err", err, "path", r.URL.Path)
		h.next.ServeHTTP(w, r)
		return
	}

	name := h.name
	if name == "" {
		name = r.Method
	}
	span, err := h.tracer.ReceiveServerSpan(name, tc, r.RequestURI)
	if err != nil {
		_ = h.logger.Log("msg", "request not traced", "err", err, "path", r.URL.Path)
		h.next.ServeHTTP(w, r)
		return
	}

	sw := &statusWriter{ResponseWriter: w}
	defer func() {
		_ = h.tracer.RecordBinary(span, "http.status_code", sw.statusCode())
		if err := h.tracer.SendServerSpan(span); err != nil {
			_ = h.logger.Log("msg", "span not sent", "err", err)
		}
	}()
	h.next.ServeHTTP(sw, r.WithContext(zipkintracer.NewContext(r.Context(), tc)))
}

// statusWriter remembers the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the connection over for protocol upgrades such as websockets.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

// Push implements http.Pusher when the wrapped writer does.
func (w *statusWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
