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

package http_test

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/openzipkin/zipkin-go/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
	zipkinhttp "github.com/openzipkin-contrib/zipkin-go-collector/middleware/http"
	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

type recordingCollector struct {
	mtx   sync.Mutex
	spans []*models.Span
}

func (c *recordingCollector) Collect(span *models.Span) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.spans = append(c.spans, span)
	return nil
}

func (c *recordingCollector) all() []*models.Span {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return append([]*models.Span(nil), c.spans...)
}

func binaryValue(span *models.Span, key string) (models.Value, bool) {
	for _, ba := range span.BinaryAnnotations {
		if ba.Key == key {
			return ba.Value, true
		}
	}
	return models.Value{}, false
}

func newTracer(c zipkintracer.SpanCollector) *zipkintracer.Tracer {
	return zipkintracer.NewTracer(c, models.Endpoint{
		ServiceName: "frontend",
		IPv4:        net.IPv4(127, 0, 0, 1),
		Port:        8080,
	})
}

func TestServerAndClientSpans(t *testing.T) {
	received := make(chan http.Header, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer backend.Close()

	c := &recordingCollector{}
	tracer := newTracer(c)
	provider := zipkintracer.NewContextProvider(zipkintracer.AlwaysSample())
	client := &http.Client{Transport: zipkinhttp.NewTransport(tracer)}

	mw := zipkinhttp.NewServerMiddleware(tracer, provider, zipkinhttp.SpanName("create order"))
	frontend := httptest.NewServer(mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, backend.URL+"/stock", nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		res, err := client.Do(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		res.Body.Close()
		w.WriteHeader(http.StatusCreated)
	})))
	defer frontend.Close()

	res, err := http.Post(frontend.URL+"/orders?dry=1", "text/plain", nil)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	spans := c.all()
	require.Len(t, spans, 2)
	clientSpan, serverSpan := spans[0], spans[1]

	assert.Equal(t, "create order", serverSpan.Name)
	_, ok := serverSpan.FindAnnotation(models.ServerSend)
	assert.True(t, ok)
	uri, _ := binaryValue(serverSpan, "http.uri")
	assert.Equal(t, models.String("/orders"), uri)
	status, _ := binaryValue(serverSpan, "http.status_code")
	assert.Equal(t, models.Int64(http.StatusCreated), status)

	assert.Equal(t, "get", clientSpan.Name)
	assert.Equal(t, serverSpan.TraceID, clientSpan.TraceID)
	require.NotNil(t, clientSpan.ParentID)
	assert.Equal(t, serverSpan.ID, *clientSpan.ParentID)
	status, _ = binaryValue(clientSpan, "http.status_code")
	assert.Equal(t, models.Int64(http.StatusNoContent), status)

	backendHeaders := <-received
	if want, have := clientSpan.TraceID.String(), backendHeaders.Get("X-B3-TraceId"); want != have {
		t.Errorf("want trace id %s, have %s", want, have)
	}
	assert.Equal(t, clientSpan.ID.String(), backendHeaders.Get("X-B3-SpanId"))
	assert.Equal(t, serverSpan.ID.String(), backendHeaders.Get("X-B3-ParentSpanId"))
	assert.Equal(t, "1", backendHeaders.Get("X-B3-Sampled"))
}

func TestServerContinuesPropagatedTrace(t *testing.T) {
	c := &recordingCollector{}
	mw := zipkinhttp.NewServerMiddleware(newTracer(c), zipkintracer.NewContextProvider(zipkintracer.NeverSample()))

	var seen zipkintracer.TraceContext
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = zipkintracer.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-B3-TraceId", "00000000000000aa")
	req.Header.Set("X-B3-SpanId", "00000000000000bb")
	req.Header.Set("X-B3-ParentSpanId", "00000000000000cc")
	req.Header.Set("X-B3-Sampled", "1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "00000000000000aa/00000000000000bb/00000000000000cc/true", seen.String())
	spans := c.all()
	require.Len(t, spans, 1)
	assert.Equal(t, "get", spans[0].Name)
}

func TestServerAllowsHijacking(t *testing.T) {
	c := &recordingCollector{}
	mw := zipkinhttp.NewServerMiddleware(newTracer(c), zipkintracer.NewContextProvider(zipkintracer.AlwaysSample()))
	srv := httptest.NewServer(mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "no hijacker", http.StatusInternalServerError)
			return
		}
		conn, rw, err := hj.Hijack()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = rw.WriteString("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n")
		_ = rw.Flush()
	})))
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("GET /ws HTTP/1.1\r\nHost: test\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n"))
	require.NoError(t, err)

	res, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, res.StatusCode)

	// the span is sent once the handler returns
	var spans []*models.Span
	for i := 0; i < 100 && len(spans) == 0; i++ {
		spans = c.all()
		if len(spans) == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	require.Len(t, spans, 1)
	status, _ := binaryValue(spans[0], "http.status_code")
	assert.Equal(t, models.Int64(http.StatusSwitchingProtocols), status)
}

func TestServerUnsampledRequest(t *testing.T) {
	c := &recordingCollector{}
	mw := zipkinhttp.NewServerMiddleware(newTracer(c), zipkintracer.NewContextProvider(zipkintracer.AlwaysSample()))
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-B3-Sampled", "0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, c.all())
}

func TestServerUntraceableRequestIsServed(t *testing.T) {
	c := &recordingCollector{}
	var logged []interface{}
	logger := zipkintracer.LoggerFunc(func(keyvals ...interface{}) error {
		logged = append(logged, keyvals...)
		return nil
	})
	mw := zipkinhttp.NewServerMiddleware(newTracer(c), zipkintracer.NewContextProvider(zipkintracer.AlwaysSample()),
		zipkinhttp.ServerLogger(logger))

	served := false
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served = true
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-B3-TraceId", "00000000000000aa")
	req.Header.Set("X-B3-SpanId", "00000000000000bb")
	req.Header.Set("X-B3-ParentSpanId", "00000000000000bb")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, served)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, c.all())
	assert.Contains(t, logged, zipkintracer.ErrSpanIDEqualsParentID)
}

func TestTransportWithoutTraceContext(t *testing.T) {
	received := make(chan http.Header, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Clone()
	}))
	defer backend.Close()

	c := &recordingCollector{}
	client := &http.Client{Transport: zipkinhttp.NewTransport(newTracer(c), zipkinhttp.RoundTripper(http.DefaultTransport))}
	res, err := client.Get(backend.URL)
	require.NoError(t, err)
	res.Body.Close()

	assert.Empty(t, (<-received).Get("X-B3-TraceId"))
	assert.Empty(t, c.all())
}

type failingRoundTripper struct{}

func (failingRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, assert.AnError
}

func TestTransportRecordsErrors(t *testing.T) {
	c := &recordingCollector{}
	tracer := newTracer(c)
	rt := zipkinhttp.NewTransport(tracer, zipkinhttp.RoundTripper(failingRoundTripper{}))

	parent := zipkintracer.TraceContext{TraceID: model.TraceID{Low: 7}, SpanID: 1, Sampled: true}
	req := httptest.NewRequest(http.MethodGet, "http://10.0.0.1/stock", nil)
	req = req.WithContext(zipkintracer.NewContext(req.Context(), parent))

	_, err := rt.RoundTrip(req)
	assert.Equal(t, assert.AnError, err)
	assert.Empty(t, req.Header.Get("X-B3-TraceId"))

	spans := c.all()
	require.Len(t, spans, 1)
	value, ok := binaryValue(spans[0], "error")
	require.True(t, ok)
	assert.Equal(t, models.String(assert.AnError.Error()), value)
	status, _ := binaryValue(spans[0], "http.status_code")
	assert.Equal(t, models.Int64(0), status)
}
