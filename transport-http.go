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
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SpansPath is the Zipkin API path spans are posted to.
const SpansPath = "/api/v1/spans"

const defaultHTTPTimeout = 5 * time.Second

// HTTPTransport implements Transport by posting batches to a Zipkin server.
type HTTPTransport struct {
	url         string
	client      *http.Client
	contentType string
	reqCallback RequestCallback
	closeOnce   sync.Once
}

// RequestCallback receives the initialized request from the transport before
// sending it over the wire. This allows one to plug in additional headers or
// do other customization.
type RequestCallback func(*http.Request)

// HTTPOption sets a parameter for the HTTPTransport.
type HTTPOption func(t *HTTPTransport)

// HTTPTimeout sets maximum timeout for http request.
func HTTPTimeout(duration time.Duration) HTTPOption {
	return func(t *HTTPTransport) { t.client.Timeout = duration }
}

// HTTPClient sets a custom http client to use.
func HTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.client = client }
}

// HTTPContentType sets the Content-Type of posted batches. It must match
// the serializer of the collector; the default is application/json.
func HTTPContentType(contentType string) HTTPOption {
	return func(t *HTTPTransport) { t.contentType = contentType }
}

// HTTPRequestCallback registers a callback function to adjust the
// *http.Request before it is sent to Zipkin.
func HTTPRequestCallback(rc RequestCallback) HTTPOption {
	return func(t *HTTPTransport) { t.reqCallback = rc }
}

// NewHTTPTransport returns a transport posting to the spans endpoint of the
// Zipkin server at baseURL, e.g. http://zipkin:9411.
func NewHTTPTransport(baseURL string, options ...HTTPOption) (*HTTPTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid collector url")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Errorf("invalid collector url %q: want an absolute http(s) url", baseURL)
	}
	if !strings.HasSuffix(u.Path, SpansPath) {
		u.Path = strings.TrimSuffix(u.Path, "/") + SpansPath
	}

	t := &HTTPTransport{
		url:         u.String(),
		client:      &http.Client{Timeout: defaultHTTPTimeout},
		contentType: "application/json",
	}
	for _, option := range options {
		option(t)
	}
	return t, nil
}

// URL returns the endpoint batches are posted to.
func (t *HTTPTransport) URL() string { return t.url }

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "building span request")
	}
	req.Header.Set("Content-Type", t.contentType)
	if t.reqCallback != nil {
		t.reqCallback(req)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "HTTP POST span failed")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	// non 2xx code
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("HTTP POST span failed: %s", resp.Status)
	}
	return nil
}

// Close implements Transport.
func (t *HTTPTransport) Close() error {
	t.closeOnce.Do(t.client.CloseIdleConnections)
	return nil
}
