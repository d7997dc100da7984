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

// Package b3 reads and writes the B3 propagation headers through minimal
// carrier capabilities so any framework's header type can be plugged in.
package b3

import (
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
	zb3 "github.com/openzipkin/zipkin-go/propagation/b3"
)

// Header names, as used by every B3 implementation.
const (
	TraceIDHeader      = zb3.TraceID
	SpanIDHeader       = zb3.SpanID
	ParentSpanIDHeader = zb3.ParentSpanID
	SampledHeader      = zb3.Sampled
	FlagsHeader        = zb3.Flags

	// SingleHeader carries all values in one "trace-span-sampled-parent"
	// header.
	SingleHeader = zb3.Context
)

// Getter returns the value of an inbound header, "" when absent.
// http.Header satisfies Getter.
type Getter interface {
	Get(key string) string
}

// Setter writes an outbound header. http.Header satisfies Setter.
type Setter interface {
	Set(key, value string)
}

// Headers holds the raw, unvalidated B3 header values of a request.
type Headers struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Sampled      string
	Flags        string
}

// Empty reports whether no B3 header was present.
func (h Headers) Empty() bool {
	return h == Headers{}
}

// Extract reads the B3 headers from carrier. A nil carrier yields empty
// Headers.
func Extract(carrier Getter) Headers {
	if carrier == nil {
		return Headers{}
	}
	return Headers{
		TraceID:      strings.TrimSpace(carrier.Get(TraceIDHeader)),
		SpanID:       strings.TrimSpace(carrier.Get(SpanIDHeader)),
		ParentSpanID: strings.TrimSpace(carrier.Get(ParentSpanIDHeader)),
		Sampled:      strings.TrimSpace(carrier.Get(SampledHeader)),
		Flags:        strings.TrimSpace(carrier.Get(FlagsHeader)),
	}
}

// Inject writes the non-empty values of h onto carrier.
func Inject(carrier Setter, h Headers) {
	if carrier == nil {
		return
	}
	set := func(k, v string) {
		if v != "" {
			carrier.Set(k, v)
		}
	}
	set(TraceIDHeader, h.TraceID)
	set(SpanIDHeader, h.SpanID)
	set(ParentSpanIDHeader, h.ParentSpanID)
	set(SampledHeader, h.Sampled)
	set(FlagsHeader, h.Flags)
}

// ExtractSingle reads the single header form from carrier. ok is false when
// the header is absent or malformed.
func ExtractSingle(carrier Getter) (h Headers, ok bool) {
	if carrier == nil {
		return Headers{}, false
	}
	value := strings.TrimSpace(carrier.Get(SingleHeader))
	if value == "" {
		return Headers{}, false
	}
	sc, err := zb3.ParseSingleHeader(value)
	if err != nil || sc == nil {
		return Headers{}, false
	}
	if !sc.TraceID.Empty() {
		h.TraceID = sc.TraceID.String()
	}
	if sc.ID != 0 {
		h.SpanID = sc.ID.String()
	}
	if sc.ParentID != nil {
		h.ParentSpanID = sc.ParentID.String()
	}
	if sc.Sampled != nil {
		h.Sampled = "0"
		if *sc.Sampled {
			h.Sampled = "1"
		}
	}
	if sc.Debug {
		h.Flags = "1"
	}
	return h, true
}

// InjectSingle writes h onto carrier in the single header form. Nothing is
// written without a trace and span id.
func InjectSingle(carrier Setter, h Headers) {
	if carrier == nil || h.TraceID == "" || h.SpanID == "" {
		return
	}
	parts := []string{h.TraceID, h.SpanID}
	switch {
	case h.Flags == "1":
		parts = append(parts, "d")
	case h.Sampled != "":
		parts = append(parts, h.Sampled)
	}
	if len(parts) == 3 && h.ParentSpanID != "" {
		parts = append(parts, h.ParentSpanID)
	}
	carrier.Set(SingleHeader, strings.Join(parts, "-"))
}

// Map is a case-insensitive Getter and Setter over a plain map.
type Map map[string]string

// Get implements Getter.
func (m Map) Get(key string) string {
	if v, ok := m[strings.ToLower(key)]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Set implements Setter.
func (m Map) Set(key, value string) {
	m[strings.ToLower(key)] = value
}

// TextMapGetter adapts an opentracing TextMapReader into a Getter.
type TextMapGetter struct {
	Reader opentracing.TextMapReader
}

// Get implements Getter.
func (t TextMapGetter) Get(key string) string {
	var value string
	_ = t.Reader.ForeachKey(func(k, v string) error {
		if strings.EqualFold(k, key) {
			value = v
		}
		return nil
	})
	return value
}

// TextMapSetter adapts an opentracing TextMapWriter into a Setter.
type TextMapSetter struct {
	Writer opentracing.TextMapWriter
}

// Set implements Setter.
func (t TextMapSetter) Set(key, value string) {
	t.Writer.Set(key, value)
}
