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

package b3_test

import (
	"net/http"
	"testing"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/assert"

	"github.com/openzipkin-contrib/zipkin-go-collector/propagation/b3"
)

func TestExtractHTTPHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-B3-TraceId", "0000000000000001")
	h.Set("X-B3-SpanId", " 0000000000000002 ")
	h.Set("X-B3-Sampled", "1")

	have := b3.Extract(h)
	if want := "0000000000000001"; want != have.TraceID {
		t.Errorf("TraceID want %q, have %q", want, have.TraceID)
	}
	if want := "0000000000000002"; want != have.SpanID {
		t.Errorf("SpanID want %q, have %q", want, have.SpanID)
	}
	assert.Equal(t, "", have.ParentSpanID)
	assert.Equal(t, "1", have.Sampled)
	assert.False(t, have.Empty())
}

func TestExtractNilCarrier(t *testing.T) {
	assert.True(t, b3.Extract(nil).Empty())
}

func TestInjectSkipsEmptyValues(t *testing.T) {
	m := b3.Map{}
	b3.Inject(m, b3.Headers{TraceID: "a", SpanID: "b", Sampled: "0"})
	assert.Equal(t, b3.Map{
		b3.TraceIDHeader: "a",
		b3.SpanIDHeader:  "b",
		b3.SampledHeader: "0",
	}, m)
	b3.Inject(nil, b3.Headers{TraceID: "a"})
}

func TestMapIsCaseInsensitive(t *testing.T) {
	m := b3.Map{"X-B3-TRACEID": "abc"}
	assert.Equal(t, "abc", m.Get(b3.TraceIDHeader))
	m.Set("X-B3-SpanId", "def")
	assert.Equal(t, "def", m.Get("x-b3-spanid"))
}

func TestTextMapAdapters(t *testing.T) {
	carrier := opentracing.TextMapCarrier{}
	b3.Inject(b3.TextMapSetter{Writer: carrier}, b3.Headers{TraceID: "1", SpanID: "2"})

	have := b3.Extract(b3.TextMapGetter{Reader: carrier})
	assert.Equal(t, "1", have.TraceID)
	assert.Equal(t, "2", have.SpanID)
}

func TestSingleHeader(t *testing.T) {
	for _, test := range []struct {
		name string
		h    b3.Headers
		want string
	}{
		{"sampled", b3.Headers{TraceID: "0000000000000001", SpanID: "0000000000000002", Sampled: "1"}, "0000000000000001-0000000000000002-1"},
		{"parent", b3.Headers{TraceID: "0000000000000001", SpanID: "0000000000000002", ParentSpanID: "0000000000000003", Sampled: "0"}, "0000000000000001-0000000000000002-0-0000000000000003"},
		{"debug", b3.Headers{TraceID: "0000000000000001", SpanID: "0000000000000002", Sampled: "1", Flags: "1"}, "0000000000000001-0000000000000002-d"},
	} {
		t.Run(test.name, func(t *testing.T) {
			m := b3.Map{}
			b3.InjectSingle(m, test.h)
			assert.Equal(t, test.want, m.Get(b3.SingleHeader))

			have, ok := b3.ExtractSingle(m)
			assert.True(t, ok)
			assert.Equal(t, test.h.TraceID, have.TraceID)
			assert.Equal(t, test.h.SpanID, have.SpanID)
			assert.Equal(t, test.h.ParentSpanID, have.ParentSpanID)
			assert.Equal(t, test.h.Flags, have.Flags)
		})
	}
}

func TestExtractSingleMissingOrMalformed(t *testing.T) {
	_, ok := b3.ExtractSingle(b3.Map{})
	assert.False(t, ok)

	_, ok = b3.ExtractSingle(b3.Map{"b3": "not-a-context"})
	assert.False(t, ok)

	_, ok = b3.ExtractSingle(nil)
	assert.False(t, ok)

	m := b3.Map{}
	b3.InjectSingle(m, b3.Headers{TraceID: "0000000000000001"})
	assert.Empty(t, m)
}
