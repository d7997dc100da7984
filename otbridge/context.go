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
	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
)

// SpanContext is the opentracing view of a TraceContext. Baggage is copied
// on write so contexts handed out earlier never change.
type SpanContext struct {
	zipkintracer.TraceContext
	Baggage map[string]string

	// remote marks a context extracted from a carrier.
	remote bool
}

// ForeachBaggageItem belongs to the opentracing.SpanContext interface.
func (c SpanContext) ForeachBaggageItem(handler func(k, v string) bool) {
	for k, v := range c.Baggage {
		if !handler(k, v) {
			break
		}
	}
}

func (c SpanContext) withBaggageItem(key, value string) SpanContext {
	baggage := make(map[string]string, len(c.Baggage)+1)
	for k, v := range c.Baggage {
		baggage[k] = v
	}
	baggage[key] = value
	c.Baggage = baggage
	return c
}
