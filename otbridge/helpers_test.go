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
	"net"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

var localEndpoint = models.Endpoint{
	ServiceName: "frontend",
	IPv4:        net.IPv4(127, 0, 0, 1),
	Port:        8080,
}

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

func (c *recordingCollector) Flush() []*models.Span {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	spans := c.spans
	c.spans = nil
	return spans
}

func newTracer(sampler *zipkintracer.Sampler, opts ...TracerOption) (opentracing.Tracer, *recordingCollector) {
	c := &recordingCollector{}
	tr := zipkintracer.NewTracer(c, localEndpoint)
	return Wrap(tr, zipkintracer.NewContextProvider(sampler), opts...), c
}

func annotationValues(span *models.Span) []string {
	values := make([]string, 0, len(span.Annotations))
	for _, a := range span.Annotations {
		values = append(values, a.Value)
	}
	return values
}

func binaryAnnotations(span *models.Span, key string) []models.BinaryAnnotation {
	var found []models.BinaryAnnotation
	for _, ba := range span.BinaryAnnotations {
		if ba.Key == key {
			found = append(found, ba)
		}
	}
	return found
}
