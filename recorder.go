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
	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

// annotate appends a timestamped annotation to span.
func annotate(span *models.Span, timestamp int64, value string, host models.Endpoint, duration *int64) {
	span.Annotations = append(span.Annotations, models.Annotation{
		Endpoint:  host,
		Timestamp: timestamp,
		Value:     value,
		Duration:  duration,
	})
}

// annotateBinary appends a key/value annotation to span. Values of unknown
// types are recorded as their string rendering.
func annotateBinary(span *models.Span, key string, value interface{}, host models.Endpoint) {
	span.BinaryAnnotations = append(span.BinaryAnnotations, models.BinaryAnnotation{
		Endpoint: host,
		Key:      key,
		Value:    models.ValueOf(value),
	})
}

// Record appends a free-form timestamped annotation to a started span.
func (t *Tracer) Record(span *models.Span, label string) error {
	if err := started(span); err != nil {
		return err
	}
	annotate(span, t.now(), label, t.local, nil)
	return nil
}

// RecordBinary appends a key/value annotation to a started span.
func (t *Tracer) RecordBinary(span *models.Span, key string, value interface{}) error {
	if err := started(span); err != nil {
		return err
	}
	annotateBinary(span, key, value, t.local)
	return nil
}

func started(span *models.Span) error {
	if span == nil || len(span.Annotations) == 0 {
		return ErrSpanNotStarted
	}
	if sent(span) {
		return ErrSpanAlreadySent
	}
	return nil
}

// sent reports whether span carries an ss or cr annotation, after which it
// belongs to the collector.
func sent(span *models.Span) bool {
	for _, a := range span.Annotations {
		if a.Value == models.ServerSend || a.Value == models.ClientRecv {
			return true
		}
	}
	return false
}
