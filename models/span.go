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

// Package models holds the Zipkin v1 span model shared by the tracer, the
// collector and the wire serializers.
package models

import (
	"github.com/openzipkin/zipkin-go/model"
)

// Core annotation values marking the four span lifecycle events.
const (
	ServerRecv = "sr"
	ServerSend = "ss"
	ClientSend = "cs"
	ClientRecv = "cr"
)

// Span is one timed unit of traced work. Once handed to a collector it must
// not be mutated anymore.
type Span struct {
	TraceID           model.TraceID
	ID                model.ID
	ParentID          *model.ID
	Name              string
	Debug             bool
	Sampled           bool
	Annotations       []Annotation
	BinaryAnnotations []BinaryAnnotation
}

// Annotation is a timestamped event on a span.
type Annotation struct {
	Endpoint  Endpoint
	Timestamp int64 // microseconds since epoch
	Value     string
	Duration  *int64 // microseconds
}

// BinaryAnnotation is a key/value tag on a span.
type BinaryAnnotation struct {
	Endpoint Endpoint
	Key      string
	Value    Value
}

// IsRoot reports whether the span has no parent.
func (s *Span) IsRoot() bool {
	return s.ParentID == nil
}

// FindAnnotation returns the last annotation carrying value, if any.
func (s *Span) FindAnnotation(value string) (Annotation, bool) {
	for i := len(s.Annotations) - 1; i >= 0; i-- {
		if s.Annotations[i].Value == value {
			return s.Annotations[i], true
		}
	}
	return Annotation{}, false
}
