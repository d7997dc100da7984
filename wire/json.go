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

package wire

import (
	"bytes"
	"encoding/json"
	"net"
	"strconv"

	"github.com/openzipkin/zipkin-go/model"

	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

// JSONSpan is the Zipkin v1 JSON span.
type JSONSpan struct {
	TraceID           string                 `json:"traceId"`
	Name              string                 `json:"name"`
	ID                string                 `json:"id"`
	ParentID          string                 `json:"parentId,omitempty"`
	Debug             bool                   `json:"debug,omitempty"`
	Annotations       []JSONAnnotation       `json:"annotations"`
	BinaryAnnotations []JSONBinaryAnnotation `json:"binaryAnnotations"`
}

// JSONAnnotation is a timestamped event; timestamp and duration are
// microseconds rendered as strings.
type JSONAnnotation struct {
	Endpoint  JSONEndpoint `json:"endpoint"`
	Value     string       `json:"value"`
	Timestamp string       `json:"timestamp"`
	Duration  string       `json:"duration,omitempty"`
}

// JSONBinaryAnnotation is a key/value tag with a stringified value.
type JSONBinaryAnnotation struct {
	Endpoint JSONEndpoint `json:"endpoint"`
	Key      string       `json:"key"`
	Value    string       `json:"value"`
}

// JSONEndpoint is the host an annotation was recorded on.
type JSONEndpoint struct {
	IPv4        string `json:"ipv4"`
	Port        uint16 `json:"port"`
	ServiceName string `json:"serviceName"`
}

// JSON serializes spans to a JSON array.
type JSON struct{}

// ContentType implements Serializer.
func (JSON) ContentType() string { return "application/json" }

// Serialize implements Serializer.
func (JSON) Serialize(span *models.Span) ([]byte, error) {
	return json.Marshal(ToJSON(span))
}

// Frame implements Serializer.
func (JSON) Frame(items [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(bytes.Join(items, []byte{','}))
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// ToJSON converts a span to its JSON model.
func ToJSON(span *models.Span) JSONSpan {
	js := JSONSpan{
		TraceID:           span.TraceID.String(),
		Name:              span.Name,
		ID:                span.ID.String(),
		Debug:             span.Debug,
		Annotations:       make([]JSONAnnotation, 0, len(span.Annotations)),
		BinaryAnnotations: make([]JSONBinaryAnnotation, 0, len(span.BinaryAnnotations)),
	}
	if span.ParentID != nil {
		js.ParentID = span.ParentID.String()
	}
	for _, a := range span.Annotations {
		ja := JSONAnnotation{
			Endpoint:  toJSONEndpoint(a.Endpoint),
			Value:     a.Value,
			Timestamp: strconv.FormatInt(a.Timestamp, 10),
		}
		if a.Duration != nil {
			ja.Duration = strconv.FormatInt(*a.Duration, 10)
		}
		js.Annotations = append(js.Annotations, ja)
	}
	for _, b := range span.BinaryAnnotations {
		js.BinaryAnnotations = append(js.BinaryAnnotations, JSONBinaryAnnotation{
			Endpoint: toJSONEndpoint(b.Endpoint),
			Key:      b.Key,
			Value:    b.Value.String(),
		})
	}
	return js
}

// FromJSON converts a JSON span back into the span model. Binary annotation
// values come back as strings since the JSON model does not carry their type.
func FromJSON(js JSONSpan) (*models.Span, error) {
	traceID, err := model.TraceIDFromHex(js.TraceID)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseUint(js.ID, 16, 64)
	if err != nil {
		return nil, err
	}
	span := &models.Span{
		TraceID: traceID,
		ID:      model.ID(id),
		Name:    js.Name,
		Debug:   js.Debug,
	}
	if js.ParentID != "" {
		parent, err := strconv.ParseUint(js.ParentID, 16, 64)
		if err != nil {
			return nil, err
		}
		parentID := model.ID(parent)
		span.ParentID = &parentID
	}
	for _, ja := range js.Annotations {
		ts, err := strconv.ParseInt(ja.Timestamp, 10, 64)
		if err != nil {
			return nil, err
		}
		a := models.Annotation{
			Endpoint:  fromJSONEndpoint(ja.Endpoint),
			Timestamp: ts,
			Value:     ja.Value,
		}
		if ja.Duration != "" {
			d, err := strconv.ParseInt(ja.Duration, 10, 64)
			if err != nil {
				return nil, err
			}
			a.Duration = &d
		}
		span.Annotations = append(span.Annotations, a)
	}
	for _, jb := range js.BinaryAnnotations {
		span.BinaryAnnotations = append(span.BinaryAnnotations, models.BinaryAnnotation{
			Endpoint: fromJSONEndpoint(jb.Endpoint),
			Key:      jb.Key,
			Value:    models.String(jb.Value),
		})
	}
	return span, nil
}

func toJSONEndpoint(e models.Endpoint) JSONEndpoint {
	return JSONEndpoint{
		IPv4:        e.IPv4String(),
		Port:        e.Port,
		ServiceName: e.ServiceName,
	}
}

func fromJSONEndpoint(je JSONEndpoint) models.Endpoint {
	e := models.Endpoint{ServiceName: je.ServiceName, Port: je.Port}
	if ip := net.ParseIP(je.IPv4); ip != nil && !ip.IsUnspecified() {
		e.IPv4 = ip.To4()
	}
	return e
}
