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
	"context"
	"errors"
	"net"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/openzipkin/zipkin-go/model"

	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

// Field ids of the zipkinCore thrift structs.
const (
	spanTraceID           = 1
	spanName              = 3
	spanID                = 4
	spanParentID          = 5
	spanAnnotations       = 6
	spanBinaryAnnotations = 8
	spanDebug             = 9
	spanTraceIDHigh       = 12

	annotationTimestamp = 1
	annotationValue     = 2
	annotationHost      = 3
	annotationDuration  = 4

	binaryKey   = 1
	binaryValue = 2
	binaryType  = 3
	binaryHost  = 4

	endpointIPv4        = 1
	endpointPort        = 2
	endpointServiceName = 3
)

var thriftConf = &thrift.TConfiguration{}

// Thrift serializes spans with the binary thrift protocol; a frame is a
// thrift list<Span>.
type Thrift struct{}

// ContentType implements Serializer.
func (Thrift) ContentType() string { return "application/x-thrift" }

// Serialize implements Serializer.
func (Thrift) Serialize(span *models.Span) ([]byte, error) {
	buf := thrift.NewTMemoryBuffer()
	w := &thriftWriter{ctx: context.Background(), p: thrift.NewTBinaryProtocolConf(buf, thriftConf)}
	w.span(span)
	if w.err == nil {
		w.err = w.p.Flush(w.ctx)
	}
	if w.err != nil {
		return nil, w.err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}

// Frame implements Serializer.
func (Thrift) Frame(items [][]byte) ([]byte, error) {
	buf := thrift.NewTMemoryBuffer()
	p := thrift.NewTBinaryProtocolConf(buf, thriftConf)
	ctx := context.Background()
	if err := p.WriteListBegin(ctx, thrift.STRUCT, len(items)); err != nil {
		return nil, err
	}
	if err := p.WriteListEnd(ctx); err != nil {
		return nil, err
	}
	if err := p.Flush(ctx); err != nil {
		return nil, err
	}
	out := append([]byte(nil), buf.Bytes()...)
	for _, item := range items {
		out = append(out, item...)
	}
	return out, nil
}

// thriftWriter keeps the first error so struct encoding reads top-down.
type thriftWriter struct {
	ctx context.Context
	p   thrift.TProtocol
	err error
}

func (w *thriftWriter) do(f func() error) {
	if w.err != nil {
		return
	}
	if err := f(); err != nil && w.err == nil {
		w.err = err
	}
}

func (w *thriftWriter) field(name string, t thrift.TType, id int16, value func() error) {
	w.do(func() error { return w.p.WriteFieldBegin(w.ctx, name, t, id) })
	w.do(value)
	w.do(func() error { return w.p.WriteFieldEnd(w.ctx) })
}

func (w *thriftWriter) span(s *models.Span) {
	w.do(func() error { return w.p.WriteStructBegin(w.ctx, "Span") })
	w.field("trace_id", thrift.I64, spanTraceID, func() error {
		return w.p.WriteI64(w.ctx, int64(s.TraceID.Low))
	})
	w.field("name", thrift.STRING, spanName, func() error {
		return w.p.WriteString(w.ctx, s.Name)
	})
	w.field("id", thrift.I64, spanID, func() error {
		return w.p.WriteI64(w.ctx, int64(s.ID))
	})
	if s.ParentID != nil {
		w.field("parent_id", thrift.I64, spanParentID, func() error {
			return w.p.WriteI64(w.ctx, int64(*s.ParentID))
		})
	}
	w.field("annotations", thrift.LIST, spanAnnotations, func() error {
		if err := w.p.WriteListBegin(w.ctx, thrift.STRUCT, len(s.Annotations)); err != nil {
			return err
		}
		for i := range s.Annotations {
			w.annotation(&s.Annotations[i])
		}
		if w.err != nil {
			return w.err
		}
		return w.p.WriteListEnd(w.ctx)
	})
	w.field("binary_annotations", thrift.LIST, spanBinaryAnnotations, func() error {
		if err := w.p.WriteListBegin(w.ctx, thrift.STRUCT, len(s.BinaryAnnotations)); err != nil {
			return err
		}
		for i := range s.BinaryAnnotations {
			w.binaryAnnotation(&s.BinaryAnnotations[i])
		}
		if w.err != nil {
			return w.err
		}
		return w.p.WriteListEnd(w.ctx)
	})
	if s.Debug {
		w.field("debug", thrift.BOOL, spanDebug, func() error {
			return w.p.WriteBool(w.ctx, true)
		})
	}
	if s.TraceID.High != 0 {
		w.field("trace_id_high", thrift.I64, spanTraceIDHigh, func() error {
			return w.p.WriteI64(w.ctx, int64(s.TraceID.High))
		})
	}
	w.do(func() error { return w.p.WriteFieldStop(w.ctx) })
	w.do(func() error { return w.p.WriteStructEnd(w.ctx) })
}

func (w *thriftWriter) annotation(a *models.Annotation) {
	w.do(func() error { return w.p.WriteStructBegin(w.ctx, "Annotation") })
	w.field("timestamp", thrift.I64, annotationTimestamp, func() error {
		return w.p.WriteI64(w.ctx, a.Timestamp)
	})
	w.field("value", thrift.STRING, annotationValue, func() error {
		return w.p.WriteString(w.ctx, a.Value)
	})
	w.field("host", thrift.STRUCT, annotationHost, func() error {
		w.endpoint(a.Endpoint)
		return nil
	})
	if a.Duration != nil {
		w.field("duration", thrift.I32, annotationDuration, func() error {
			return w.p.WriteI32(w.ctx, int32(*a.Duration))
		})
	}
	w.do(func() error { return w.p.WriteFieldStop(w.ctx) })
	w.do(func() error { return w.p.WriteStructEnd(w.ctx) })
}

func (w *thriftWriter) binaryAnnotation(b *models.BinaryAnnotation) {
	w.do(func() error { return w.p.WriteStructBegin(w.ctx, "BinaryAnnotation") })
	w.field("key", thrift.STRING, binaryKey, func() error {
		return w.p.WriteString(w.ctx, b.Key)
	})
	w.field("value", thrift.STRING, binaryValue, func() error {
		return w.p.WriteBinary(w.ctx, b.Value.Encode())
	})
	w.field("annotation_type", thrift.I32, binaryType, func() error {
		return w.p.WriteI32(w.ctx, int32(b.Value.Type()))
	})
	w.field("host", thrift.STRUCT, binaryHost, func() error {
		w.endpoint(b.Endpoint)
		return nil
	})
	w.do(func() error { return w.p.WriteFieldStop(w.ctx) })
	w.do(func() error { return w.p.WriteStructEnd(w.ctx) })
}

func (w *thriftWriter) endpoint(e models.Endpoint) {
	w.do(func() error { return w.p.WriteStructBegin(w.ctx, "Endpoint") })
	w.field("ipv4", thrift.I32, endpointIPv4, func() error {
		return w.p.WriteI32(w.ctx, e.IPv4Int())
	})
	w.field("port", thrift.I16, endpointPort, func() error {
		return w.p.WriteI16(w.ctx, int16(e.Port))
	})
	w.field("service_name", thrift.STRING, endpointServiceName, func() error {
		return w.p.WriteString(w.ctx, e.ServiceName)
	})
	w.do(func() error { return w.p.WriteFieldStop(w.ctx) })
	w.do(func() error { return w.p.WriteStructEnd(w.ctx) })
}

// ErrNotSpanList is returned when a thrift payload is not a list of structs.
var ErrNotSpanList = errors.New("thrift payload is not a list of spans")

// ReadThriftSpans decodes a payload produced by Thrift.Frame.
func ReadThriftSpans(payload []byte) ([]*models.Span, error) {
	buf := thrift.NewTMemoryBuffer()
	if _, err := buf.Write(payload); err != nil {
		return nil, err
	}
	p := thrift.NewTBinaryProtocolConf(buf, thriftConf)
	ctx := context.Background()
	elemType, size, err := p.ReadListBegin(ctx)
	if err != nil {
		return nil, err
	}
	if elemType != thrift.STRUCT {
		return nil, ErrNotSpanList
	}
	spans := make([]*models.Span, 0, size)
	for i := 0; i < size; i++ {
		s, err := readSpan(ctx, p)
		if err != nil {
			return nil, err
		}
		spans = append(spans, s)
	}
	return spans, p.ReadListEnd(ctx)
}

// ReadThriftSpan decodes a payload produced by Thrift.Serialize.
func ReadThriftSpan(payload []byte) (*models.Span, error) {
	buf := thrift.NewTMemoryBuffer()
	if _, err := buf.Write(payload); err != nil {
		return nil, err
	}
	return readSpan(context.Background(), thrift.NewTBinaryProtocolConf(buf, thriftConf))
}

// readStruct walks the fields of a struct, handing each to read. Fields read
// reports as unknown are skipped.
func readStruct(ctx context.Context, p thrift.TProtocol, read func(id int16, t thrift.TType) (bool, error)) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, t, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if t == thrift.STOP {
			break
		}
		known, err := read(id, t)
		if err != nil {
			return err
		}
		if !known {
			if err := p.Skip(ctx, t); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

func readList(ctx context.Context, p thrift.TProtocol, read func() error) error {
	_, size, err := p.ReadListBegin(ctx)
	if err != nil {
		return err
	}
	for i := 0; i < size; i++ {
		if err := read(); err != nil {
			return err
		}
	}
	return p.ReadListEnd(ctx)
}

func readSpan(ctx context.Context, p thrift.TProtocol) (*models.Span, error) {
	s := &models.Span{}
	err := readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		switch {
		case id == spanTraceID && t == thrift.I64:
			v, err := p.ReadI64(ctx)
			s.TraceID.Low = uint64(v)
			return true, err
		case id == spanName && t == thrift.STRING:
			v, err := p.ReadString(ctx)
			s.Name = v
			return true, err
		case id == spanID && t == thrift.I64:
			v, err := p.ReadI64(ctx)
			s.ID = model.ID(v)
			return true, err
		case id == spanParentID && t == thrift.I64:
			v, err := p.ReadI64(ctx)
			parent := model.ID(v)
			s.ParentID = &parent
			return true, err
		case id == spanAnnotations && t == thrift.LIST:
			return true, readList(ctx, p, func() error {
				a, err := readAnnotation(ctx, p)
				s.Annotations = append(s.Annotations, a)
				return err
			})
		case id == spanBinaryAnnotations && t == thrift.LIST:
			return true, readList(ctx, p, func() error {
				b, err := readBinaryAnnotation(ctx, p)
				s.BinaryAnnotations = append(s.BinaryAnnotations, b)
				return err
			})
		case id == spanDebug && t == thrift.BOOL:
			v, err := p.ReadBool(ctx)
			s.Debug = v
			return true, err
		case id == spanTraceIDHigh && t == thrift.I64:
			v, err := p.ReadI64(ctx)
			s.TraceID.High = uint64(v)
			return true, err
		}
		return false, nil
	})
	return s, err
}

func readAnnotation(ctx context.Context, p thrift.TProtocol) (models.Annotation, error) {
	var a models.Annotation
	err := readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		switch {
		case id == annotationTimestamp && t == thrift.I64:
			v, err := p.ReadI64(ctx)
			a.Timestamp = v
			return true, err
		case id == annotationValue && t == thrift.STRING:
			v, err := p.ReadString(ctx)
			a.Value = v
			return true, err
		case id == annotationHost && t == thrift.STRUCT:
			e, err := readEndpoint(ctx, p)
			a.Endpoint = e
			return true, err
		case id == annotationDuration && t == thrift.I32:
			v, err := p.ReadI32(ctx)
			d := int64(v)
			a.Duration = &d
			return true, err
		}
		return false, nil
	})
	return a, err
}

func readBinaryAnnotation(ctx context.Context, p thrift.TProtocol) (models.BinaryAnnotation, error) {
	var (
		b   models.BinaryAnnotation
		raw []byte
		typ = models.TypeString
	)
	err := readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		switch {
		case id == binaryKey && t == thrift.STRING:
			v, err := p.ReadString(ctx)
			b.Key = v
			return true, err
		case id == binaryValue && t == thrift.STRING:
			v, err := p.ReadBinary(ctx)
			raw = v
			return true, err
		case id == binaryType && t == thrift.I32:
			v, err := p.ReadI32(ctx)
			typ = models.AnnotationType(v)
			return true, err
		case id == binaryHost && t == thrift.STRUCT:
			e, err := readEndpoint(ctx, p)
			b.Endpoint = e
			return true, err
		}
		return false, nil
	})
	b.Value = models.DecodeValue(typ, raw)
	return b, err
}

func readEndpoint(ctx context.Context, p thrift.TProtocol) (models.Endpoint, error) {
	var e models.Endpoint
	err := readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		switch {
		case id == endpointIPv4 && t == thrift.I32:
			v, err := p.ReadI32(ctx)
			if v != 0 {
				e.IPv4 = net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).To4()
			}
			return true, err
		case id == endpointPort && t == thrift.I16:
			v, err := p.ReadI16(ctx)
			e.Port = uint16(v)
			return true, err
		case id == endpointServiceName && t == thrift.STRING:
			v, err := p.ReadString(ctx)
			e.ServiceName = v
			return true, err
		}
		return false, nil
	})
	return e, err
}
