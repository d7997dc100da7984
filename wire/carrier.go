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
	"encoding/binary"
	"io"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/openzipkin/zipkin-go/model"
	"github.com/pkg/errors"
)

// Field ids of the encoded span state.
const (
	stateTraceIDHigh = 1
	stateTraceIDLow  = 2
	stateSpanID      = 3
	stateParentID    = 4
	stateSampled     = 5
	stateBaggage     = 6
)

// maxStateSize bounds the length prefix accepted by ReadStateCarrier.
const maxStateSize = 64 * 1024

// StateCarrier holds the propagated state of a span. It is the delegating
// carrier used by the opentracing bridge and has a compact thrift encoding
// for the opentracing Binary format. A zero ParentSpanID marks a root span.
type StateCarrier struct {
	TraceID      model.TraceID
	SpanID       model.ID
	ParentSpanID model.ID
	Sampled      bool
	Baggage      map[string]string
}

// SetState sets the span state.
func (c *StateCarrier) SetState(traceID model.TraceID, spanID, parentSpanID model.ID, sampled bool) {
	c.TraceID = traceID
	c.SpanID = spanID
	c.ParentSpanID = parentSpanID
	c.Sampled = sampled
}

// State returns the span state.
func (c *StateCarrier) State() (traceID model.TraceID, spanID, parentSpanID model.ID, sampled bool) {
	return c.TraceID, c.SpanID, c.ParentSpanID, c.Sampled
}

// SetBaggageItem sets a baggage item.
func (c *StateCarrier) SetBaggageItem(key, value string) {
	if c.Baggage == nil {
		c.Baggage = map[string]string{key: value}
		return
	}
	c.Baggage[key] = value
}

// GetBaggage iterates over each baggage item and executes the callback with
// the key:value pair.
func (c *StateCarrier) GetBaggage(f func(k, v string)) {
	for k, v := range c.Baggage {
		f(k, v)
	}
}

// MarshalBinary encodes the state as a thrift binary struct.
func (c *StateCarrier) MarshalBinary() ([]byte, error) {
	ctx := context.Background()
	buf := thrift.NewTMemoryBuffer()
	w := &thriftWriter{ctx: ctx, p: thrift.NewTBinaryProtocolConf(buf, thriftConf)}

	w.do(func() error { return w.p.WriteStructBegin(ctx, "SpanState") })
	if c.TraceID.High != 0 {
		w.field("trace_id_high", thrift.I64, stateTraceIDHigh, func() error {
			return w.p.WriteI64(ctx, int64(c.TraceID.High))
		})
	}
	w.field("trace_id", thrift.I64, stateTraceIDLow, func() error {
		return w.p.WriteI64(ctx, int64(c.TraceID.Low))
	})
	w.field("span_id", thrift.I64, stateSpanID, func() error {
		return w.p.WriteI64(ctx, int64(c.SpanID))
	})
	if c.ParentSpanID != 0 {
		w.field("parent_id", thrift.I64, stateParentID, func() error {
			return w.p.WriteI64(ctx, int64(c.ParentSpanID))
		})
	}
	w.field("sampled", thrift.BOOL, stateSampled, func() error {
		return w.p.WriteBool(ctx, c.Sampled)
	})
	if len(c.Baggage) > 0 {
		w.field("baggage", thrift.MAP, stateBaggage, func() error {
			if err := w.p.WriteMapBegin(ctx, thrift.STRING, thrift.STRING, len(c.Baggage)); err != nil {
				return err
			}
			for k, v := range c.Baggage {
				if err := w.p.WriteString(ctx, k); err != nil {
					return err
				}
				if err := w.p.WriteString(ctx, v); err != nil {
					return err
				}
			}
			return w.p.WriteMapEnd(ctx)
		})
	}
	w.do(func() error { return w.p.WriteFieldStop(ctx) })
	w.do(func() error { return w.p.WriteStructEnd(ctx) })
	if w.err != nil {
		return nil, w.err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a state written by MarshalBinary. Unknown fields
// are skipped.
func (c *StateCarrier) UnmarshalBinary(data []byte) error {
	ctx := context.Background()
	buf := thrift.NewTMemoryBuffer()
	if _, err := buf.Write(data); err != nil {
		return err
	}
	p := thrift.NewTBinaryProtocolConf(buf, thriftConf)
	*c = StateCarrier{}
	return readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		switch {
		case id == stateTraceIDHigh && t == thrift.I64:
			v, err := p.ReadI64(ctx)
			c.TraceID.High = uint64(v)
			return true, err
		case id == stateTraceIDLow && t == thrift.I64:
			v, err := p.ReadI64(ctx)
			c.TraceID.Low = uint64(v)
			return true, err
		case id == stateSpanID && t == thrift.I64:
			v, err := p.ReadI64(ctx)
			c.SpanID = model.ID(v)
			return true, err
		case id == stateParentID && t == thrift.I64:
			v, err := p.ReadI64(ctx)
			c.ParentSpanID = model.ID(v)
			return true, err
		case id == stateSampled && t == thrift.BOOL:
			v, err := p.ReadBool(ctx)
			c.Sampled = v
			return true, err
		case id == stateBaggage && t == thrift.MAP:
			_, _, size, err := p.ReadMapBegin(ctx)
			if err != nil {
				return true, err
			}
			for i := 0; i < size; i++ {
				k, err := p.ReadString(ctx)
				if err != nil {
					return true, err
				}
				v, err := p.ReadString(ctx)
				if err != nil {
					return true, err
				}
				c.SetBaggageItem(k, v)
			}
			return true, p.ReadMapEnd(ctx)
		}
		return false, nil
	})
}

// WriteStateCarrier writes the encoded state to w, preceded by its length
// as a big endian uint32.
func WriteStateCarrier(w io.Writer, c *StateCarrier) error {
	b, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// ReadStateCarrier reads a length prefixed state written by
// WriteStateCarrier.
func ReadStateCarrier(r io.Reader) (*StateCarrier, error) {
	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, err
	}
	if size > maxStateSize {
		return nil, errors.Errorf("span state of %d bytes exceeds limit", size)
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Wrap(err, "reading span state")
	}
	c := &StateCarrier{}
	if err := c.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return c, nil
}
