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
	"context"
	"encoding/base64"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/pkg/errors"

	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

// Scribe wraps thrift encoded spans in Base64, one message per line, for
// sinks that need text framing such as the Scribe Log RPC.
type Scribe struct{}

// ContentType implements Serializer.
func (Scribe) ContentType() string { return "text/plain" }

// Serialize implements Serializer.
func (Scribe) Serialize(span *models.Span) ([]byte, error) {
	b, err := Thrift{}.Serialize(span)
	if err != nil {
		return nil, err
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(out, b)
	return out, nil
}

// Frame implements Serializer.
func (Scribe) Frame(items [][]byte) ([]byte, error) {
	return bytes.Join(items, []byte{'\n'}), nil
}

// SplitScribe returns the messages of a Scribe frame.
func SplitScribe(payload []byte) []string {
	if len(payload) == 0 {
		return nil
	}
	lines := bytes.Split(payload, []byte{'\n'})
	messages := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(line) > 0 {
			messages = append(messages, string(line))
		}
	}
	return messages
}

// ScribeCategory is the Scribe category Zipkin consumes spans from.
const ScribeCategory = "zipkin"

// Result codes of the Scribe Log call.
const (
	ScribeOK       int32 = 0
	ScribeTryLater int32 = 1
)

// ErrScribeException is returned when the Scribe server answers a call with
// an application exception.
var ErrScribeException = errors.New("scribe: remote application exception")

// ScribeEntry is one LogEntry of a Scribe Log call.
type ScribeEntry struct {
	Category string
	Message  string
}

// WriteScribeLog writes and flushes a Scribe Log call carrying messages
// under category.
func WriteScribeLog(ctx context.Context, p thrift.TProtocol, seqID int32, category string, messages []string) error {
	w := &thriftWriter{ctx: ctx, p: p}
	w.do(func() error { return p.WriteMessageBegin(ctx, "Log", thrift.CALL, seqID) })
	w.do(func() error { return p.WriteStructBegin(ctx, "Log_args") })
	w.field("messages", thrift.LIST, 1, func() error {
		w.do(func() error { return p.WriteListBegin(ctx, thrift.STRUCT, len(messages)) })
		for _, m := range messages {
			m := m
			w.do(func() error { return p.WriteStructBegin(ctx, "LogEntry") })
			w.field("category", thrift.STRING, 1, func() error { return p.WriteString(ctx, category) })
			w.field("message", thrift.STRING, 2, func() error { return p.WriteString(ctx, m) })
			w.do(func() error { return p.WriteFieldStop(ctx) })
			w.do(func() error { return p.WriteStructEnd(ctx) })
		}
		w.do(func() error { return p.WriteListEnd(ctx) })
		return nil
	})
	w.do(func() error { return p.WriteFieldStop(ctx) })
	w.do(func() error { return p.WriteStructEnd(ctx) })
	w.do(func() error { return p.WriteMessageEnd(ctx) })
	w.do(func() error { return p.Flush(ctx) })
	return w.err
}

// ReadScribeLog reads a Scribe Log call, as a Scribe server does.
func ReadScribeLog(ctx context.Context, p thrift.TProtocol) (int32, []ScribeEntry, error) {
	name, typeID, seqID, err := p.ReadMessageBegin(ctx)
	if err != nil {
		return 0, nil, err
	}
	if name != "Log" || typeID != thrift.CALL {
		return seqID, nil, errors.Errorf("scribe: unexpected message %q of type %d", name, typeID)
	}
	var entries []ScribeEntry
	err = readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		if id != 1 || t != thrift.LIST {
			return false, nil
		}
		return true, readList(ctx, p, func() error {
			var e ScribeEntry
			err := readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
				if t != thrift.STRING {
					return false, nil
				}
				switch id {
				case 1:
					v, err := p.ReadString(ctx)
					e.Category = v
					return true, err
				case 2:
					v, err := p.ReadString(ctx)
					e.Message = v
					return true, err
				}
				return false, nil
			})
			entries = append(entries, e)
			return err
		})
	})
	if err != nil {
		return seqID, nil, err
	}
	return seqID, entries, p.ReadMessageEnd(ctx)
}

// WriteScribeResult writes and flushes the reply to a Scribe Log call.
func WriteScribeResult(ctx context.Context, p thrift.TProtocol, seqID int32, code int32) error {
	w := &thriftWriter{ctx: ctx, p: p}
	w.do(func() error { return p.WriteMessageBegin(ctx, "Log", thrift.REPLY, seqID) })
	w.do(func() error { return p.WriteStructBegin(ctx, "Log_result") })
	w.field("success", thrift.I32, 0, func() error { return p.WriteI32(ctx, code) })
	w.do(func() error { return p.WriteFieldStop(ctx) })
	w.do(func() error { return p.WriteStructEnd(ctx) })
	w.do(func() error { return p.WriteMessageEnd(ctx) })
	w.do(func() error { return p.Flush(ctx) })
	return w.err
}

// ReadScribeResult reads the reply to the Log call seqID and returns its
// result code.
func ReadScribeResult(ctx context.Context, p thrift.TProtocol, seqID int32) (int32, error) {
	_, typeID, seq, err := p.ReadMessageBegin(ctx)
	if err != nil {
		return 0, err
	}
	if typeID == thrift.EXCEPTION {
		if err := p.Skip(ctx, thrift.STRUCT); err != nil {
			return 0, err
		}
		if err := p.ReadMessageEnd(ctx); err != nil {
			return 0, err
		}
		return 0, ErrScribeException
	}
	if seq != seqID {
		return 0, errors.Errorf("scribe: reply %d out of sequence, want %d", seq, seqID)
	}

	code := ScribeOK
	err = readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		if id != 0 || t != thrift.I32 {
			return false, nil
		}
		v, err := p.ReadI32(ctx)
		code = v
		return true, err
	})
	if err != nil {
		return 0, err
	}
	return code, p.ReadMessageEnd(ctx)
}
