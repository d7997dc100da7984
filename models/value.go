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

package models

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// AnnotationType tags the type of a binary annotation value. The numbering
// follows the zipkinCore thrift enum.
type AnnotationType int32

// Known annotation types.
const (
	TypeBool AnnotationType = iota
	TypeBytes
	TypeInt16
	TypeInt32
	TypeInt64
	TypeDouble
	TypeString
)

func (t AnnotationType) String() string {
	switch t {
	case TypeBool:
		return "BOOL"
	case TypeBytes:
		return "BYTES"
	case TypeInt16:
		return "I16"
	case TypeInt32:
		return "I32"
	case TypeInt64:
		return "I64"
	case TypeDouble:
		return "DOUBLE"
	default:
		return "STRING"
	}
}

// Value is the typed value of a binary annotation. The zero Value is a false
// BOOL.
type Value struct {
	typ AnnotationType
	b   bool
	i   int64
	f   float64
	s   string
	raw []byte
}

// Bool returns a BOOL value.
func Bool(v bool) Value { return Value{typ: TypeBool, b: v} }

// Bytes returns a BYTES value.
func Bytes(v []byte) Value { return Value{typ: TypeBytes, raw: v} }

// Int16 returns an I16 value.
func Int16(v int16) Value { return Value{typ: TypeInt16, i: int64(v)} }

// Int32 returns an I32 value.
func Int32(v int32) Value { return Value{typ: TypeInt32, i: int64(v)} }

// Int64 returns an I64 value.
func Int64(v int64) Value { return Value{typ: TypeInt64, i: v} }

// Double returns a DOUBLE value.
func Double(v float64) Value { return Value{typ: TypeDouble, f: v} }

// String returns a STRING value.
func String(v string) Value { return Value{typ: TypeString, s: v} }

// ValueOf maps a Go value onto one of the known annotation types. Values of
// any other type are recorded as their string representation.
func ValueOf(value interface{}) Value {
	switch v := value.(type) {
	case Value:
		return v
	case bool:
		return Bool(v)
	case []byte:
		return Bytes(v)
	case int8:
		return Int16(int16(v))
	case uint8:
		return Int16(int16(v))
	case int16:
		return Int16(v)
	case uint16:
		return Int32(int32(v))
	case int32:
		return Int32(v)
	case uint32:
		return Int64(int64(v))
	case int:
		return Int64(int64(v))
	case int64:
		return Int64(v)
	case float32:
		return Double(float64(v))
	case float64:
		return Double(v)
	case string:
		return String(v)
	case fmt.Stringer:
		return String(v.String())
	default:
		// uint, uint64 and everything else: no lossless thrift type.
		return String(fmt.Sprintf("%+v", value))
	}
}

// Type returns the annotation type tag of v.
func (v Value) Type() AnnotationType {
	return v.typ
}

// Encode returns the big-endian binary form carried by the thrift model.
func (v Value) Encode() []byte {
	switch v.typ {
	case TypeBool:
		if v.b {
			return []byte{1}
		}
		return []byte{0}
	case TypeBytes:
		return v.raw
	case TypeInt16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v.i))
		return b
	case TypeInt32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v.i))
		return b
	case TypeInt64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v.i))
		return b
	case TypeDouble:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, math.Float64bits(v.f))
		return b
	default:
		return []byte(v.s)
	}
}

// String renders the value the way the JSON model carries it.
func (v Value) String() string {
	switch v.typ {
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeBytes:
		return base64.StdEncoding.EncodeToString(v.raw)
	case TypeInt16, TypeInt32, TypeInt64:
		return strconv.FormatInt(v.i, 10)
	case TypeDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.s
	}
}

// DecodeValue rebuilds a Value from its thrift binary form. Payloads too short
// for the announced type decode as BYTES.
func DecodeValue(t AnnotationType, b []byte) Value {
	switch t {
	case TypeBool:
		if len(b) == 1 {
			return Bool(b[0] != 0)
		}
	case TypeBytes:
		return Bytes(b)
	case TypeInt16:
		if len(b) == 2 {
			return Int16(int16(binary.BigEndian.Uint16(b)))
		}
	case TypeInt32:
		if len(b) == 4 {
			return Int32(int32(binary.BigEndian.Uint32(b)))
		}
	case TypeInt64:
		if len(b) == 8 {
			return Int64(int64(binary.BigEndian.Uint64(b)))
		}
	case TypeDouble:
		if len(b) == 8 {
			return Double(math.Float64frombits(binary.BigEndian.Uint64(b)))
		}
	default:
		return String(string(b))
	}
	return Bytes(b)
}
