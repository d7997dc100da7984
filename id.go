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
	"strconv"

	"github.com/openzipkin/zipkin-go/idgenerator"
	"github.com/openzipkin/zipkin-go/model"
)

var (
	ids64  = idgenerator.NewRandom64()
	ids128 = idgenerator.NewRandom128()
)

func newTraceID(traceID128Bit bool) model.TraceID {
	for {
		var id model.TraceID
		if traceID128Bit {
			id = ids128.TraceID()
		} else {
			id = ids64.TraceID()
		}
		if !id.Empty() {
			return id
		}
	}
}

// newSpanID returns a random non-zero id different from not.
func newSpanID(not model.ID) model.ID {
	for {
		// An empty trace id makes the generator draw instead of reusing
		// the trace id.
		id := ids64.SpanID(model.TraceID{})
		if id != 0 && id != not {
			return id
		}
	}
}

// parseTraceID accepts exactly 16 (64-bit) or 32 (128-bit) hex characters.
func parseTraceID(s string) (model.TraceID, bool) {
	switch len(s) {
	case 16:
		low, ok := parseHex64(s)
		if !ok {
			return model.TraceID{}, false
		}
		id := model.TraceID{Low: low}
		return id, !id.Empty()
	case 32:
		high, ok := parseHex64(s[:16])
		if !ok {
			return model.TraceID{}, false
		}
		low, ok := parseHex64(s[16:])
		if !ok {
			return model.TraceID{}, false
		}
		id := model.TraceID{High: high, Low: low}
		return id, !id.Empty()
	}
	return model.TraceID{}, false
}

// parseID accepts exactly 16 hex characters.
func parseID(s string) (model.ID, bool) {
	if len(s) != 16 {
		return 0, false
	}
	v, ok := parseHex64(s)
	if !ok || v == 0 {
		return 0, false
	}
	return model.ID(v), true
}

func parseHex64(s string) (uint64, bool) {
	v, err := strconv.ParseUint(s, 16, 64)
	return v, err == nil
}
