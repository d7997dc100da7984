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
	"context"
)

// Transport delivers serialized batches to a trace backend. Send is only
// ever called from the collector's worker. Close must be idempotent.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Opener is implemented by transports that acquire resources before the
// first Send. The collector opens them at construction.
type Opener interface {
	Open() error
}

// NopTransport discards every batch.
type NopTransport struct{}

// Send implements Transport.
func (NopTransport) Send(context.Context, []byte) error { return nil }

// Close implements Transport.
func (NopTransport) Close() error { return nil }
