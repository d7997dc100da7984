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

// Package wire converts spans to the representations accepted by Zipkin
// collectors.
package wire

import (
	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

// Serializer encodes spans one at a time as they leave the queue and frames
// a batch of encoded spans into a single payload.
type Serializer interface {
	Serialize(span *models.Span) ([]byte, error)
	Frame(items [][]byte) ([]byte, error)
	ContentType() string
}
