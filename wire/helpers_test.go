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
	"net"

	"github.com/openzipkin/zipkin-go/model"

	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

func newTestSpan() *models.Span {
	parent := model.ID(0x1234)
	duration := int64(150)
	host := models.Endpoint{ServiceName: "orders", IPv4: net.ParseIP("10.1.2.3"), Port: 8080}
	return &models.Span{
		TraceID:  model.TraceID{Low: 0xabc},
		ID:       0x5678,
		ParentID: &parent,
		Name:     "get",
		Annotations: []models.Annotation{
			{Endpoint: host, Timestamp: 1000, Value: models.ServerRecv},
			{Endpoint: host, Timestamp: 1150, Value: models.ServerSend, Duration: &duration},
		},
		BinaryAnnotations: []models.BinaryAnnotation{
			{Endpoint: host, Key: "http.uri", Value: models.String("/orders")},
			{Endpoint: host, Key: "http.status_code", Value: models.Int32(200)},
			{Endpoint: host, Key: "cache.hit", Value: models.Bool(true)},
		},
	}
}
