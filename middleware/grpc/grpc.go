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

// Package grpc provides unary gRPC interceptors recording Zipkin spans and
// propagating B3 headers over gRPC metadata.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

// MetadataCarrier reads and writes B3 headers on gRPC metadata.
type MetadataCarrier metadata.MD

// Get implements b3.Getter.
func (c MetadataCarrier) Get(key string) string {
	if values := metadata.MD(c).Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// Set implements b3.Setter. gRPC rejects upper case keys, metadata.MD.Set
// lowercases them.
func (c MetadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

type options struct {
	logger zipkintracer.Logger
}

// Option configures the interceptors.
type Option func(*options)

// Logger sets the logger calls that cannot be traced are reported to.
func Logger(logger zipkintracer.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) *options {
	o := &options{logger: zipkintracer.NewNopLogger()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// UnaryServerInterceptor records a server span named after the full method
// of every call and stores its TraceContext in the handler context.
func UnaryServerInterceptor(tracer *zipkintracer.Tracer, provider *zipkintracer.ContextProvider, opts ...Option) grpc.UnaryServerInterceptor {
	o := newOptions(opts)
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		tc, err := provider.Create(ctx, MetadataCarrier(md), info.FullMethod)
		if err != nil {
			_ = o.logger.Log("msg", "call not traced", "err", err, "method", info.FullMethod)
			return handler(ctx, req)
		}
		span, err := tracer.ReceiveServerSpan(info.FullMethod, tc, info.FullMethod)
		if err != nil {
			_ = o.logger.Log("msg", "call not traced", "err", err, "method", info.FullMethod)
			return handler(ctx, req)
		}

		resp, err := handler(zipkintracer.NewContext(ctx, tc), req)
		recordStatus(tracer, span, err)
		if sendErr := tracer.SendServerSpan(span); sendErr != nil {
			_ = o.logger.Log("msg", "span not sent", "err", sendErr)
		}
		return resp, err
	}
}

// UnaryClientInterceptor records a client span for every call made within a
// traced context and sends the B3 headers of that span as metadata.
func UnaryClientInterceptor(tracer *zipkintracer.Tracer, opts ...Option) grpc.UnaryClientInterceptor {
	o := newOptions(opts)
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		callOpts ...grpc.CallOption,
	) error {
		parent, ok := zipkintracer.FromContext(ctx)
		if !ok {
			return invoker(ctx, method, req, reply, cc, callOpts...)
		}

		tc := parent.GetNext()
		span, err := tracer.SendClientSpan(method, tc, remoteURI(cc, method))
		if err != nil {
			_ = o.logger.Log("msg", "call not traced", "err", err, "method", method)
			return invoker(ctx, method, req, reply, cc, callOpts...)
		}

		md, _ := metadata.FromOutgoingContext(ctx)
		md = md.Copy()
		tc.Inject(MetadataCarrier(md))

		err = invoker(metadata.NewOutgoingContext(ctx, md), method, req, reply, cc, callOpts...)
		recordStatus(tracer, span, err)
		// the status code annotation carries the numeric gRPC code
		if recvErr := tracer.ReceiveClientSpan(span, int(status.Code(err))); recvErr != nil {
			_ = o.logger.Log("msg", "span not sent", "err", recvErr)
		}
		return err
	}
}

func recordStatus(tracer *zipkintracer.Tracer, span *models.Span, err error) {
	_ = tracer.RecordBinary(span, "grpc.status_code", status.Code(err).String())
	if err != nil {
		_ = tracer.RecordBinary(span, "error", err.Error())
	}
}

// remoteURI renders the call as a URI the tracer can derive the remote
// endpoint from. Targets with a resolver scheme only yield the method.
func remoteURI(cc *grpc.ClientConn, method string) string {
	if cc == nil || strings.Contains(cc.Target(), "://") {
		return method
	}
	return "grpc://" + cc.Target() + method
}
