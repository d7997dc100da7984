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

// Package zipkinfx wires the tracing pipeline into an fx application.
package zipkinfx

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
	"github.com/openzipkin-contrib/zipkin-go-collector/config"
)

// Module provides *config.Pipeline, *zipkintracer.Tracer and
// *zipkintracer.ContextProvider. The collector starts with the application
// and its queue is flushed when the application stops.
//
// A config.Config must be supplied by the application, e.g.
//
//	fx.New(
//	    zipkinfx.Module,
//	    fx.Provide(config.Load),
//	)
//
// *zap.Logger and prometheus.Registerer are optional.
var Module = fx.Module("zipkin",
	fx.Provide(
		NewPipeline,
		func(p *config.Pipeline) *zipkintracer.Tracer { return p.Tracer },
		func(p *config.Pipeline) *zipkintracer.ContextProvider { return p.Provider },
	),
	fx.Invoke(RegisterLifecycle),
)

// Params are the dependencies of NewPipeline.
type Params struct {
	fx.In

	Config     config.Config
	Logger     *zap.Logger           `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// NewPipeline builds the pipeline with config.Setup, so a broken tracing
// setup never keeps the application from starting.
func NewPipeline(p Params) *config.Pipeline {
	return config.Setup(p.Config, zipkintracer.NewZapLogger(p.Logger), p.Registerer)
}

// RegisterLifecycle starts the collector on application start and stops it,
// flushing pending spans, on application stop.
func RegisterLifecycle(lc fx.Lifecycle, p *config.Pipeline) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			done := make(chan error, 1)
			go func() { done <- p.Stop() }()
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
