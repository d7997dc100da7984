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
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Sampler decides whether a trace without a propagated sampling decision is
// recorded.
type Sampler struct {
	rate     float64
	excluded []string

	mtx sync.Mutex
	rnd *rand.Rand
}

// SamplerOption sets an optional parameter of the Sampler.
type SamplerOption func(s *Sampler)

// WithRandSource replaces the sampler's random source.
func WithRandSource(src rand.Source) SamplerOption {
	return func(s *Sampler) { s.rnd = rand.New(src) }
}

// NewSampler returns a sampler recording the given fraction of traces and
// none whose path starts with one of excludedPaths, case-insensitively.
func NewSampler(rate float64, excludedPaths []string, options ...SamplerOption) (*Sampler, error) {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return nil, ErrInvalidSampleRate
	}
	s := &Sampler{
		rate: rate,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, p := range excludedPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, ErrInvalidExcludedPath
		}
		s.excluded = append(s.excluded, strings.ToLower(p))
	}
	for _, option := range options {
		option(s)
	}
	return s, nil
}

// AlwaysSample returns a sampler recording every trace.
func AlwaysSample() *Sampler {
	s, _ := NewSampler(1, nil)
	return s
}

// NeverSample returns a sampler recording no trace.
func NeverSample() *Sampler {
	s, _ := NewSampler(0, nil)
	return s
}

// Rate returns the configured sample rate.
func (s *Sampler) Rate() float64 { return s.rate }

// ShouldSample reports whether a trace entering at path is recorded.
func (s *Sampler) ShouldSample(path string) bool {
	if len(s.excluded) > 0 {
		lower := strings.ToLower(path)
		for _, prefix := range s.excluded {
			if strings.HasPrefix(lower, prefix) {
				return false
			}
		}
	}
	switch s.rate {
	case 0:
		return false
	case 1:
		return true
	}
	s.mtx.Lock()
	draw := s.rnd.Float64()
	s.mtx.Unlock()
	return draw <= s.rate
}
