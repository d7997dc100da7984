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
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedSource int64

func (s fixedSource) Int63() int64 { return int64(s) }
func (s fixedSource) Seed(int64) {}

func TestSamplerRejectsRate(t *testing.T) {
	for _, rate := range []float64{-0.1, 1.01, 42} {
		_, err := NewSampler(rate, nil)
		assert.ErrorIs(t, err, ErrInvalidSampleRate, "rate %v", rate)
	}
	_, err := NewSampler(0.5, []string{"/health", "  "})
	assert.ErrorIs(t, err, ErrInvalidExcludedPath)
}

func TestSamplerBounds(t *testing.T) {
	always := AlwaysSample()
	never := NeverSample()
	for _, path := range []string{"", "/", "/api/orders", "/HEALTH"} {
		assert.True(t, always.ShouldSample(path), path)
		assert.False(t, never.ShouldSample(path), path)
	}
}

func TestSamplerExcludedPaths(t *testing.T) {
	s, err := NewSampler(1, []string{"/health", "/Static/"})
	assert.NoError(t, err)

	for path, want := range map[string]bool{
		"/health":         false,
		"/HEALTH/live":    false,
		"/static/app.js":  false,
		"/api/health":     true,
		"/statics/app.js": true,
		"/":               true,
	} {
		if have := s.ShouldSample(path); want != have {
			t.Errorf("%s: want %v, have %v", path, want, have)
		}
	}
}

func TestSamplerDraw(t *testing.T) {
	half, err := NewSampler(0.5, nil, WithRandSource(fixedSource(1<<62)))
	assert.NoError(t, err)
	assert.True(t, half.ShouldSample("/"), "draw equal to the rate is sampled")

	above, err := NewSampler(0.5, nil, WithRandSource(fixedSource(3<<61)))
	assert.NoError(t, err)
	assert.False(t, above.ShouldSample("/"))
	assert.Equal(t, 0.5, above.Rate())
}
