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
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zoobzio/clockz"
)

const (
	defaultTaskInterval   = time.Second
	defaultTaskErrorDelay = 10 * time.Second
	maxErrorDelayFactor   = 6
	taskLogErrorInterval  = time.Minute
)

// TaskRunner runs an action repeatedly on a background goroutine until it is
// stopped. Errors and panics of the action are logged and delay the next
// run; they never end the loop.
type TaskRunner struct {
	clock      clockz.Clock
	interval   time.Duration
	errorDelay time.Duration
	logger     *StateLogger

	mtx     sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// TaskOption sets an optional parameter of the TaskRunner.
type TaskOption func(r *TaskRunner)

// TaskInterval sets the delay between two successful runs. The default is
// one second.
func TaskInterval(d time.Duration) TaskOption {
	return func(r *TaskRunner) { r.interval = d }
}

// TaskErrorDelay sets the delay after a failed run. Consecutive failures
// double it up to six times its value. The default is ten seconds.
func TaskErrorDelay(d time.Duration) TaskOption {
	return func(r *TaskRunner) { r.errorDelay = d }
}

// TaskClock sets the clock the runner waits on.
func TaskClock(clock clockz.Clock) TaskOption {
	return func(r *TaskRunner) { r.clock = clock }
}

// TaskLogger sets the logger reporting failed runs.
func TaskLogger(logger Logger) TaskOption {
	return func(r *TaskRunner) { r.logger = NewStateLogger(logger, taskLogErrorInterval) }
}

// NewTaskRunner returns a stopped TaskRunner.
func NewTaskRunner(options ...TaskOption) *TaskRunner {
	r := &TaskRunner{
		clock:      clockz.RealClock,
		interval:   defaultTaskInterval,
		errorDelay: defaultTaskErrorDelay,
		logger:     NewStateLogger(NewNopLogger(), taskLogErrorInterval),
	}
	for _, option := range options {
		option(r)
	}
	r.done = make(chan struct{})
	close(r.done)
	return r
}

// Start spawns the worker running action. It is a no-op returning false
// while a worker is running.
func (r *TaskRunner) Start(action func() error) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.running {
		return false
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.done = make(chan struct{})
	go r.loop(r.ctx, r.done, action)
	return true
}

// Stop signals cancellation without waiting for the worker to exit.
func (r *TaskRunner) Stop() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// IsCancelled reports whether Stop was called on the current worker.
func (r *TaskRunner) IsCancelled() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.ctx != nil && r.ctx.Err() != nil
}

// Done is closed once the current worker exited. It is closed already when
// no worker was started.
func (r *TaskRunner) Done() <-chan struct{} {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.done
}

func (r *TaskRunner) loop(ctx context.Context, done chan struct{}, action func() error) {
	defer func() {
		r.mtx.Lock()
		r.running = false
		r.mtx.Unlock()
		close(done)
	}()

	errBackOff := r.newErrorBackOff()
	for ctx.Err() == nil {
		delay := r.interval
		if err := invoke(action); err != nil {
			delay = errBackOff.NextBackOff()
			r.logger.LogError(err, "msg", "background task failed", "retry_in", delay)
		} else {
			errBackOff.Reset()
			r.logger.Fixed("msg", "background task recovered")
		}

		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(delay):
		}
	}
}

func (r *TaskRunner) newErrorBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.errorDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = r.errorDelay * maxErrorDelayFactor
	b.MaxElapsedTime = 0
	b.Clock = r.clock
	b.Reset()
	return b
}

func invoke(action func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("background task panicked: %v", rec)
		}
	}()
	return action()
}
