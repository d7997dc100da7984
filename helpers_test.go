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
	"errors"
	"time"

	"github.com/zoobzio/clockz"
)

func eventually(what func() bool, failAfter time.Duration) error {
	deadline := time.Now().Add(failAfter)
	for time.Now().Before(deadline) {
		if what() {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return errors.New("failed to satisfy condition")
}

// signalClock reports every wait the code under test registers, so tests
// can advance a fake clock only once the worker is waiting on it.
type signalClock struct {
	clockz.Clock
	waits chan time.Duration
}

func newSignalClock(clock clockz.Clock) signalClock {
	return signalClock{Clock: clock, waits: make(chan time.Duration, 100)}
}

func (c signalClock) After(d time.Duration) <-chan time.Time {
	ch := c.Clock.After(d)
	c.waits <- d
	return ch
}

func (c signalClock) nextWait(timeout time.Duration) (time.Duration, bool) {
	select {
	case d := <-c.waits:
		return d, true
	case <-time.After(timeout):
		return 0, false
	}
}
