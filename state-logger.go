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
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// StateLogger is a Logger that logs an error only if logErrorInterval has
// passed since the last error, or it is a different error than the last seen.
// Errors are compared by message.
type StateLogger struct {
	logger           Logger
	clock            clockz.Clock
	logErrorInterval time.Duration
	lastError        string
	failing          bool
	lastErrorTime    time.Time
	mutex            sync.Mutex
}

// NewStateLogger creates a new StateLogger.
func NewStateLogger(logger Logger, logErrorInterval time.Duration) *StateLogger {
	return newStateLogger(logger, logErrorInterval, clockz.RealClock)
}

func newStateLogger(logger Logger, logErrorInterval time.Duration, clock clockz.Clock) *StateLogger {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &StateLogger{
		logger:           logger,
		clock:            clock,
		logErrorInterval: logErrorInterval,
	}
}

// LogError logs err, followed by keyvals, if it is different from the last
// seen error or logErrorInterval has passed since the last reported error.
func (se *StateLogger) LogError(err error, keyvals ...interface{}) {
	se.mutex.Lock()
	defer se.mutex.Unlock()
	msg := err.Error()
	if se.failing && msg == se.lastError && se.clock.Since(se.lastErrorTime) < se.logErrorInterval {
		return
	}
	se.logger.Log(append([]interface{}{"err", msg}, keyvals...)...)
	se.failing = true
	se.lastError = msg
	se.lastErrorTime = se.clock.Now()
}

// Fixed makes the StateLogger understand that the state is fixed, and when
// the next error occurs it will be logged. keyvals are logged once per
// recovery.
func (se *StateLogger) Fixed(keyvals ...interface{}) {
	se.mutex.Lock()
	defer se.mutex.Unlock()
	if !se.failing {
		return
	}
	se.failing = false
	if se.logErrorInterval == 0 {
		return
	}
	se.logger.Log(keyvals...)
}
