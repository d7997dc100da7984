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
	"fmt"

	"go.uber.org/zap"
)

// Logger is the fundamental logging interface: a single method taking
// alternating keys and values.
type Logger interface {
	Log(keyvals ...interface{}) error
}

// LoggerFunc is an adapter to allow use of ordinary functions as Loggers.
type LoggerFunc func(...interface{}) error

// Log implements Logger.
func (f LoggerFunc) Log(keyvals ...interface{}) error {
	return f(keyvals...)
}

type nopLogger struct{}

func (nopLogger) Log(...interface{}) error { return nil }

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger { return nopLogger{} }

type zapLogger struct {
	l *zap.Logger
}

// NewZapLogger adapts a zap logger. The "msg" key becomes the entry message
// and entries carrying an "err" key are logged at warn level.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return zapLogger{l: l.WithOptions(zap.AddCallerSkip(1))}
}

func (z zapLogger) Log(keyvals ...interface{}) error {
	var (
		msg    string
		fields = make([]zap.Field, 0, len(keyvals)/2+1)
		failed bool
	)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 == len(keyvals) {
			fields = append(fields, zap.Any(key, "(MISSING)"))
			break
		}
		value := keyvals[i+1]
		switch key {
		case "msg":
			msg = fmt.Sprint(value)
			continue
		case "err":
			failed = true
			if err, ok := value.(error); ok {
				fields = append(fields, zap.Error(err))
				continue
			}
		}
		fields = append(fields, zap.Any(key, value))
	}
	if failed {
		z.l.Warn(msg, fields...)
	} else {
		z.l.Info(msg, fields...)
	}
	return nil
}
