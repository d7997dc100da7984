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
	"net"
	"sync"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/pkg/errors"

	"github.com/openzipkin-contrib/zipkin-go-collector/wire"
)

const defaultScribeTimeout = 5 * time.Second

// ScribeTransport implements Transport with the Scribe Log RPC over a framed
// binary thrift connection. Batches must be framed by wire.Scribe. The
// connection is dropped on any I/O error and re-established by the next
// Send.
type ScribeTransport struct {
	addr     string
	category string
	timeout  time.Duration

	mtx    sync.Mutex
	trans  thrift.TTransport
	proto  thrift.TProtocol
	seqID  int32
	closed bool
}

// ScribeOption sets a parameter for the ScribeTransport.
type ScribeOption func(t *ScribeTransport)

// ScribeCategory sets the Scribe category. The default is "zipkin".
func ScribeCategory(category string) ScribeOption {
	return func(t *ScribeTransport) { t.category = category }
}

// ScribeTimeout sets the connect and socket timeout.
func ScribeTimeout(d time.Duration) ScribeOption {
	return func(t *ScribeTransport) { t.timeout = d }
}

// NewScribeTransport returns a transport logging to the Scribe server at
// addr (host:port). No connection is made until Open or the first Send.
func NewScribeTransport(addr string, options ...ScribeOption) (*ScribeTransport, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, errors.Wrapf(err, "invalid scribe address %q", addr)
	}
	t := &ScribeTransport{
		addr:     addr,
		category: wire.ScribeCategory,
		timeout:  defaultScribeTimeout,
	}
	for _, option := range options {
		option(t)
	}
	return t, nil
}

// Open implements Opener by connecting eagerly.
func (t *ScribeTransport) Open() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.proto != nil {
		return nil
	}
	return t.connect()
}

// Send implements Transport.
func (t *ScribeTransport) Send(ctx context.Context, payload []byte) error {
	messages := wire.SplitScribe(payload)
	if len(messages) == 0 {
		return nil
	}

	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.closed {
		return errors.New("scribe transport closed")
	}
	if t.proto == nil {
		if err := t.connect(); err != nil {
			return err
		}
	}

	code, err := t.log(ctx, messages)
	if err != nil {
		t.disconnect()
		return errors.Wrap(err, "scribe log failed")
	}
	if code == wire.ScribeTryLater {
		return errors.New("scribe log failed: server asked to try later")
	}
	return nil
}

func (t *ScribeTransport) log(ctx context.Context, messages []string) (int32, error) {
	t.seqID++
	if err := wire.WriteScribeLog(ctx, t.proto, t.seqID, t.category, messages); err != nil {
		return 0, err
	}
	return wire.ReadScribeResult(ctx, t.proto, t.seqID)
}

// Close implements Transport.
func (t *ScribeTransport) Close() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.closed = true
	return t.disconnect()
}

func (t *ScribeTransport) connect() error {
	conn, err := net.DialTimeout("tcp", t.addr, t.timeout)
	if err != nil {
		return errors.Wrapf(err, "connecting to scribe at %s", t.addr)
	}
	conf := &thrift.TConfiguration{
		ConnectTimeout: t.timeout,
		SocketTimeout:  t.timeout,
	}
	t.trans = thrift.NewTFramedTransportConf(thrift.NewTSocketFromConnConf(conn, conf), conf)
	t.proto = thrift.NewTBinaryProtocolConf(t.trans, conf)
	return nil
}

func (t *ScribeTransport) disconnect() error {
	if t.trans == nil {
		return nil
	}
	err := t.trans.Close()
	t.trans, t.proto = nil, nil
	return err
}
