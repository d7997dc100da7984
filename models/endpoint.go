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

package models

import (
	"encoding/binary"
	"net"
	"strconv"
)

// Endpoint identifies the host an annotation was recorded on.
type Endpoint struct {
	ServiceName string
	IPv4        net.IP
	Port        uint16
}

// IPv4Int returns the address as the big-endian int32 used by the thrift
// model, or 0 when no IPv4 address is known.
func (e Endpoint) IPv4Int() int32 {
	ip := e.IPv4.To4()
	if ip == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(ip))
}

// IPv4String renders the address in dotted form, "0.0.0.0" when unknown.
func (e Endpoint) IPv4String() string {
	ip := e.IPv4.To4()
	if ip == nil {
		return "0.0.0.0"
	}
	return ip.String()
}

// Empty reports whether no field of the endpoint is set.
func (e Endpoint) Empty() bool {
	return e.ServiceName == "" && e.IPv4 == nil && e.Port == 0
}

func (e Endpoint) String() string {
	return e.ServiceName + "@" + net.JoinHostPort(e.IPv4String(), strconv.Itoa(int(e.Port)))
}
