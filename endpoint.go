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
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/openzipkin-contrib/zipkin-go-collector/models"
)

// NewEndpoint takes the hostport and service name that represent this Zipkin
// service and returns the local endpoint recorded on its annotations. An
// empty or unspecified host resolves to the first non-loopback IPv4 address
// of the machine.
func NewEndpoint(hostport, serviceName string) (models.Endpoint, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return models.Endpoint{}, errors.Wrapf(err, "invalid host port %q", hostport)
	}

	portInt, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return models.Endpoint{}, errors.Wrapf(err, "invalid port %q", port)
	}

	var ip net.IP
	if host == "" || host == "0.0.0.0" {
		ip = localIPv4()
	} else {
		addrs, err := net.LookupIP(host)
		if err != nil {
			return models.Endpoint{}, errors.Wrapf(err, "resolving %q", host)
		}
		ip = firstIPv4(addrs)
	}

	return models.Endpoint{
		ServiceName: strings.ToLower(serviceName),
		IPv4:        ip,
		Port:        uint16(portInt),
	}, nil
}

func firstIPv4(addrs []net.IP) net.IP {
	for _, addr := range addrs {
		if ip4 := addr.To4(); ip4 != nil {
			return ip4
		}
	}
	// IPv6 only, recorded as unknown
	return nil
}

func localIPv4() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4
		}
	}
	return nil
}

// remoteResolver builds the endpoints of outbound calls. Host lookups are
// cached for the life of the resolver.
type remoteResolver struct {
	lookupIP func(host string) ([]net.IP, error)
	suffixes []string
	cache    sync.Map // host -> net.IP
}

func newRemoteResolver(lookupIP func(string) ([]net.IP, error), notToBeDisplayed []string) *remoteResolver {
	if lookupIP == nil {
		lookupIP = net.LookupIP
	}
	r := &remoteResolver{lookupIP: lookupIP}
	for _, suffix := range notToBeDisplayed {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if suffix == "" {
			continue
		}
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		r.suffixes = append(r.suffixes, suffix)
	}
	return r
}

// resolve returns the endpoint of remoteURI's host and the request path.
func (r *remoteResolver) resolve(remoteURI string) (models.Endpoint, string) {
	u, err := url.Parse(remoteURI)
	if err != nil || u.Host == "" {
		return models.Endpoint{}, remoteURI
	}

	host := strings.ToLower(u.Hostname())
	var port uint64
	if p := u.Port(); p != "" {
		port, _ = strconv.ParseUint(p, 10, 16)
	} else if u.Scheme == "https" {
		port = 443
	} else {
		port = 80
	}

	return models.Endpoint{
		ServiceName: r.serviceName(host),
		IPv4:        r.ip(host),
		Port:        uint16(port),
	}, u.Path
}

// serviceName trims the first matching not-to-be-displayed domain suffix so
// that services sharing a domain keep distinct names.
func (r *remoteResolver) serviceName(host string) string {
	for _, suffix := range r.suffixes {
		if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return host[:len(host)-len(suffix)]
		}
	}
	return host
}

func (r *remoteResolver) ip(host string) net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4()
	}
	if cached, ok := r.cache.Load(host); ok {
		return cached.(net.IP)
	}
	addrs, err := r.lookupIP(host)
	if err != nil {
		// failed lookups are retried on the next span
		return nil
	}
	ip := firstIPv4(addrs)
	r.cache.Store(host, ip)
	return ip
}
