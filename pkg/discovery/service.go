// Package discovery announces and finds Arciva backends on the local network
// via mDNS. The importer uses it to locate a development stub server without
// configuration; production deployments pass --server explicitly.
package discovery

import (
	"context"
	"net"
)

const (
	DefaultServiceType = "_arciva._tcp"
	DefaultDomain      = "local"
)

// ServiceInfo describes one announced backend instance.
type ServiceInfo struct {
	Name   string // instance name
	Type   string // service type, e.g. "_arciva._tcp"
	Domain string // domain, e.g. "local"
	Addr   net.IP
	Port   int
}

// DiscoveryResult carries either a service snapshot or a lookup error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

// Adapter abstracts the mDNS implementation so the app and tests can swap in
// doubles.
type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}
