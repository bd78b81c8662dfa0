package discovery

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAdapter replays a fixed sequence of discovery results.
type scriptedAdapter struct {
	results []DiscoveryResult
}

func (a *scriptedAdapter) Announce(ctx context.Context, service ServiceInfo) error {
	return nil
}

func (a *scriptedAdapter) Discover(ctx context.Context, service string) <-chan DiscoveryResult {
	ch := make(chan DiscoveryResult, len(a.results))
	for _, r := range a.results {
		ch <- r
	}
	close(ch)
	return ch
}

func TestResolveBackendPicksFirstAnnounced(t *testing.T) {
	adapter := &scriptedAdapter{results: []DiscoveryResult{
		{Services: nil}, // empty snapshot before anything answers
		{Services: []ServiceInfo{
			{Name: "stub-one", Addr: net.IPv4(192, 168, 1, 20), Port: 8870},
			{Name: "stub-two", Addr: net.IPv4(192, 168, 1, 21), Port: 9000},
		}},
	}}

	url, err := ResolveBackend(context.Background(), adapter)
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:8870", url)
}

func TestResolveBackendNoneFound(t *testing.T) {
	adapter := &scriptedAdapter{results: []DiscoveryResult{{Services: nil}}}

	_, err := ResolveBackend(context.Background(), adapter)
	assert.ErrorIs(t, err, ErrNoBackendFound)
}

func TestResolveBackendSurfacesLookupError(t *testing.T) {
	lookupErr := errors.New("mDNS lookup failed")
	adapter := &scriptedAdapter{results: []DiscoveryResult{{Error: lookupErr}}}

	_, err := ResolveBackend(context.Background(), adapter)
	assert.ErrorIs(t, err, lookupErr)
}
