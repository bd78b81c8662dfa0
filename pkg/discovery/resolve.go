package discovery

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoBackendFound is returned when discovery ends without a single backend
// having announced itself.
var ErrNoBackendFound = errors.New("no backend found on the local network")

// ResolveBackend browses for announced backends and returns the base URL of
// the first one seen. It blocks until a backend appears, the lookup fails, or
// ctx ends; callers bound it with a timeout.
func ResolveBackend(ctx context.Context, adapter Adapter) (string, error) {
	service := fmt.Sprintf("%s.%s.", DefaultServiceType, DefaultDomain)
	for result := range adapter.Discover(ctx, service) {
		if result.Error != nil {
			return "", result.Error
		}
		if len(result.Services) == 0 {
			continue
		}
		svc := result.Services[0]
		return fmt.Sprintf("http://%s:%d", svc.Addr, svc.Port), nil
	}
	return "", ErrNoBackendFound
}
