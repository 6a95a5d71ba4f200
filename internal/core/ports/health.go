package ports

import "context"

// HealthChecker is implemented by every external dependency reported on /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	// Name is the key under which the dependency is reported.
	Name() string
}
