// Package health aggregates readiness checks for the service dependencies.
package health

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// pinger is the consumer interface for store liveness (ISP).
type pinger interface {
	Ping(ctx context.Context) error
}

// Status is the health of one dependency.
type Status struct {
	Name  string
	OK    bool
	Error string
}

// Service checks the store and the embedding provider.
type Service struct {
	store    pinger
	provider domain.HealthChecker
}

// New creates the health service. provider may be nil when provider checks
// are not wanted on the health path.
func New(store pinger, provider domain.HealthChecker) *Service {
	return &Service{store: store, provider: provider}
}

// Check runs all dependency checks. The boolean is true only when every
// dependency is healthy.
func (s *Service) Check(ctx context.Context) ([]Status, bool) {
	var statuses []Status
	ok := true

	storeStatus := Status{Name: "store", OK: true}
	if err := s.store.Ping(ctx); err != nil {
		storeStatus.OK = false
		storeStatus.Error = err.Error()
		ok = false
	}
	statuses = append(statuses, storeStatus)

	if s.provider != nil {
		provStatus := Status{Name: "embedding_provider", OK: true}
		if err := s.provider.HealthCheck(ctx); err != nil {
			provStatus.OK = false
			provStatus.Error = err.Error()
			ok = false
		}
		statuses = append(statuses, provStatus)
	}

	return statuses, ok
}
