package cache

import (
	"context"
	"time"

	"kisanpos/backend/internal/domain"
)

// CustomerCache fronts the customer table for the billing screen's
// mobile-number lookup. Misses and cache errors both fall through to
// the store.
type CustomerCache interface {
	Get(ctx context.Context, mobile string) (*domain.Customer, bool, error)
	Set(ctx context.Context, customer *domain.Customer, ttl time.Duration) error
	Invalidate(ctx context.Context, mobile string) error
}

type NoopCustomerCache struct{}

func (NoopCustomerCache) Get(_ context.Context, _ string) (*domain.Customer, bool, error) {
	return nil, false, nil
}

func (NoopCustomerCache) Set(_ context.Context, _ *domain.Customer, _ time.Duration) error {
	return nil
}

func (NoopCustomerCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
