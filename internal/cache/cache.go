package cache

import (
	"context"
	"time"

	"kasirpos/internal/domain"
)

// CatalogPage is one cached product listing page together with its total
// row count, so pagination metadata survives the cache round trip.
type CatalogPage struct {
	Products []domain.Product `json:"products"`
	Total    int64            `json:"total"`
}

// CatalogCache holds short-lived product listing pages. Invalidate drops
// every cached page; product mutations call it.
type CatalogCache interface {
	Get(ctx context.Context, key string) (*CatalogPage, bool, error)
	Set(ctx context.Context, key string, value *CatalogPage, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) Get(_ context.Context, _ string) (*CatalogPage, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) Set(_ context.Context, _ string, _ *CatalogPage, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) Invalidate(_ context.Context) error {
	return nil
}
