// internal/services/search_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/typesense/typesense-go/typesense"

	"github.com/printforge/marketplace-backend/internal/config"
)

// listingsCollection is provisioned out of band by the schema migration job.
const listingsCollection = "listings"

// SearchIndexer is the search engine surface the indexing worker writes to.
type SearchIndexer interface {
	UpsertListing(ctx context.Context, document map[string]interface{}) error
	DeleteListing(ctx context.Context, listingID string) error
	HealthCheck(ctx context.Context) error
}

type TypesenseIndexer struct {
	client *typesense.Client
}

var _ SearchIndexer = (*TypesenseIndexer)(nil)

func NewTypesenseIndexer(cfg config.SearchConfig) *TypesenseIndexer {
	client := typesense.NewClient(
		typesense.WithServer(cfg.TypesenseURL),
		typesense.WithAPIKey(cfg.TypesenseAPIKey),
	)
	return &TypesenseIndexer{client: client}
}

func (t *TypesenseIndexer) UpsertListing(ctx context.Context, document map[string]interface{}) error {
	_, err := t.client.Collection(listingsCollection).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("typesense upsert failed: %w", err)
	}
	return nil
}

func (t *TypesenseIndexer) DeleteListing(ctx context.Context, listingID string) error {
	_, err := t.client.Collection(listingsCollection).Document(listingID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("typesense delete failed: %w", err)
	}
	return nil
}

func (t *TypesenseIndexer) HealthCheck(ctx context.Context) error {
	healthy, err := t.client.Health(ctx, 5*time.Second)
	if err != nil {
		return fmt.Errorf("typesense health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("typesense is unhealthy")
	}
	return nil
}
