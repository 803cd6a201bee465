// internal/services/indexing_service_test.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/printforge/marketplace-backend/internal/models"
)

type fakeListingReader struct {
	listings map[uuid.UUID]*models.Listing
	getErr   error
	markErr  error
	marked   []uuid.UUID
}

func newFakeReader(listings ...*models.Listing) *fakeListingReader {
	r := &fakeListingReader{listings: make(map[uuid.UUID]*models.Listing)}
	for _, l := range listings {
		r.listings[l.ID] = l
	}
	return r
}

func (r *fakeListingReader) GetListing(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	listing, ok := r.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return listing, nil
}

func (r *fakeListingReader) MarkListingIndexed(_ context.Context, id uuid.UUID, _ time.Time) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.marked = append(r.marked, id)
	return nil
}

type failingIndexer struct {
	InMemoryIndexer
	upsertErr error
}

func (f *failingIndexer) UpsertListing(ctx context.Context, doc map[string]interface{}) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.InMemoryIndexer.UpsertListing(ctx, doc)
}

func indexableListing() *models.Listing {
	thumbnail := "2026/08/25/u/d/images/thumb.png"
	listing := &models.Listing{
		SellerID:       uuid.MustParse(testUserID),
		SellerName:     "maker42@example.com",
		SellerUsername: "maker42",
		Title:          "Articulated Dragon",
		Description:    "A posable dragon print.",
		Categories:     []string{"toys"},
		License:        "CC-BY-4.0",
		PriceMinUnit:   500,
		Currency:       "usd",
		Status:         models.ListingStatusActive,
		ThumbnailPath:  &thumbnail,
		DimensionsMM:   &models.Dimensions{Width: 120, Depth: 80, Height: 95},
	}
	listing.ID = uuid.New()
	listing.CreatedAt = time.Now().Add(-time.Hour)
	listing.UpdatedAt = time.Now()
	return listing
}

func TestIndexListingSuccess(t *testing.T) {
	listing := indexableListing()
	reader := newFakeReader(listing)
	indexer := NewInMemoryIndexer()
	svc := NewIndexingService(reader, indexer, "http://cdn.local/public-files")

	err := svc.IndexListing(context.Background(), listing.ID.String())
	require.NoError(t, err)

	doc, ok := indexer.Document(listing.ID.String())
	require.True(t, ok)

	assert.Equal(t, "Articulated Dragon", doc["title"])
	assert.Equal(t, "http://cdn.local/public-files/2026/08/25/u/d/images/thumb.png", doc["thumbnail_url"])
	assert.Equal(t, testUserID, doc["seller_id"])
	assert.Equal(t, listing.CreatedAt.Unix(), doc["created_at"])

	dimX := doc["dim_x_mm"].(*int)
	require.NotNil(t, dimX)
	assert.Equal(t, 120, *dimX)

	require.Len(t, reader.marked, 1)
	assert.Equal(t, listing.ID, reader.marked[0])
}

func TestIndexListingPermanentFailuresAreSwallowed(t *testing.T) {
	listing := indexableListing()
	reader := newFakeReader(listing)
	indexer := NewInMemoryIndexer()
	svc := NewIndexingService(reader, indexer, "http://cdn.local/public-files")

	// Invalid UUID can never succeed; ack it.
	require.NoError(t, svc.IndexListing(context.Background(), "not-a-uuid"))

	// Deleted listing; nothing to index.
	require.NoError(t, svc.IndexListing(context.Background(), uuid.NewString()))

	// No thumbnail yet; the validation pipeline re-publishes once it lands.
	listing.ThumbnailPath = nil
	require.NoError(t, svc.IndexListing(context.Background(), listing.ID.String()))

	assert.Equal(t, 0, indexer.Len())
	assert.Empty(t, reader.marked)
}

func TestIndexListingTransientFailuresPropagate(t *testing.T) {
	listing := indexableListing()

	t.Run("database error", func(t *testing.T) {
		reader := newFakeReader(listing)
		reader.getErr = errors.New("connection refused")
		svc := NewIndexingService(reader, NewInMemoryIndexer(), "http://cdn.local")

		assert.Error(t, svc.IndexListing(context.Background(), listing.ID.String()))
	})

	t.Run("search engine error", func(t *testing.T) {
		reader := newFakeReader(listing)
		indexer := &failingIndexer{upsertErr: errors.New("typesense down")}
		svc := NewIndexingService(reader, indexer, "http://cdn.local")

		assert.Error(t, svc.IndexListing(context.Background(), listing.ID.String()))
		assert.Empty(t, reader.marked)
	})

	t.Run("mark indexed error", func(t *testing.T) {
		reader := newFakeReader(listing)
		reader.markErr = errors.New("connection refused")
		svc := NewIndexingService(reader, NewInMemoryIndexer(), "http://cdn.local")

		assert.Error(t, svc.IndexListing(context.Background(), listing.ID.String()))
	})
}

func TestHandleIndexEvent(t *testing.T) {
	listing := indexableListing()
	reader := newFakeReader(listing)
	indexer := NewInMemoryIndexer()
	svc := NewIndexingService(reader, indexer, "http://cdn.local/public-files")

	t.Run("poison pill is acked", func(t *testing.T) {
		require.NoError(t, svc.HandleIndexEvent(context.Background(), []byte("{ not json")))
		assert.Equal(t, 0, indexer.Len())
	})

	t.Run("well formed event indexes", func(t *testing.T) {
		payload, err := json.Marshal(models.IndexListingEvent{ListingID: listing.ID.String()})
		require.NoError(t, err)

		require.NoError(t, svc.HandleIndexEvent(context.Background(), payload))
		assert.Equal(t, 1, indexer.Len())
	})
}
