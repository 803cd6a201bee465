// internal/services/indexing_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/printforge/marketplace-backend/internal/models"
)

// ListingReader is the slice of the database the indexing worker needs.
type ListingReader interface {
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	MarkListingIndexed(ctx context.Context, id uuid.UUID, at time.Time) error
}

type gormListingReader struct {
	db *gorm.DB
}

func NewListingReader(db *gorm.DB) ListingReader {
	return &gormListingReader{db: db}
}

func (r *gormListingReader) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *gormListingReader) MarkListingIndexed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Update("last_indexed_at", at).Error
}

// IndexingService turns listing rows into search documents. Its error
// contract drives ack/nack at the bus layer: nil means done or permanently
// unprocessable, an error means retry.
type IndexingService struct {
	reader         ListingReader
	indexer        SearchIndexer
	publicFilesURL string
}

func NewIndexingService(reader ListingReader, indexer SearchIndexer, publicFilesURL string) *IndexingService {
	return &IndexingService{
		reader:         reader,
		indexer:        indexer,
		publicFilesURL: publicFilesURL,
	}
}

// HandleIndexEvent is the bus-facing entry point. A payload that does not
// parse is a poison pill: log and swallow so the bus never redelivers it.
func (s *IndexingService) HandleIndexEvent(ctx context.Context, payload []byte) error {
	var evt models.IndexListingEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		logrus.WithFields(logrus.Fields{
			"error":   err,
			"payload": string(payload),
		}).Error("Discarding malformed index event")
		return nil
	}

	return s.IndexListing(ctx, evt.ListingID)
}

func (s *IndexingService) IndexListing(ctx context.Context, listingID string) error {
	log := logrus.WithField("listing_id", listingID)
	log.Info("Indexing listing")

	id, err := uuid.Parse(listingID)
	if err != nil {
		// This id will never become valid; discard.
		log.Error("Invalid listing id, discarding")
		return nil
	}

	listing, err := s.reader.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Deleted between publish and delivery; nothing to index.
			log.Warn("Listing not found, skipping index")
			return nil
		}

		log.WithError(err).Error("Failed to fetch listing")
		return err
	}

	if listing.ThumbnailPath == nil || *listing.ThumbnailPath == "" {
		log.Warn("Listing has no thumbnail, cannot index")
		return nil
	}

	document := s.buildDocument(listingID, listing)

	if err := s.indexer.UpsertListing(ctx, document); err != nil {
		// Search engine unavailable; retry via redelivery.
		log.WithError(err).Error("Failed to upsert listing document")
		return err
	}

	if err := s.reader.MarkListingIndexed(ctx, id, time.Now().UTC()); err != nil {
		log.WithError(err).Error("Failed to record index timestamp")
		return err
	}

	log.Info("Listing indexed")
	return nil
}

func (s *IndexingService) buildDocument(listingID string, listing *models.Listing) map[string]interface{} {
	thumbnailURL := strings.TrimRight(s.publicFilesURL, "/") + "/" + strings.TrimLeft(*listing.ThumbnailPath, "/")

	var dimX, dimY, dimZ *int
	if listing.DimensionsMM != nil {
		x, y, z := listing.DimensionsMM.Width, listing.DimensionsMM.Depth, listing.DimensionsMM.Height
		dimX, dimY, dimZ = &x, &y, &z
	}

	var parentID *string
	if listing.ParentListingID != nil {
		id := listing.ParentListingID.String()
		parentID = &id
	}

	var saleEnd *int64
	if listing.SaleEndTimestamp != nil {
		ts := listing.SaleEndTimestamp.Unix()
		saleEnd = &ts
	}

	return map[string]interface{}{
		"id":            listingID,
		"title":         listing.Title,
		"description":   listing.Description,
		"thumbnail_url": thumbnailURL,
		"categories":    []string(listing.Categories),
		"license":       listing.License,

		// Filled in once mesh analysis lands in the validation pipeline.
		"is_manifold":  false,
		"file_formats": []string{"stl"},

		"status":  string(listing.Status),
		"is_free": listing.PriceMinUnit == 0,

		"is_physical":        listing.IsPhysical,
		"dim_x_mm":           dimX,
		"dim_y_mm":           dimY,
		"dim_z_mm":           dimZ,
		"total_weight_grams": listing.TotalWeightGrams,

		"is_assembly_required":      listing.IsAssemblyRequired,
		"is_hardware_required":      listing.IsHardwareRequired,
		"hardware_required":         []string(listing.HardwareRequired),
		"recommended_materials":     []string(listing.RecommendedMaterials),
		"is_multicolor":             listing.IsMulticolor,
		"recommended_nozzle_temp_c": listing.RecommendedNozzleTempC,
		"print_time_minutes":        listing.PrintTimeMinutes,

		"is_nsfw": listing.IsNSFW,

		"is_ai_generated": listing.IsAIGenerated,
		"ai_model_name":   listing.AIModelName,

		"parent_listing_id": parentID,
		"is_remix_allowed":  listing.IsRemixingAllowed,

		"likes_count":     listing.LikesCount,
		"downloads_count": listing.DownloadsCount,
		"comments_count":  listing.CommentsCount,

		"price_min_unit":     listing.PriceMinUnit,
		"sale_price":         listing.SalePrice,
		"sale_end_timestamp": saleEnd,
		"is_sale_active":     listing.IsSaleActive,
		"sale_name":          listing.SaleName,
		"currency":           listing.Currency,

		"seller_id":       listing.SellerID.String(),
		"seller_name":     listing.SellerName,
		"seller_username": listing.SellerUsername,
		"seller_verified": listing.SellerVerified,

		"created_at": listing.CreatedAt.Unix(),
		"updated_at": listing.UpdatedAt.Unix(),
	}
}
