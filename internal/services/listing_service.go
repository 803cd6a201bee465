// internal/services/listing_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/printforge/marketplace-backend/internal/cache"
	"github.com/printforge/marketplace-backend/internal/models"
	"github.com/printforge/marketplace-backend/internal/utils"
)

// Full listing responses are cached for an hour and invalidated on update.
const ListingCacheTTL = time.Hour

const modelDownloadExpiry = 15 * time.Minute

type ListingService struct {
	db             *gorm.DB
	storage        StorageProvider
	cache          *cache.RedisClient
	events         *EventPublisher
	publicFilesURL string
}

func NewListingService(db *gorm.DB, storage StorageProvider, cacheClient *cache.RedisClient, events *EventPublisher, publicFilesURL string) *ListingService {
	return &ListingService{
		db:             db,
		storage:        storage,
		cache:          cacheClient,
		events:         events,
		publicFilesURL: publicFilesURL,
	}
}

// --- Request / response DTOs ---

type ListingDimensions struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

type ListingPrinterSettings struct {
	RecommendedMaterials   *[]string `json:"recommendedMaterials"`
	RecommendedNozzleTempC *int      `json:"recommendedNozzleTempC"`
	PrintTimeMinutes       *int      `json:"printTimeMinutes"`
	IsAssemblyRequired     bool      `json:"isAssemblyRequired"`
	IsHardwareRequired     bool      `json:"isHardwareRequired"`
	IsMulticolor           bool      `json:"isMulticolor"`
	HardwareRequired       *[]string `json:"hardwareRequired"`
}

type UpdateListingPrinterSettings struct {
	RecommendedMaterials   *[]string `json:"recommendedMaterials"`
	RecommendedNozzleTempC *int      `json:"recommendedNozzleTempC"`
	PrintTimeMinutes       *int      `json:"printTimeMinutes"`
	IsAssemblyRequired     *bool     `json:"isAssemblyRequired"`
	IsHardwareRequired     *bool     `json:"isHardwareRequired"`
	IsMulticolor           *bool     `json:"isMulticolor"`
	HardwareRequired       *[]string `json:"hardwareRequired"`
}

type CreateListingFile struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type CreateListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	License     string   `json:"license"`

	PriceMinUnit int64  `json:"price_min_unit"`
	Currency     string `json:"currency"`
	IsFree       bool   `json:"isFree"`

	PrinterSettings ListingPrinterSettings `json:"printerSettings"`
	Dimensions      *ListingDimensions     `json:"dimensions"`

	IsNSFW     bool `json:"isNSFW"`
	IsPhysical bool `json:"isPhysical"`

	IsAIGenerated bool    `json:"isAIGenerated"`
	AIModelName   *string `json:"aiModelName"`

	IsRemixingAllowed bool `json:"isRemixingAllowed"`

	Files []CreateListingFile `json:"files"`
}

// UpdateListingRequest is a partial patch; nil means unchanged.
type UpdateListingRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Categories  []string `json:"categories"`
	License     *string  `json:"license"`

	PriceMinUnit *int64  `json:"price_min_unit"`
	Currency     *string `json:"currency"`

	PrinterSettings *UpdateListingPrinterSettings `json:"printerSettings"`
	Dimensions      *ListingDimensions            `json:"dimensions"`

	IsNSFW     *bool `json:"isNSFW"`
	IsPhysical *bool `json:"isPhysical"`

	IsAIGenerated *bool   `json:"isAIGenerated"`
	AIModelName   *string `json:"aiModelName"`

	IsRemixingAllowed *bool `json:"isRemixingAllowed"`
}

type ListingFileDTO struct {
	ID           string       `json:"id"`
	FilePath     *string      `json:"file_path"`
	FileType     string       `json:"file_type"`
	Status       string       `json:"status"`
	Size         int64        `json:"size"`
	Metadata     models.JSONB `json:"metadata"`
	ErrorMessage *string      `json:"error_message"`
	IsGenerated  bool         `json:"is_generated"`
	SourceFileID *string      `json:"source_file_id,omitempty"`
}

type ListingResponse struct {
	ID string `json:"id"`

	SellerID       string `json:"seller_id"`
	SellerName     string `json:"seller_name"`
	SellerUsername string `json:"seller_username"`
	SellerVerified bool   `json:"seller_verified"`

	Title        string   `json:"title"`
	Description  string   `json:"description"`
	PriceMinUnit int64    `json:"price_min_unit"`
	Currency     string   `json:"currency"`
	IsFree       bool     `json:"is_free"`
	Categories   []string `json:"categories"`
	License      string   `json:"license"`

	ThumbnailPath *string          `json:"thumbnail_path"`
	Files         []ListingFileDTO `json:"files"`

	IsRemixingAllowed bool    `json:"is_remixing_allowed"`
	ParentListingID   *string `json:"parent_listing_id"`

	IsPhysical       bool `json:"is_physical"`
	TotalWeightGrams *int `json:"total_weight_grams"`

	DimXMM *int `json:"dim_x_mm"`
	DimYMM *int `json:"dim_y_mm"`
	DimZMM *int `json:"dim_z_mm"`

	IsAssemblyRequired bool     `json:"is_assembly_required"`
	IsHardwareRequired bool     `json:"is_hardware_required"`
	HardwareRequired   []string `json:"hardware_required"`

	IsMulticolor           bool     `json:"is_multicolor"`
	RecommendedMaterials   []string `json:"recommended_materials"`
	RecommendedNozzleTempC *int     `json:"recommended_nozzle_temp_c"`
	PrintTimeMinutes       *int     `json:"print_time_minutes"`

	IsAIGenerated bool    `json:"is_ai_generated"`
	AIModelName   *string `json:"ai_model_name"`

	IsNSFW bool `json:"is_nsfw"`

	LikesCount     int `json:"likes_count"`
	DownloadsCount int `json:"downloads_count"`
	CommentsCount  int `json:"comments_count"`

	IsSaleActive     bool       `json:"is_sale_active"`
	SaleName         *string    `json:"sale_name"`
	SalePrice        *int64     `json:"sale_price"`
	SaleEndTimestamp *time.Time `json:"sale_end_timestamp"`

	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastIndexedAt *time.Time `json:"last_indexed_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// --- Create ---

// CreateListing validates the request, persists the listing and its file rows
// in one transaction, then fans out one StartFileValidation event per file.
// Publish failures after commit are logged, never surfaced: a sweeper or a
// user-initiated retry re-emits them.
func (s *ListingService) CreateListing(ctx context.Context, userInfo *utils.UserInfo, req *CreateListingRequest) (*ListingResponse, error) {
	log := logrus.WithFields(logrus.Fields{
		"user_id": userInfo.ID,
		"title":   req.Title,
	})
	log.Info("Creating listing")

	if appErr := req.Validate(userInfo.ID); appErr != nil {
		log.WithField("error", appErr).Warn("Listing validation failed")
		return nil, appErr
	}

	sellerID, err := uuid.Parse(userInfo.ID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInternal, "Invalid user ID", fmt.Errorf("invalid user uuid: %w", err))
	}

	traceID := utils.RequestIDFromContext(ctx)
	thumbnail := req.Files[0].Path

	listing := models.Listing{
		SellerID:       sellerID,
		SellerName:     userInfo.Email,
		SellerUsername: userInfo.Username,

		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Categories:   req.Categories,
		License:      req.License,
		PriceMinUnit: req.PriceMinUnit,
		Currency:     strings.ToLower(req.Currency),

		Status:   models.ListingStatusPendingValidation,
		ClientID: userInfo.AuthorizedParty,
		TraceID:  traceID,

		ThumbnailPath: &thumbnail,

		IsPhysical:             req.IsPhysical,
		IsAssemblyRequired:     req.PrinterSettings.IsAssemblyRequired,
		IsHardwareRequired:     req.PrinterSettings.IsHardwareRequired,
		HardwareRequired:       derefStringSlice(req.PrinterSettings.HardwareRequired),
		IsMulticolor:           req.PrinterSettings.IsMulticolor,
		RecommendedMaterials:   derefStringSlice(req.PrinterSettings.RecommendedMaterials),
		RecommendedNozzleTempC: req.PrinterSettings.RecommendedNozzleTempC,
		PrintTimeMinutes:       req.PrinterSettings.PrintTimeMinutes,
		DimensionsMM:           toStoredDimensions(req.Dimensions),

		IsAIGenerated: req.IsAIGenerated,
		AIModelName:   normalizeOptionalString(req.AIModelName),

		IsRemixingAllowed: req.IsRemixingAllowed,
		IsNSFW:            req.IsNSFW,
	}

	for _, f := range req.Files {
		fileType := models.FileTypeModel
		if strings.ToLower(f.Type) == "image" {
			fileType = models.FileTypeImage
		}

		listing.Files = append(listing.Files, models.ListingFile{
			FilePath:    f.Path,
			FileType:    fileType,
			FileSize:    f.Size,
			Status:      models.FileStatusPending,
			IsGenerated: false,
		})
	}

	// Listing and file rows commit together; events only leave the process
	// after the commit.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&listing).Error
	})
	if err != nil {
		log.WithError(err).Error("Failed to create listing")
		return nil, utils.NewAppError(utils.ErrInternal, "Failed to create listing. Please try again later.", err)
	}

	for _, file := range listing.Files {
		evt := models.StartFileValidationEvent{
			ListingID: listing.ID.String(),
			UserID:    userInfo.ID,
			TraceID:   traceID,
			FileID:    file.ID.String(),
			FileKey:   file.FilePath,
			FileType:  strings.ToLower(string(file.FileType)),
		}

		if err := s.events.RaiseStartFileValidationEvent(evt); err != nil {
			log.WithFields(logrus.Fields{
				"listing_id": evt.ListingID,
				"file_id":    evt.FileID,
				"file_type":  evt.FileType,
				"error":      err,
			}).Error("Failed to publish file validation event")
		}
	}

	resp := s.toListingResponse(ctx, &listing)
	return &resp, nil
}

// Validate applies the listing quality rules and verifies the caller owns
// every referenced file key.
func (req *CreateListingRequest) Validate(userID string) *utils.AppError {
	titleLen := len(strings.TrimSpace(req.Title))
	if titleLen < 5 || titleLen > 100 {
		return utils.NewAppError(utils.ErrInvalidInput, "Title must be between 5 and 100 characters", nil)
	}

	descLen := len(strings.TrimSpace(req.Description))
	if descLen < 20 || descLen > 5000 {
		return utils.NewAppError(utils.ErrInvalidInput, "Description must be between 20 and 5000 characters", nil)
	}

	if len(req.Categories) == 0 {
		return utils.NewAppError(utils.ErrInvalidInput, "At least one category is required", nil)
	}

	if strings.TrimSpace(req.License) == "" {
		return utils.NewAppError(utils.ErrInvalidInput, "A valid license type is required", nil)
	}

	if req.PriceMinUnit < 0 {
		return utils.NewAppError(utils.ErrInvalidInput, "Price cannot be negative", nil)
	}

	// Currency only matters when the listing is priced.
	if req.PriceMinUnit > 0 {
		switch strings.ToLower(req.Currency) {
		case "usd", "gbp":
		default:
			return utils.NewAppError(utils.ErrInvalidInput, "Currency must be 'usd' or 'gbp'", nil)
		}
	}

	if req.Dimensions != nil {
		if req.Dimensions.X < 0 || req.Dimensions.Y < 0 || req.Dimensions.Z < 0 {
			return utils.NewAppError(utils.ErrInvalidInput, "Dimensions cannot be negative", nil)
		}
	}

	if req.PrinterSettings.RecommendedNozzleTempC != nil {
		temp := *req.PrinterSettings.RecommendedNozzleTempC
		// Sanity range for consumer 3D printing.
		if temp < 180 || temp > 450 {
			return utils.NewAppError(utils.ErrInvalidInput, "Recommended nozzle temperature must be within a realistic range (180-450°C)", nil)
		}
	}

	if req.PrinterSettings.PrintTimeMinutes != nil && *req.PrinterSettings.PrintTimeMinutes <= 0 {
		return utils.NewAppError(utils.ErrInvalidInput, "Print time must be positive", nil)
	}

	if req.PrinterSettings.RecommendedMaterials != nil {
		for _, mat := range *req.PrinterSettings.RecommendedMaterials {
			if strings.TrimSpace(mat) == "" {
				return utils.NewAppError(utils.ErrInvalidInput, "Material list cannot contain empty entries", nil)
			}
		}
	}

	if req.PrinterSettings.HardwareRequired != nil {
		for _, hw := range *req.PrinterSettings.HardwareRequired {
			if strings.TrimSpace(hw) == "" {
				return utils.NewAppError(utils.ErrInvalidInput, "Hardware list cannot contain empty entries", nil)
			}
		}
	}

	// AI disclosure: the model name is required for transparency.
	if req.IsAIGenerated {
		if req.AIModelName == nil || strings.TrimSpace(*req.AIModelName) == "" {
			return utils.NewAppError(utils.ErrInvalidInput, "AI Model Name is required for AI-generated content", nil)
		}
	}

	if len(req.Files) == 0 {
		return utils.NewAppError(utils.ErrInvalidInput, "At least one file is required", nil)
	}

	hasModel := false
	hasImage := false

	for _, f := range req.Files {
		if f.Path == "" {
			return utils.NewAppError(utils.ErrInvalidInput, "File path cannot be empty", nil)
		}
		if f.Size <= 0 {
			return utils.NewAppError(utils.ErrInvalidInput, "File size must be positive", nil)
		}

		if !checkUserOwnsFile(userID, f.Path) {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"path":    f.Path,
			}).Warn("User attempted to reference an unowned file key")
			return utils.NewAppError(utils.ErrInvalidInput, "You do not have permission to use this file", nil)
		}

		switch strings.ToLower(f.Type) {
		case "model":
			hasModel = true
		case "image":
			hasImage = true
		default:
			return utils.NewAppError(utils.ErrInvalidInput, fmt.Sprintf("Invalid file type '%s'. Must be 'model' or 'image'", f.Type), nil)
		}
	}

	if !hasModel {
		return utils.NewAppError(utils.ErrInvalidInput, "You must upload at least one 3D model file", nil)
	}
	if !hasImage {
		return utils.NewAppError(utils.ErrInvalidInput, "You must upload at least one gallery image", nil)
	}

	return nil
}

// checkUserOwnsFile verifies the owner id embedded in the storage key.
// Key format: YYYY/MM/DD/userID/draftID/prefix/hash.ext
func checkUserOwnsFile(userID string, filePath string) bool {
	parts := strings.SplitN(filePath, "/", 6)
	if len(parts) < 6 {
		return false
	}

	return parts[3] == userID
}

// --- Read ---

func cacheKeyForListing(listingID string) string {
	return "listing:" + listingID
}

func (s *ListingService) GetListingByID(ctx context.Context, listingID string) (*ListingResponse, error) {
	cacheKey := cacheKeyForListing(listingID)

	cached, found, err := cache.Get[ListingResponse](s.cache, ctx, cacheKey)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"listing_id": listingID,
			"error":      err,
		}).Error("Failed to read listing from cache")
	} else if found {
		return cached, nil
	}

	id, err := uuid.Parse(listingID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "Invalid listing ID provided", err)
	}

	var listing models.Listing
	if err := s.db.WithContext(ctx).Preload("Files").First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewAppError(utils.ErrNotFound, "Listing not found", fmt.Errorf("listing %s not found", listingID))
		}
		return nil, utils.NewAppError(utils.ErrInternal, "Failed to fetch listing", fmt.Errorf("failed to fetch listing %s: %w", listingID, err))
	}

	resp := s.toListingResponse(ctx, &listing)

	// Cache write happens off the request path; a slow cache must not slow
	// the response.
	go func(data ListingResponse) {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := cache.Set(s.cache, cacheCtx, cacheKey, data, ListingCacheTTL); err != nil {
			logrus.WithFields(logrus.Fields{
				"listing_id": listingID,
				"error":      err,
			}).Error("Failed to cache listing")
		}
	}(resp)

	return &resp, nil
}

func (s *ListingService) GetListingsForUser(ctx context.Context, userInfo *utils.UserInfo) ([]ListingResponse, error) {
	sellerID, err := uuid.Parse(userInfo.ID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "Invalid user ID provided", err)
	}

	var listings []models.Listing
	if err := s.db.WithContext(ctx).
		Preload("Files").
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Find(&listings).Error; err != nil {
		return nil, utils.NewAppError(utils.ErrInternal, "Unable to get the user's listings", err)
	}

	responses := make([]ListingResponse, len(listings))
	for i := range listings {
		responses[i] = s.toListingResponse(ctx, &listings[i])
	}

	return responses, nil
}

// --- Update ---

func (s *ListingService) UpdateListing(ctx context.Context, userInfo *utils.UserInfo, listingID string, req *UpdateListingRequest) (*ListingResponse, error) {
	id, err := uuid.Parse(listingID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "Invalid listing ID provided", err)
	}

	var listing models.Listing
	if err := s.db.WithContext(ctx).Preload("Files").First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewAppError(utils.ErrNotFound, "Listing not found", fmt.Errorf("listing %s not found", listingID))
		}
		return nil, utils.NewAppError(utils.ErrInternal, "Failed to fetch existing listing", fmt.Errorf("failed to fetch listing %s: %w", listingID, err))
	}

	if listing.SellerID.String() != userInfo.ID {
		return nil, utils.NewAppError(utils.ErrUnauthorized, "You do not own this listing",
			fmt.Errorf("user %s does not own listing %s", userInfo.ID, listingID))
	}

	if appErr := req.ApplyTo(&listing); appErr != nil {
		return nil, appErr
	}

	if err := s.db.WithContext(ctx).Save(&listing).Error; err != nil {
		logrus.WithFields(logrus.Fields{
			"listing_id": listingID,
			"error":      err,
		}).Error("Failed to save listing updates")
		return nil, utils.NewAppError(utils.ErrInternal, "Failed to save listing updates", err)
	}

	if err := cache.Del(s.cache, ctx, cacheKeyForListing(listingID)); err != nil {
		logrus.WithFields(logrus.Fields{
			"listing_id": listingID,
			"error":      err,
		}).Error("Failed to invalidate listing cache")
	}

	err = s.events.RaiseListingIndexEvent(models.ReIndexListingEvent{
		ListingID: listingID,
		TraceID:   utils.RequestIDFromContext(ctx),
	})
	if err != nil {
		// Non-critical: the document goes stale until the next re-index.
		logrus.WithFields(logrus.Fields{
			"listing_id": listingID,
			"error":      err,
		}).Error("Failed to raise listing re-index event")
	}

	resp := s.toListingResponse(ctx, &listing)
	return &resp, nil
}

// ApplyTo copies the non-nil patch fields onto the listing, re-running the
// per-field rules that apply on create.
func (req *UpdateListingRequest) ApplyTo(listing *models.Listing) *utils.AppError {
	if req.Title != nil {
		titleLen := len(strings.TrimSpace(*req.Title))
		if titleLen < 5 || titleLen > 100 {
			return utils.NewAppError(utils.ErrInvalidInput, "Title must be between 5 and 100 characters", nil)
		}
		listing.Title = strings.TrimSpace(*req.Title)
	}

	if req.Description != nil {
		descLen := len(strings.TrimSpace(*req.Description))
		if descLen < 20 || descLen > 5000 {
			return utils.NewAppError(utils.ErrInvalidInput, "Description must be between 20 and 5000 characters", nil)
		}
		listing.Description = strings.TrimSpace(*req.Description)
	}

	if req.Categories != nil {
		if len(req.Categories) == 0 {
			return utils.NewAppError(utils.ErrInvalidInput, "At least one category is required", nil)
		}
		listing.Categories = req.Categories
	}

	if req.License != nil {
		if strings.TrimSpace(*req.License) == "" {
			return utils.NewAppError(utils.ErrInvalidInput, "A valid license type is required", nil)
		}
		listing.License = *req.License
	}

	if req.PriceMinUnit != nil {
		if *req.PriceMinUnit < 0 {
			return utils.NewAppError(utils.ErrInvalidInput, "Price cannot be negative", nil)
		}
		listing.PriceMinUnit = *req.PriceMinUnit
	}

	if req.Currency != nil {
		listing.Currency = strings.ToLower(*req.Currency)
	}

	if listing.PriceMinUnit > 0 {
		switch listing.Currency {
		case "usd", "gbp":
		default:
			return utils.NewAppError(utils.ErrInvalidInput, "Currency must be 'usd' or 'gbp'", nil)
		}
	}

	if req.Dimensions != nil {
		if req.Dimensions.X < 0 || req.Dimensions.Y < 0 || req.Dimensions.Z < 0 {
			return utils.NewAppError(utils.ErrInvalidInput, "Dimensions cannot be negative", nil)
		}
		listing.DimensionsMM = toStoredDimensions(req.Dimensions)
	}

	if req.IsRemixingAllowed != nil {
		listing.IsRemixingAllowed = *req.IsRemixingAllowed
	}
	if req.IsPhysical != nil {
		listing.IsPhysical = *req.IsPhysical
	}
	if req.IsNSFW != nil {
		listing.IsNSFW = *req.IsNSFW
	}
	if req.IsAIGenerated != nil {
		listing.IsAIGenerated = *req.IsAIGenerated
	}

	if req.AIModelName != nil {
		// An empty string clears the field.
		listing.AIModelName = normalizeOptionalString(req.AIModelName)
	}

	if listing.IsAIGenerated && listing.AIModelName == nil {
		return utils.NewAppError(utils.ErrInvalidInput, "AI Model Name is required for AI-generated content", nil)
	}

	if req.PrinterSettings != nil {
		ps := req.PrinterSettings

		if ps.IsAssemblyRequired != nil {
			listing.IsAssemblyRequired = *ps.IsAssemblyRequired
		}
		if ps.IsHardwareRequired != nil {
			listing.IsHardwareRequired = *ps.IsHardwareRequired
		}
		if ps.IsMulticolor != nil {
			listing.IsMulticolor = *ps.IsMulticolor
		}
		if ps.HardwareRequired != nil {
			listing.HardwareRequired = *ps.HardwareRequired
		}
		if ps.RecommendedMaterials != nil {
			listing.RecommendedMaterials = *ps.RecommendedMaterials
		}
		if ps.RecommendedNozzleTempC != nil {
			temp := *ps.RecommendedNozzleTempC
			if temp < 180 || temp > 450 {
				return utils.NewAppError(utils.ErrInvalidInput, "Recommended nozzle temperature must be within a realistic range (180-450°C)", nil)
			}
			listing.RecommendedNozzleTempC = &temp
		}
		if ps.PrintTimeMinutes != nil {
			if *ps.PrintTimeMinutes <= 0 {
				return utils.NewAppError(utils.ErrInvalidInput, "Print time must be positive", nil)
			}
			listing.PrintTimeMinutes = ps.PrintTimeMinutes
		}
	}

	return nil
}

// --- Delete ---

// DeleteListing soft-deletes the row only when the caller owns it; a miss is
// a silent success so the endpoint never acts as an existence oracle.
func (s *ListingService) DeleteListing(ctx context.Context, userInfo *utils.UserInfo, listingID string) error {
	id, err := uuid.Parse(listingID)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "Invalid listing ID provided", err)
	}

	sellerID, err := uuid.Parse(userInfo.ID)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "Invalid user ID provided", err)
	}

	result := s.db.WithContext(ctx).
		Where("id = ? AND seller_id = ?", id, sellerID).
		Delete(&models.Listing{})
	if result.Error != nil {
		return utils.NewAppError(utils.ErrInternal, "Failed to delete listing", result.Error)
	}

	if result.RowsAffected > 0 {
		if err := cache.Del(s.cache, ctx, cacheKeyForListing(listingID)); err != nil {
			logrus.WithFields(logrus.Fields{
				"listing_id": listingID,
				"error":      err,
			}).Error("Failed to invalidate listing cache")
		}
	}

	return nil
}

// --- Response assembly ---

// toListingResponse builds the read-path view: VALID model files get a
// short-lived signed URL, VALID images get a public URL, everything else
// keeps its metadata but loses its path. A presign failure downgrades the one
// file rather than failing the read.
func (s *ListingService) toListingResponse(ctx context.Context, listing *models.Listing) ListingResponse {
	files := make([]ListingFileDTO, 0, len(listing.Files))
	for i := range listing.Files {
		f := &listing.Files[i]

		dto := ListingFileDTO{
			ID:           f.ID.String(),
			FileType:     string(f.FileType),
			Status:       string(f.Status),
			Size:         f.FileSize,
			Metadata:     f.Metadata,
			ErrorMessage: f.ErrorMessage,
			IsGenerated:  f.IsGenerated,
		}
		if f.SourceFileID != nil {
			src := f.SourceFileID.String()
			dto.SourceFileID = &src
		}

		if f.Status == models.FileStatusValid {
			if f.FileType == models.FileTypeModel {
				// Models live in the private bucket; hand out a temporary
				// signed URL.
				signedURL, err := s.storage.PresignGet(ctx, BucketProduct, f.FilePath, modelDownloadExpiry)
				if err != nil {
					logrus.WithFields(logrus.Fields{
						"file_id": dto.ID,
						"error":   err,
					}).Error("Failed to sign model url")
				} else {
					dto.FilePath = &signedURL
				}
			} else {
				// Images are public; compose the permanent URL so browsers
				// can cache them.
				url := s.publicURL(f.FilePath)
				dto.FilePath = &url
			}
		}

		files = append(files, dto)
	}

	var dimX, dimY, dimZ *int
	if listing.DimensionsMM != nil {
		x, y, z := listing.DimensionsMM.Width, listing.DimensionsMM.Depth, listing.DimensionsMM.Height
		dimX, dimY, dimZ = &x, &y, &z
	}

	var thumbnailURL *string
	if listing.ThumbnailPath != nil && *listing.ThumbnailPath != "" {
		url := s.publicURL(*listing.ThumbnailPath)
		thumbnailURL = &url
	}

	var parentID *string
	if listing.ParentListingID != nil {
		id := listing.ParentListingID.String()
		parentID = &id
	}

	var deletedAt *time.Time
	if listing.DeletedAt.Valid {
		t := listing.DeletedAt.Time
		deletedAt = &t
	}

	return ListingResponse{
		ID: listing.ID.String(),

		SellerID:       listing.SellerID.String(),
		SellerName:     listing.SellerName,
		SellerUsername: listing.SellerUsername,
		SellerVerified: listing.SellerVerified,

		Title:        listing.Title,
		Description:  listing.Description,
		PriceMinUnit: listing.PriceMinUnit,
		Currency:     listing.Currency,
		IsFree:       listing.PriceMinUnit == 0,
		Categories:   listing.Categories,
		License:      listing.License,

		ThumbnailPath: thumbnailURL,
		Files:         files,

		IsRemixingAllowed: listing.IsRemixingAllowed,
		ParentListingID:   parentID,

		IsPhysical:       listing.IsPhysical,
		TotalWeightGrams: listing.TotalWeightGrams,

		DimXMM: dimX,
		DimYMM: dimY,
		DimZMM: dimZ,

		IsAssemblyRequired: listing.IsAssemblyRequired,
		IsHardwareRequired: listing.IsHardwareRequired,
		HardwareRequired:   listing.HardwareRequired,

		IsMulticolor:           listing.IsMulticolor,
		RecommendedMaterials:   listing.RecommendedMaterials,
		RecommendedNozzleTempC: listing.RecommendedNozzleTempC,
		PrintTimeMinutes:       listing.PrintTimeMinutes,

		IsAIGenerated: listing.IsAIGenerated,
		AIModelName:   listing.AIModelName,

		IsNSFW: listing.IsNSFW,

		LikesCount:     listing.LikesCount,
		DownloadsCount: listing.DownloadsCount,
		CommentsCount:  listing.CommentsCount,

		IsSaleActive:     listing.IsSaleActive,
		SaleName:         listing.SaleName,
		SalePrice:        listing.SalePrice,
		SaleEndTimestamp: listing.SaleEndTimestamp,

		Status:        string(listing.Status),
		CreatedAt:     listing.CreatedAt,
		UpdatedAt:     listing.UpdatedAt,
		LastIndexedAt: listing.LastIndexedAt,
		DeletedAt:     deletedAt,
	}
}

// publicURL joins the public base and the key with exactly one slash.
func (s *ListingService) publicURL(key string) string {
	return strings.TrimRight(s.publicFilesURL, "/") + "/" + strings.TrimLeft(key, "/")
}

// --- Helpers ---

// toStoredDimensions maps the request's x/y/z onto the stored
// width/depth/height keys.
func toStoredDimensions(d *ListingDimensions) *models.Dimensions {
	if d == nil {
		return nil
	}
	return &models.Dimensions{Width: d.X, Depth: d.Y, Height: d.Z}
}

func derefStringSlice(s *[]string) []string {
	if s == nil {
		return []string{}
	}
	return *s
}

func normalizeOptionalString(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed
}
