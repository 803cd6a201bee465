// internal/models/listing.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Listing struct {
	BaseModel
	SellerID       uuid.UUID `json:"seller_id" gorm:"type:uuid;not null;index"`
	SellerName     string    `json:"seller_name" gorm:"size:255"`
	SellerUsername string    `json:"seller_username" gorm:"size:255"`
	SellerVerified bool      `json:"seller_verified" gorm:"default:false"`

	Title        string         `json:"title" gorm:"size:100;not null"`
	Description  string         `json:"description" gorm:"type:text"`
	Categories   pq.StringArray `json:"categories" gorm:"type:text[]"`
	License      string         `json:"license" gorm:"size:100;not null"`
	PriceMinUnit int64          `json:"price_min_unit" gorm:"not null;default:0"`
	Currency     string         `json:"currency" gorm:"size:3"`

	Status ListingStatus `json:"status" gorm:"type:varchar(30);default:'PENDING_VALIDATION';index"`

	// ClientID is the OAuth authorized party (azp) of the creating client;
	// TraceID is the request correlation id captured at create time.
	ClientID string `json:"client_id" gorm:"size:100"`
	TraceID  string `json:"trace_id" gorm:"size:100"`

	ThumbnailPath *string `json:"thumbnail_path" gorm:"size:512"`

	// Physical / slicer specs
	IsPhysical             bool           `json:"is_physical" gorm:"default:false"`
	TotalWeightGrams       *int           `json:"total_weight_grams"`
	IsAssemblyRequired     bool           `json:"is_assembly_required" gorm:"default:false"`
	IsHardwareRequired     bool           `json:"is_hardware_required" gorm:"default:false"`
	HardwareRequired       pq.StringArray `json:"hardware_required" gorm:"type:text[]"`
	IsMulticolor           bool           `json:"is_multicolor" gorm:"default:false"`
	RecommendedMaterials   pq.StringArray `json:"recommended_materials" gorm:"type:text[]"`
	RecommendedNozzleTempC *int           `json:"recommended_nozzle_temp_c"`
	PrintTimeMinutes       *int           `json:"print_time_minutes"`
	DimensionsMM           *Dimensions    `json:"dimensions_mm" gorm:"type:jsonb"`

	// AI disclosure
	IsAIGenerated bool    `json:"is_ai_generated" gorm:"default:false"`
	AIModelName   *string `json:"ai_model_name" gorm:"size:255"`

	// Community
	IsRemixingAllowed bool       `json:"is_remixing_allowed" gorm:"default:false"`
	ParentListingID   *uuid.UUID `json:"parent_listing_id" gorm:"type:uuid"`

	IsNSFW bool `json:"is_nsfw" gorm:"default:false"`

	// Social counters, maintained by downstream services; carried for the
	// read model and the search document.
	LikesCount     int `json:"likes_count" gorm:"default:0"`
	DownloadsCount int `json:"downloads_count" gorm:"default:0"`
	CommentsCount  int `json:"comments_count" gorm:"default:0"`

	// Sales
	IsSaleActive     bool       `json:"is_sale_active" gorm:"default:false"`
	SaleName         *string    `json:"sale_name" gorm:"size:255"`
	SalePrice        *int64     `json:"sale_price"`
	SaleEndTimestamp *time.Time `json:"sale_end_timestamp"`

	LastIndexedAt *time.Time `json:"last_indexed_at"`

	// Relationships
	Files []ListingFile `json:"files,omitempty" gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
}

type ListingFile struct {
	BaseModel
	ListingID uuid.UUID  `json:"listing_id" gorm:"type:uuid;not null;index"`
	FilePath  string     `json:"file_path" gorm:"size:512;not null"`
	FileType  FileType   `json:"file_type" gorm:"type:varchar(10);not null"`
	FileSize  int64      `json:"file_size" gorm:"not null"`
	Metadata  JSONB      `json:"metadata" gorm:"type:jsonb"`
	Status    FileStatus `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`

	ErrorMessage *string `json:"error_message" gorm:"type:text"`

	// IsGenerated marks worker-produced artifacts (e.g. renders); generated
	// files carry a weak back-reference to the upload they derive from.
	IsGenerated  bool       `json:"is_generated" gorm:"default:false"`
	SourceFileID *uuid.UUID `json:"source_file_id" gorm:"type:uuid"`
}
