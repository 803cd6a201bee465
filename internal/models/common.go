// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Dimensions is the JSONB shape of the dimensions_mm column. The stored keys
// are width/depth/height; the HTTP surface exposes them as x/y/z so both
// write and read paths map width→x, depth→y, height→z.
type Dimensions struct {
	Width  int `json:"width"`
	Depth  int `json:"depth"`
	Height int `json:"height"`
}

func (d Dimensions) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *Dimensions) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("dimensions: unsupported scan type %T", value)
	}

	return json.Unmarshal(bytes, d)
}

// Enums
type ListingStatus string

const (
	ListingStatusPendingValidation ListingStatus = "PENDING_VALIDATION"
	ListingStatusActive            ListingStatus = "ACTIVE"
	ListingStatusRejected          ListingStatus = "REJECTED"
	ListingStatusHidden            ListingStatus = "HIDDEN"
)

type FileType string

const (
	FileTypeModel FileType = "MODEL"
	FileTypeImage FileType = "IMAGE"
)

type FileStatus string

const (
	// FileStatusPending: awaiting the validation workers.
	FileStatusPending FileStatus = "PENDING"
	// FileStatusValid is the only status whose file paths are exposed on reads.
	FileStatusValid FileStatus = "VALID"
	// FileStatusInvalid is terminal; FileStatusFailed is retryable.
	FileStatusInvalid FileStatus = "INVALID"
	FileStatusFailed  FileStatus = "FAILED"
)
