// internal/services/upload_service.go
package services

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/printforge/marketplace-backend/internal/utils"
)

// FileConstraint bounds one upload kind: size ceiling, MIME allow-list and
// the key prefix the kind is stored under.
type FileConstraint struct {
	MaxSize          int64
	AllowedMimeTypes []string
	Prefix           string
}

// DefaultFileConstraints: images up to 5 MiB, models up to 50 MiB.
func DefaultFileConstraints() map[string]FileConstraint {
	return map[string]FileConstraint{
		"image": {
			MaxSize:          5 * 1024 * 1024,
			AllowedMimeTypes: []string{"image/jpeg", "image/png", "image/gif"},
			Prefix:           "images",
		},
		"model": {
			MaxSize: 50 * 1024 * 1024,
			AllowedMimeTypes: []string{
				"model/stl",
				"model/3mf",
				"application/vnd.ms-pki.stl",
				"application/vnd.ms-pki.3mf",
				"application/octet-stream",
			},
			Prefix: "models",
		},
	}
}

type PresignRequest struct {
	Type        string `json:"type" validate:"required"`
	Filename    string `json:"filename" validate:"required,filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"file_size_bytes" validate:"required,gt=0"`
	DraftID     string `json:"draft_id" validate:"required,uuid"`
}

type PresignResponse struct {
	UploadURL string            `json:"uploadUrl"`
	FormData  map[string]string `json:"fields"`
	Key       string            `json:"key"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type UploadService struct {
	storage               StorageProvider
	constraints           map[string]FileConstraint
	extensionMimeTypes    map[string]string
	validationWindowHours int
}

func NewUploadService(storage StorageProvider, validationWindowHours int, constraints map[string]FileConstraint) *UploadService {
	return &UploadService{
		storage:     storage,
		constraints: constraints,
		extensionMimeTypes: map[string]string{
			".stl":  "model/stl",
			".3mf":  "model/3mf",
			".obj":  "application/octet-stream",
			".jpg":  "image/jpeg",
			".jpeg": "image/jpeg",
			".png":  "image/png",
			".gif":  "image/gif",
		},
		validationWindowHours: validationWindowHours,
	}
}

// PresignUpload validates the request against the per-kind constraints and
// returns a POST-policy grant for the incoming bucket. The grant expires with
// the file validation window.
func (s *UploadService) PresignUpload(ctx context.Context, userInfo *utils.UserInfo, req *PresignRequest) (*PresignResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidInput, utils.ValidationMessage(err), err)
	}

	constraints, exists := s.constraints[req.Type]
	if !exists {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "Unknown file type. Must be 'model' or 'image'", nil)
	}

	if req.SizeBytes > constraints.MaxSize {
		return nil, utils.NewAppError(utils.ErrInvalidInput,
			fmt.Sprintf("File exceeds the %d byte limit for %s uploads", constraints.MaxSize, req.Type), nil)
	}

	ext := strings.ToLower(filepath.Ext(req.Filename))
	if ext == "" {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "Filename must have an extension", nil)
	}

	mimeType := req.ContentType
	if mimeType == "" {
		var known bool
		mimeType, known = s.extensionMimeTypes[ext]
		if !known && req.Type == "model" {
			mimeType = "application/octet-stream"
		}
	}

	if !slices.Contains(constraints.AllowedMimeTypes, mimeType) {
		return nil, utils.NewAppError(utils.ErrInvalidInput,
			fmt.Sprintf("File type '%s' is not allowed for %s uploads", mimeType, req.Type), nil)
	}

	key := generateStorageKey(userInfo.ID, req.DraftID, req.Filename, constraints.Prefix, ext)
	expiry := time.Duration(s.validationWindowHours) * time.Hour

	url, formData, err := s.storage.GenerateUploadURL(ctx, UploadGrantConfig{
		Bucket:      BucketIncoming,
		Key:         key,
		ContentType: mimeType,
		MaxFileSize: constraints.MaxSize,
		Expiry:      expiry,
	})
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInternal, "Failed to generate upload signature", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   userInfo.ID,
		"file_type": req.Type,
		"key":       key,
	}).Info("Issued upload grant")

	return &PresignResponse{
		UploadURL: url,
		FormData:  formData,
		Key:       key,
		ExpiresAt: time.Now().Add(expiry).UTC(),
	}, nil
}

// generateStorageKey builds YYYY/MM/DD/{userID}/{draftID}/{prefix}/{sha256(filename)}{ext}.
// The owner id is embedded in the key so listing create can verify ownership
// from the path alone. Date segments are UTC and zero-padded.
func generateStorageKey(userID, draftID, filename, prefix, ext string) string {
	now := time.Now().UTC()
	datePrefix := fmt.Sprintf("%d/%02d/%02d", now.Year(), now.Month(), now.Day())

	return path.Join(datePrefix, userID, draftID, prefix, utils.HashString(filename)+ext)
}
