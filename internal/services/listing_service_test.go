// internal/services/listing_service_test.go
package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/marketplace-backend/internal/models"
	"github.com/printforge/marketplace-backend/internal/utils"
)

// fakeStorage records calls and returns canned URLs.
type fakeStorage struct {
	presignGetErr  error
	presignedKeys  []string
	uploadGrantErr error
	lastGrant      UploadGrantConfig
}

func (f *fakeStorage) GenerateUploadURL(_ context.Context, cfg UploadGrantConfig) (string, map[string]string, error) {
	f.lastGrant = cfg
	if f.uploadGrantErr != nil {
		return "", nil, f.uploadGrantErr
	}
	return "https://storage.local/" + string(cfg.Bucket), map[string]string{"key": cfg.Key}, nil
}

func (f *fakeStorage) PresignGet(_ context.Context, bucket Bucket, key string, _ time.Duration) (string, error) {
	if f.presignGetErr != nil {
		return "", f.presignGetErr
	}
	f.presignedKeys = append(f.presignedKeys, key)
	return "https://storage.local/" + string(bucket) + "/" + key + "?signature=abc", nil
}

func (f *fakeStorage) Copy(context.Context, Bucket, string, Bucket, string) error { return nil }
func (f *fakeStorage) Delete(context.Context, Bucket, string) error               { return nil }
func (f *fakeStorage) Get(context.Context, Bucket, string) (io.ReadCloser, error) {
	return nil, ErrObjectNotFound
}
func (f *fakeStorage) Healthcheck(context.Context) error { return nil }

const testUserID = "4dc8ccd9-4a3c-4a4a-91a7-7a0cb81cba2b"

func ownedKey(kind string) string {
	return "2026/08/25/" + testUserID + "/draft-1/" + kind + "/abc123.stl"
}

func validCreateRequest() *CreateListingRequest {
	return &CreateListingRequest{
		Title:        "Articulated Dragon",
		Description:  strings.Repeat("A posable dragon print. ", 3),
		Categories:   []string{"toys"},
		License:      "CC-BY-4.0",
		PriceMinUnit: 500,
		Currency:     "usd",
		Files: []CreateListingFile{
			{Type: "model", Path: ownedKey("models"), Size: 2048},
			{Type: "image", Path: ownedKey("images"), Size: 1024},
		},
	}
}

func TestCreateListingRequestValidate(t *testing.T) {
	intPtr := func(v int) *int { return &v }
	strPtr := func(v string) *string { return &v }

	tests := []struct {
		name    string
		mutate  func(r *CreateListingRequest)
		wantMsg string
	}{
		{
			name:   "valid request passes",
			mutate: func(r *CreateListingRequest) {},
		},
		{
			name:    "title too short",
			mutate:  func(r *CreateListingRequest) { r.Title = "abc" },
			wantMsg: "Title",
		},
		{
			name:    "title too long",
			mutate:  func(r *CreateListingRequest) { r.Title = strings.Repeat("x", 101) },
			wantMsg: "Title",
		},
		{
			name:    "description too short",
			mutate:  func(r *CreateListingRequest) { r.Description = "short" },
			wantMsg: "Description",
		},
		{
			name:    "no categories",
			mutate:  func(r *CreateListingRequest) { r.Categories = nil },
			wantMsg: "category",
		},
		{
			name:    "missing license",
			mutate:  func(r *CreateListingRequest) { r.License = "  " },
			wantMsg: "license",
		},
		{
			name:    "negative price",
			mutate:  func(r *CreateListingRequest) { r.PriceMinUnit = -1 },
			wantMsg: "Price",
		},
		{
			name:    "unsupported currency on priced listing",
			mutate:  func(r *CreateListingRequest) { r.Currency = "eur" },
			wantMsg: "Currency",
		},
		{
			name: "free listing ignores currency",
			mutate: func(r *CreateListingRequest) {
				r.PriceMinUnit = 0
				r.Currency = ""
			},
		},
		{
			name:    "negative dimensions",
			mutate:  func(r *CreateListingRequest) { r.Dimensions = &ListingDimensions{X: -1, Y: 10, Z: 10} },
			wantMsg: "Dimensions",
		},
		{
			name: "nozzle temp out of range",
			mutate: func(r *CreateListingRequest) {
				r.PrinterSettings.RecommendedNozzleTempC = intPtr(900)
			},
			wantMsg: "nozzle",
		},
		{
			name: "empty material entry",
			mutate: func(r *CreateListingRequest) {
				r.PrinterSettings.RecommendedMaterials = &[]string{"PLA", " "}
			},
			wantMsg: "Material",
		},
		{
			name: "empty hardware entry",
			mutate: func(r *CreateListingRequest) {
				r.PrinterSettings.HardwareRequired = &[]string{""}
			},
			wantMsg: "Hardware",
		},
		{
			name: "ai generated requires model name",
			mutate: func(r *CreateListingRequest) {
				r.IsAIGenerated = true
			},
			wantMsg: "AI Model Name",
		},
		{
			name: "ai generated with blank model name",
			mutate: func(r *CreateListingRequest) {
				r.IsAIGenerated = true
				r.AIModelName = strPtr("   ")
			},
			wantMsg: "AI Model Name",
		},
		{
			name:    "no files",
			mutate:  func(r *CreateListingRequest) { r.Files = nil },
			wantMsg: "file",
		},
		{
			name: "file owned by someone else",
			mutate: func(r *CreateListingRequest) {
				r.Files[0].Path = "2026/08/25/another-user/draft-1/models/abc.stl"
			},
			wantMsg: "permission",
		},
		{
			name: "malformed file key",
			mutate: func(r *CreateListingRequest) {
				r.Files[0].Path = "models/abc.stl"
			},
			wantMsg: "permission",
		},
		{
			name: "zero file size",
			mutate: func(r *CreateListingRequest) {
				r.Files[0].Size = 0
			},
			wantMsg: "size",
		},
		{
			name: "unknown file type",
			mutate: func(r *CreateListingRequest) {
				r.Files[0].Type = "video"
			},
			wantMsg: "file type",
		},
		{
			name: "missing model file",
			mutate: func(r *CreateListingRequest) {
				r.Files = []CreateListingFile{{Type: "image", Path: ownedKey("images"), Size: 100}}
			},
			wantMsg: "model",
		},
		{
			name: "missing gallery image",
			mutate: func(r *CreateListingRequest) {
				r.Files = []CreateListingFile{{Type: "model", Path: ownedKey("models"), Size: 100}}
			},
			wantMsg: "image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)

			err := req.Validate(testUserID)
			if tt.wantMsg == "" {
				assert.Nil(t, err)
				return
			}

			require.NotNil(t, err)
			assert.Equal(t, utils.ErrInvalidInput, err.Code)
			assert.Contains(t, strings.ToLower(err.Message), strings.ToLower(tt.wantMsg))
		})
	}
}

func TestCheckUserOwnsFile(t *testing.T) {
	assert.True(t, checkUserOwnsFile(testUserID, ownedKey("models")))
	assert.False(t, checkUserOwnsFile(testUserID, "2026/08/25/other/draft/models/a.stl"))
	assert.False(t, checkUserOwnsFile(testUserID, "too/short/key"))
	assert.False(t, checkUserOwnsFile(testUserID, ""))

	// The user id must sit in the owner segment, not anywhere in the key.
	assert.False(t, checkUserOwnsFile(testUserID, "2026/08/25/attacker/"+testUserID+"/models/a.stl"))
}

func newReadOnlyService(storage StorageProvider) *ListingService {
	return NewListingService(nil, storage, nil, nil, "http://cdn.local/public-files/")
}

func baseListing() *models.Listing {
	thumbnail := "2026/08/25/u/d/images/thumb.png"
	listing := &models.Listing{
		SellerID:      uuid.MustParse(testUserID),
		Title:         "Articulated Dragon",
		Description:   "A posable dragon print.",
		Categories:    []string{"toys"},
		License:       "CC-BY-4.0",
		PriceMinUnit:  500,
		Currency:      "usd",
		Status:        models.ListingStatusActive,
		ThumbnailPath: &thumbnail,
	}
	listing.ID = uuid.New()
	return listing
}

func TestToListingResponseFileVisibility(t *testing.T) {
	storage := &fakeStorage{}
	svc := newReadOnlyService(storage)

	listing := baseListing()
	listing.Files = []models.ListingFile{
		{FilePath: "models/valid.stl", FileType: models.FileTypeModel, Status: models.FileStatusValid, FileSize: 10},
		{FilePath: "images/valid.png", FileType: models.FileTypeImage, Status: models.FileStatusValid, FileSize: 20},
		{FilePath: "models/pending.stl", FileType: models.FileTypeModel, Status: models.FileStatusPending, FileSize: 30},
		{FilePath: "images/invalid.png", FileType: models.FileTypeImage, Status: models.FileStatusInvalid, FileSize: 40},
	}

	resp := svc.toListingResponse(context.Background(), listing)
	require.Len(t, resp.Files, 4)

	// Valid model: signed URL from the private bucket.
	require.NotNil(t, resp.Files[0].FilePath)
	assert.Contains(t, *resp.Files[0].FilePath, "product-files")
	assert.Contains(t, *resp.Files[0].FilePath, "signature=")

	// Valid image: permanent public URL.
	require.NotNil(t, resp.Files[1].FilePath)
	assert.Equal(t, "http://cdn.local/public-files/images/valid.png", *resp.Files[1].FilePath)

	// Anything not VALID keeps metadata but exposes no path.
	assert.Nil(t, resp.Files[2].FilePath)
	assert.Equal(t, string(models.FileStatusPending), resp.Files[2].Status)
	assert.Nil(t, resp.Files[3].FilePath)

	// Thumbnail resolves against the public base.
	require.NotNil(t, resp.ThumbnailPath)
	assert.Equal(t, "http://cdn.local/public-files/2026/08/25/u/d/images/thumb.png", *resp.ThumbnailPath)
}

func TestToListingResponsePresignFailureDegradesFile(t *testing.T) {
	storage := &fakeStorage{presignGetErr: errors.New("storage down")}
	svc := newReadOnlyService(storage)

	listing := baseListing()
	listing.Files = []models.ListingFile{
		{FilePath: "models/valid.stl", FileType: models.FileTypeModel, Status: models.FileStatusValid, FileSize: 10},
	}

	resp := svc.toListingResponse(context.Background(), listing)
	require.Len(t, resp.Files, 1)
	assert.Nil(t, resp.Files[0].FilePath)
	assert.Equal(t, string(models.FileStatusValid), resp.Files[0].Status)
}

func TestToListingResponseDimensionsAndFlags(t *testing.T) {
	svc := newReadOnlyService(&fakeStorage{})

	listing := baseListing()
	listing.DimensionsMM = &models.Dimensions{Width: 120, Depth: 80, Height: 95}
	listing.PriceMinUnit = 0

	resp := svc.toListingResponse(context.Background(), listing)

	require.NotNil(t, resp.DimXMM)
	assert.Equal(t, 120, *resp.DimXMM)
	assert.Equal(t, 80, *resp.DimYMM)
	assert.Equal(t, 95, *resp.DimZMM)
	assert.True(t, resp.IsFree)

	listing.DimensionsMM = nil
	resp = svc.toListingResponse(context.Background(), listing)
	assert.Nil(t, resp.DimXMM)
	assert.Nil(t, resp.DimYMM)
	assert.Nil(t, resp.DimZMM)
}

func TestUpdateListingRequestApplyTo(t *testing.T) {
	strPtr := func(v string) *string { return &v }
	int64Ptr := func(v int64) *int64 { return &v }
	boolPtr := func(v bool) *bool { return &v }

	t.Run("nil fields leave listing untouched", func(t *testing.T) {
		listing := baseListing()
		original := *listing

		err := (&UpdateListingRequest{}).ApplyTo(listing)
		require.Nil(t, err)
		assert.Equal(t, original.Title, listing.Title)
		assert.Equal(t, original.PriceMinUnit, listing.PriceMinUnit)
		assert.Equal(t, original.Currency, listing.Currency)
	})

	t.Run("patched fields apply", func(t *testing.T) {
		listing := baseListing()

		req := &UpdateListingRequest{
			Title:        strPtr("Updated Dragon Model"),
			PriceMinUnit: int64Ptr(750),
			Currency:     strPtr("GBP"),
			IsNSFW:       boolPtr(true),
		}
		require.Nil(t, req.ApplyTo(listing))

		assert.Equal(t, "Updated Dragon Model", listing.Title)
		assert.Equal(t, int64(750), listing.PriceMinUnit)
		assert.Equal(t, "gbp", listing.Currency)
		assert.True(t, listing.IsNSFW)
	})

	t.Run("bad title rejected", func(t *testing.T) {
		listing := baseListing()
		err := (&UpdateListingRequest{Title: strPtr("ab")}).ApplyTo(listing)
		require.NotNil(t, err)
		assert.Equal(t, utils.ErrInvalidInput, err.Code)
	})

	t.Run("currency revalidated against patched price", func(t *testing.T) {
		listing := baseListing()
		listing.PriceMinUnit = 0
		listing.Currency = ""

		err := (&UpdateListingRequest{PriceMinUnit: int64Ptr(100)}).ApplyTo(listing)
		require.NotNil(t, err)
		assert.Equal(t, utils.ErrInvalidInput, err.Code)
	})

	t.Run("empty ai model name clears field", func(t *testing.T) {
		listing := baseListing()
		name := "gen3d-v2"
		listing.IsAIGenerated = true
		listing.AIModelName = &name

		err := (&UpdateListingRequest{
			IsAIGenerated: boolPtr(false),
			AIModelName:   strPtr(""),
		}).ApplyTo(listing)
		require.Nil(t, err)
		assert.Nil(t, listing.AIModelName)
		assert.False(t, listing.IsAIGenerated)
	})

	t.Run("enabling ai without model name rejected", func(t *testing.T) {
		listing := baseListing()
		err := (&UpdateListingRequest{IsAIGenerated: boolPtr(true)}).ApplyTo(listing)
		require.NotNil(t, err)
		assert.Contains(t, err.Message, "AI Model Name")
	})

	t.Run("printer settings patch", func(t *testing.T) {
		listing := baseListing()
		temp := 215
		materials := []string{"PLA", "PETG"}

		err := (&UpdateListingRequest{
			PrinterSettings: &UpdateListingPrinterSettings{
				RecommendedNozzleTempC: &temp,
				RecommendedMaterials:   &materials,
				IsMulticolor:           boolPtr(true),
			},
		}).ApplyTo(listing)
		require.Nil(t, err)

		require.NotNil(t, listing.RecommendedNozzleTempC)
		assert.Equal(t, 215, *listing.RecommendedNozzleTempC)
		assert.Equal(t, []string{"PLA", "PETG"}, []string(listing.RecommendedMaterials))
		assert.True(t, listing.IsMulticolor)
	})
}

func TestPublicURLJoining(t *testing.T) {
	svc := NewListingService(nil, &fakeStorage{}, nil, nil, "http://cdn.local/public-files///")
	assert.Equal(t, "http://cdn.local/public-files/a/b.png", svc.publicURL("/a/b.png"))
	assert.Equal(t, "http://cdn.local/public-files/a/b.png", svc.publicURL("a/b.png"))
}
