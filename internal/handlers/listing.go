// internal/handlers/listing.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printforge/marketplace-backend/internal/middleware"
	"github.com/printforge/marketplace-backend/internal/services"
	"github.com/printforge/marketplace-backend/internal/utils"
)

// ListingServicer is what the handler needs from the listing service; tests
// substitute a mock.
type ListingServicer interface {
	CreateListing(ctx context.Context, userInfo *utils.UserInfo, req *services.CreateListingRequest) (*services.ListingResponse, error)
	GetListingByID(ctx context.Context, listingID string) (*services.ListingResponse, error)
	GetListingsForUser(ctx context.Context, userInfo *utils.UserInfo) ([]services.ListingResponse, error)
	UpdateListing(ctx context.Context, userInfo *utils.UserInfo, listingID string, req *services.UpdateListingRequest) (*services.ListingResponse, error)
	DeleteListing(ctx context.Context, userInfo *utils.UserInfo, listingID string) error
}

type ListingHandler struct {
	service ListingServicer
}

func NewListingHandler(service ListingServicer) *ListingHandler {
	return &ListingHandler{service: service}
}

// Create handles POST /v1/listings
func (h *ListingHandler) Create(c *gin.Context) {
	userInfo, ok := middleware.GetUserInfo(c)
	if !ok {
		utils.RespondError(c, utils.NewAppError(utils.ErrUnauthorized, "Authentication required", nil))
		return
	}

	var req services.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.NewAppError(utils.ErrInvalidInput, "Invalid request body", err))
		return
	}

	resp, err := h.service.CreateListing(c.Request.Context(), userInfo, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Get handles GET /v1/listings/:id
func (h *ListingHandler) Get(c *gin.Context) {
	resp, err := h.service.GetListingByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List handles GET /v1/listings and returns the caller's own listings.
func (h *ListingHandler) List(c *gin.Context) {
	userInfo, ok := middleware.GetUserInfo(c)
	if !ok {
		utils.RespondError(c, utils.NewAppError(utils.ErrUnauthorized, "Authentication required", nil))
		return
	}

	resp, err := h.service.GetListingsForUser(c.Request.Context(), userInfo)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Update handles PUT /v1/listings/:id
func (h *ListingHandler) Update(c *gin.Context) {
	userInfo, ok := middleware.GetUserInfo(c)
	if !ok {
		utils.RespondError(c, utils.NewAppError(utils.ErrUnauthorized, "Authentication required", nil))
		return
	}

	var req services.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.NewAppError(utils.ErrInvalidInput, "Invalid request body", err))
		return
	}

	resp, err := h.service.UpdateListing(c.Request.Context(), userInfo, c.Param("id"), &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /v1/listings/:id
func (h *ListingHandler) Delete(c *gin.Context) {
	userInfo, ok := middleware.GetUserInfo(c)
	if !ok {
		utils.RespondError(c, utils.NewAppError(utils.ErrUnauthorized, "Authentication required", nil))
		return
	}

	if err := h.service.DeleteListing(c.Request.Context(), userInfo, c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
