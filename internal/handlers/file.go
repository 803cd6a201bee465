// internal/handlers/file.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printforge/marketplace-backend/internal/middleware"
	"github.com/printforge/marketplace-backend/internal/services"
	"github.com/printforge/marketplace-backend/internal/utils"
)

type UploadServicer interface {
	PresignUpload(ctx context.Context, userInfo *utils.UserInfo, req *services.PresignRequest) (*services.PresignResponse, error)
}

type FileHandler struct {
	service UploadServicer
}

func NewFileHandler(service UploadServicer) *FileHandler {
	return &FileHandler{service: service}
}

// Presign handles POST /v1/files/presign
func (h *FileHandler) Presign(c *gin.Context) {
	userInfo, ok := middleware.GetUserInfo(c)
	if !ok {
		utils.RespondError(c, utils.NewAppError(utils.ErrUnauthorized, "Authentication required", nil))
		return
	}

	var req services.PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.NewAppError(utils.ErrInvalidInput, "Invalid request body", err))
		return
	}

	resp, err := h.service.PresignUpload(c.Request.Context(), userInfo, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
