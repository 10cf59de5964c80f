package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/appliance-repair-api/services"
	"github.com/kendall-kelly/appliance-repair-api/utils"
)

// MediaUploadRequest represents the request body for reserving an upload URL
type MediaUploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	Size        int64  `json:"size" binding:"required"`
}

// CreateMediaUpload handles POST /api/v1/media/uploads - returns a storage key and a
// presigned URL the client PUTs the file to before referencing the key on an order
func CreateMediaUpload(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req MediaUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	if err := utils.ValidateMedia(req.ContentType, req.Size); err != nil {
		respondError(c, err)
		return
	}

	storage := services.GetMediaService()
	if storage == nil {
		respondErrorCode(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Media storage is not configured", nil)
		return
	}

	upload, err := storage.PresignUpload(c.Request.Context(), actor.ID, req.ContentType, req.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, upload)
}
