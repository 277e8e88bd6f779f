package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/gym-app/internal/service"
)

// UploadHandler serves progress photos stored in S3.
type UploadHandler struct {
	uploadService service.UploadService
}

func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

type RequestUploadURLRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

type ConfirmUploadRequest struct {
	ObjectKey   string `json:"objectKey" binding:"required"`
	FileName    string `json:"fileName" binding:"required,max=255"`
	ContentType string `json:"contentType" binding:"required"`
	Caption     string `json:"caption" binding:"omitempty,max=500"`
}

// RequestUploadURL godoc
// @Summary Request a pre-signed URL to upload a progress photo
// @Description The client PUTs the image straight to S3, then confirms with the returned object key.
// @Tags Uploads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uploadRequest body RequestUploadURLRequest true "Upload content type"
// @Success 200 {object} service.UploadURLResponse "Pre-signed URL and object key"
// @Failure 400 {object} gin.H "Not an image"
// @Failure 503 {object} gin.H "Storage not configured"
// @Router /me/uploads/url [post]
func (h *UploadHandler) RequestUploadURL(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req RequestUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	resp, err := h.uploadService.RequestUploadURL(c.Request.Context(), userID, req.ContentType)
	if err != nil {
		respondWithError(c, err, "Failed to get upload URL.")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmUpload godoc
// @Summary Confirm a completed photo upload
// @Description Checks the object exists and is within the size limit, then records it.
// @Tags Uploads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param confirmRequest body ConfirmUploadRequest true "Upload confirmation details"
// @Success 201 {object} domain.Upload
// @Failure 400 {object} gin.H "Too large or not an image"
// @Failure 403 {object} gin.H "Object key belongs to someone else"
// @Failure 404 {object} gin.H "Object was never uploaded"
// @Router /me/uploads [post]
func (h *UploadHandler) ConfirmUpload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req ConfirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	upload, err := h.uploadService.ConfirmUpload(c.Request.Context(), userID, req.ObjectKey, req.FileName, req.ContentType, req.Caption)
	if err != nil {
		respondWithError(c, err, "Failed to confirm upload.")
		return
	}
	c.JSON(http.StatusCreated, upload)
}

// ListUploads godoc
// @Summary List progress photos with short-lived download URLs
// @Description On /users/{userId}/uploads the caller must coach the member or be an admin.
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param userId path string false "Member ObjectID Hex (staff routes)"
// @Success 200 {array} service.Photo
// @Router /me/uploads [get]
// @Router /users/{userId}/uploads [get]
func (h *UploadHandler) ListUploads(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var photos []service.Photo
	var err error
	if c.Param("userId") == "" {
		photos, err = h.uploadService.ListMyUploads(c.Request.Context(), actor.ID)
	} else {
		userID, ok := pathID(c, "userId")
		if !ok {
			return
		}
		photos, err = h.uploadService.ListTraineeUploads(c.Request.Context(), actor, userID)
	}
	if err != nil {
		respondWithError(c, err, "Failed to retrieve uploads.")
		return
	}
	if photos == nil {
		photos = []service.Photo{}
	}
	c.JSON(http.StatusOK, photos)
}

// DeleteUpload godoc
// @Summary Delete one of my photos
// @Tags Uploads
// @Security BearerAuth
// @Param uploadId path string true "Upload ObjectID Hex"
// @Success 204 "No Content"
// @Failure 404 {object} gin.H "Upload not found"
// @Router /me/uploads/{uploadId} [delete]
func (h *UploadHandler) DeleteUpload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	uploadID, ok := pathID(c, "uploadId")
	if !ok {
		return
	}
	if err := h.uploadService.DeleteUpload(c.Request.Context(), userID, uploadID); err != nil {
		respondWithError(c, err, "Failed to delete upload.")
		return
	}
	c.Status(http.StatusNoContent)
}
