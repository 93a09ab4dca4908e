package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"lokapasar/internal/infrastructure/storage"
	"lokapasar/pkg/errors"
	"lokapasar/pkg/response"
)

// Image attachments are capped at 5MB.
const maxAttachmentSize = 5 << 20

type AttachmentHandler struct {
	storageClient *storage.CloudStorageClient
}

func NewAttachmentHandler(storageClient *storage.CloudStorageClient) *AttachmentHandler {
	return &AttachmentHandler{
		storageClient: storageClient,
	}
}

// UploadAttachment stores a chat image and returns its public URL. The client
// then sends an image message referencing that URL.
func (h *AttachmentHandler) UploadAttachment(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("File is required", err))
	}

	if fileHeader.Size > maxAttachmentSize {
		return response.Error(c, errors.BadRequest("File exceeds the 5MB limit", nil))
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return response.Error(c, errors.BadRequest("Only image attachments are supported", nil))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to read uploaded file", err))
	}
	defer file.Close()

	url, err := h.storageClient.UploadAttachment(c.Request().Context(), file, contentType)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to store attachment", err))
	}

	return response.Created(c, map[string]string{"url": url})
}
