package utils

import (
	"fmt"
	"strings"
)

const (
	// MaxImageSize is 10MB in bytes
	MaxImageSize = 10 * 1024 * 1024
	// MaxVideoSize is 50MB in bytes
	MaxVideoSize = 50 * 1024 * 1024
)

var mediaLimits = map[string]int64{
	"image/png":  MaxImageSize,
	"image/jpeg": MaxImageSize,
	"video/mp4":  MaxVideoSize,
}

// FileUploadError represents a media upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateMedia checks the declared content type and size of an order photo or video
func ValidateMedia(contentType string, size int64) error {
	limit, ok := mediaLimits[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: "Only image/png, image/jpeg and video/mp4 files are allowed",
		}
	}

	if size <= 0 {
		return &FileUploadError{
			Code:    "INVALID_FILE_SIZE",
			Message: "File size must be greater than zero",
		}
	}

	// Check file size
	if size > limit {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", limit/(1024*1024)),
		}
	}

	return nil
}
