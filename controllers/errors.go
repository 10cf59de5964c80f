package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/appliance-repair-api/services"
	"github.com/kendall-kelly/appliance-repair-api/utils"
	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"go.uber.org/zap"
)

var errorLogger = zap.NewNop()

// SetLogger sets the logger used for unexpected handler errors
func SetLogger(log *zap.Logger) {
	if log != nil {
		errorLogger = log
	}
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondErrorCode(c *gin.Context, status int, code, message string, details any) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// respondError maps service and workflow errors onto the API error envelope
func respondError(c *gin.Context, err error) {
	var (
		authErr       *workflow.AuthorizationError
		transitionErr *workflow.InvalidTransitionError
		validationErr *workflow.ValidationError
		concurrentErr *workflow.ConcurrentModificationError
		uploadErr     *utils.FileUploadError
	)

	switch {
	case errors.As(err, &authErr):
		respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "You are not allowed to act on this order", nil)
	case errors.As(err, &transitionErr):
		respondErrorCode(c, http.StatusConflict, "INVALID_TRANSITION", transitionErr.Error(), gin.H{
			"status": transitionErr.Status,
			"action": transitionErr.Action,
		})
	case errors.As(err, &validationErr):
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", validationErr.Fields)
	case errors.As(err, &concurrentErr):
		respondErrorCode(c, http.StatusConflict, "CONCURRENT_MODIFICATION", "The order was changed by another request, reload and retry", gin.H{
			"expected_status": concurrentErr.ExpectedStatus,
		})
	case errors.As(err, &uploadErr):
		respondErrorCode(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message, nil)
	case errors.Is(err, services.ErrOrderNotFound):
		respondErrorCode(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found", nil)
	case errors.Is(err, services.ErrAddressNotFound):
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", gin.H{"address_id": "not found"})
	case errors.Is(err, services.ErrNotificationNotFound):
		respondErrorCode(c, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "Notification not found", nil)
	case errors.Is(err, services.ErrVerificationInput):
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid phone number or code type", nil)
	case errors.Is(err, services.ErrVerificationNotFound), errors.Is(err, services.ErrVerificationMismatch):
		respondErrorCode(c, http.StatusBadRequest, "INVALID_CODE", "Verification code is invalid", nil)
	case errors.Is(err, services.ErrVerificationExpired):
		respondErrorCode(c, http.StatusGone, "CODE_EXPIRED", "Verification code has expired", nil)
	case errors.Is(err, services.ErrVerificationAttempts):
		respondErrorCode(c, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Too many wrong codes, request a new one", nil)
	default:
		errorLogger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		respondErrorCode(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong", nil)
	}
}

func bindingError(c *gin.Context, err error) {
	respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
}
