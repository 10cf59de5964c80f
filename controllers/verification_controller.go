package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/appliance-repair-api/services"
)

// IssueCodeRequest represents the request body for sending a verification code
type IssueCodeRequest struct {
	Phone string `json:"phone" binding:"required"`
	Type  string `json:"type" binding:"required,oneof=register reset-password change-number"`
}

// VerifyCodeRequest represents the request body for checking a verification code
type VerifyCodeRequest struct {
	Phone string `json:"phone" binding:"required"`
	Type  string `json:"type" binding:"required,oneof=register reset-password change-number"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// IssueVerificationCode handles POST /api/v1/verification-codes
func IssueVerificationCode(c *gin.Context) {
	var req IssueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	code, err := services.GetVerificationService().Issue(c.Request.Context(), req.Phone, req.Type)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{
		"phone":      code.Phone,
		"type":       code.Type,
		"expires_at": code.ExpiresAt,
	})
}

// VerifyCode handles POST /api/v1/verification-codes/verify
func VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	if err := services.GetVerificationService().Verify(c.Request.Context(), req.Phone, req.Type, req.Code); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"verified": true})
}
