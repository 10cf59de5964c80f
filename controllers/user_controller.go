package controllers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/appliance-repair-api/config"
	"github.com/kendall-kelly/appliance-repair-api/middleware"
	"github.com/kendall-kelly/appliance-repair-api/models"
	"github.com/kendall-kelly/appliance-repair-api/services"
	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"go.uber.org/zap"
)

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"omitempty"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone" binding:"omitempty,e164"`
}

func isUniqueViolation(err error) bool {
	// works with both PostgreSQL and SQLite
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

// CreateUser handles POST /api/v1/users - creates the caller's profile from Auth0 userinfo.
// The role comes from the token; tokens without one register individual customers.
func CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token", nil)
		return
	}

	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found", nil)
		return
	}

	userInfo, err := services.NewAuth0Service(config.GetConfig()).GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		respondErrorCode(c, http.StatusInternalServerError, "AUTH0_ERROR", "Failed to fetch user information from Auth0", nil)
		return
	}

	if userInfo.Email == "" {
		respondErrorCode(c, http.StatusBadRequest, "MISSING_EMAIL", "Email not provided by Auth0", nil)
		return
	}
	if userInfo.Name == "" {
		respondErrorCode(c, http.StatusBadRequest, "MISSING_NAME", "Name not provided by Auth0", nil)
		return
	}

	user := models.User{
		Auth0ID: auth0ID,
		Name:    userInfo.Name,
		Email:   userInfo.Email,
		Role:    middleware.GetClaimedRole(c),
	}
	if userInfo.PhoneNumber != "" {
		phone := userInfo.PhoneNumber
		user.Phone = &phone
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if err := db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			respondErrorCode(c, http.StatusConflict, "USER_EXISTS", "A user with this Auth0 ID or email already exists", nil)
			return
		}
		respondErrorCode(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create user", nil)
		return
	}

	respond(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func GetMyProfile(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
		return
	}
	respond(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile.
// Admins are notified of every change.
func UpdateMyProfile(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	updates := make(map[string]any)
	if req.Name != "" && req.Name != user.Name {
		updates["name"] = req.Name
	}
	if req.Email != "" && req.Email != user.Email {
		updates["email"] = req.Email
	}
	if req.Phone != "" && (user.Phone == nil || *user.Phone != req.Phone) {
		updates["phone"] = req.Phone
	}

	if len(updates) == 0 {
		respond(c, http.StatusOK, user)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if err := db.Model(user).Updates(updates).Error; err != nil {
		if isUniqueViolation(err) {
			respondErrorCode(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists", nil)
			return
		}
		respondErrorCode(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update user profile", nil)
		return
	}

	var updated models.User
	if err := db.First(&updated, user.ID).Error; err != nil {
		respondErrorCode(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch updated profile", nil)
		return
	}

	notifyProfileUpdated(c, &updated, updates)
	respond(c, http.StatusOK, updated)
}

func notifyProfileUpdated(c *gin.Context, user *models.User, updates map[string]any) {
	notifier := services.GetNotificationService()
	if notifier == nil {
		return
	}

	fields := make([]string, 0, len(updates))
	for field := range updates {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	err := notifier.SendNotification(c.Request.Context(),
		fmt.Sprintf("%s %s (#%d) updated their profile", user.Role, user.Name, user.ID),
		models.NotificationProfileUpdated,
		string(workflow.RoleAdmin),
		nil,
		map[string]any{"user_id": user.ID, "fields": fields},
	)
	if err != nil {
		errorLogger.Warn("profile notification failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}
}
