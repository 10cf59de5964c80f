package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/appliance-repair-api/services"
)

// ListNotifications handles GET /api/v1/notifications
// Query parameters: unread=true limits the result to unread notifications
func ListNotifications(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread") == "true"
	notifications, err := services.GetNotificationService().ListForRecipient(c.Request.Context(), string(actor.Role), actor.ID, unreadOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, notifications)
}

// MarkNotificationRead handles PATCH /api/v1/notifications/:id/read
func MarkNotificationRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_NOTIFICATION_ID", "Notification ID must be a positive integer", nil)
		return
	}

	notification, err := services.GetNotificationService().MarkRead(c.Request.Context(), uint(id), string(actor.Role), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, notification)
}

// MarkAllNotificationsRead handles PATCH /api/v1/notifications/read-all
func MarkAllNotificationsRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	updated, err := services.GetNotificationService().MarkAllRead(c.Request.Context(), string(actor.Role), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"updated": updated})
}
