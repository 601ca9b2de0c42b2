package notification

import (
	"context"
	"net/http"
	"strconv"

	"Campus2Career/pkg/middleware"

	"github.com/labstack/echo/v4"
)

// NotificationHandler handles HTTP requests for notifications.
type NotificationHandler struct {
	service *NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(service *NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// ListNotifications returns the caller's notifications, newest first.
// Query params: limit (default 50), unread=true to filter unread only.
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	claims, ok := c.Get("user").(*middleware.JWTClaims)
	if !ok || claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}

	limit := int64(50)
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
		limit = parsed
	}
	unreadOnly := c.QueryParam("unread") == "true"

	notifications, err := h.service.ListByRecipient(context.Background(), claims.UserID, limit, unreadOnly)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch notifications"})
	}
	if notifications == nil {
		notifications = []*Notification{}
	}

	unreadCount, err := h.service.CountUnread(context.Background(), claims.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch notifications"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"unread_count":  unreadCount,
	})
}

// MarkRead marks one of the caller's notifications as read. Marking a
// notification that belongs to someone else changes nothing.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	claims, ok := c.Get("user").(*middleware.JWTClaims)
	if !ok || claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}

	updated, err := h.service.MarkRead(context.Background(), claims.UserID, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to mark notification read"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"updated": updated})
}

// MarkAllRead marks all of the caller's notifications as read.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	claims, ok := c.Get("user").(*middleware.JWTClaims)
	if !ok || claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing user claims"})
	}

	count, err := h.service.MarkAllRead(context.Background(), claims.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to mark notifications read"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"updated": count})
}

// BroadcastRequest represents an admin message to a single recipient.
type BroadcastRequest struct {
	RecipientID    string `json:"recipient_id"`
	RecipientEmail string `json:"recipient_email"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
}

// Broadcast lets admins push an admin-message notification directly.
func (h *NotificationHandler) Broadcast(c echo.Context) error {
	var req BroadcastRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.RecipientID == "" || req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "recipient_id and message are required"})
	}
	if req.Subject == "" {
		req.Subject = "Message from the Campus2Career team"
	}

	result := h.service.Dispatch(context.Background(), TypeAdminMessage, req.RecipientID, req.RecipientEmail, map[string]string{
		"subject": req.Subject,
		"message": req.Message,
	})
	if !result.Success {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to send notification"})
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"notification_id": result.NotificationID,
		"email_sent":      result.EmailSent,
	})
}
