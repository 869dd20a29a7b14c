package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jam-service/internal/middleware"
	"jam-service/internal/models"
	"jam-service/internal/repositories"
	"jam-service/internal/session"
	"jam-service/internal/telemetry"
)

// SessionHandler manages the session lifecycle endpoints.
type SessionHandler struct {
	sessions *session.Service
	audit    *telemetry.AuditEmitter
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions *session.Service, audit *telemetry.AuditEmitter) *SessionHandler {
	return &SessionHandler{sessions: sessions, audit: audit}
}

// Start handles POST /groups/:group_id/session.
func (h *SessionHandler) Start(c *gin.Context) {
	groupID := c.Param("group_id")
	participant, ok := middleware.ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req struct {
		Platform        string `json:"platform"`
		MaxParticipants int    `json:"max_participants"`
	}
	// body is optional; platform defaults to the group's own
	_ = c.ShouldBindJSON(&req)

	created, err := h.sessions.Start(c.Request.Context(), groupID, participant, req.Platform, req.MaxParticipants)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrGroupNotFound):
			h.emitAudit(c, "ERROR", "group not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		case errors.Is(err, session.ErrSessionExists):
			h.emitAudit(c, "ERROR", "session already active")
			c.JSON(http.StatusConflict, gin.H{"error": "session already active"})
		default:
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Session started")
	c.JSON(http.StatusCreated, created)
}

// Stop handles DELETE /groups/:group_id/session.
func (h *SessionHandler) Stop(c *gin.Context) {
	groupID := c.Param("group_id")

	if err := h.sessions.Stop(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			h.emitAudit(c, "ERROR", "no active session")
			c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not stop session"})
		return
	}

	h.emitAudit(c, "INFO", "Session stopped")
	c.Status(http.StatusNoContent)
}

// Get handles GET /groups/:group_id/session.
func (h *SessionHandler) Get(c *gin.Context) {
	groupID := c.Param("group_id")

	snapshot, queue, err := h.sessions.Snapshot(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": snapshot, "queue": queue})
}

// GetQueue handles GET /groups/:group_id/queue.
func (h *SessionHandler) GetQueue(c *gin.Context) {
	groupID := c.Param("group_id")

	_, queue, err := h.sessions.Snapshot(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"queue": queue})
}

// UpdateSettings handles PATCH /groups/:group_id/session/settings.
func (h *SessionHandler) UpdateSettings(c *gin.Context) {
	groupID := c.Param("group_id")
	participant, ok := middleware.ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var settings models.SessionSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.sessions.UpdateSettings(c.Request.Context(), groupID, participant, settings)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoActiveSession):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		case errors.Is(err, session.ErrNotAllowed):
			h.emitAudit(c, "ERROR", "not allowed")
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		default:
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update settings"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Session settings updated")
	c.JSON(http.StatusOK, updated)
}

func (h *SessionHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), participantIDFromContext(c))
}
