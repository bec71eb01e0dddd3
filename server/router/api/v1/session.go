package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/alsassist/ai/needs"
	"github.com/hrygo/alsassist/ai/session"
	"github.com/hrygo/alsassist/store"
)

// GetSession returns the archival snapshot of a session.
func (s *APIV1Service) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Sessions.Export(c.Request().Context(), c.Param("id")))
}

// ClearSession deletes a session.
func (s *APIV1Service) ClearSession(c echo.Context) error {
	if err := s.Sessions.Clear(c.Request().Context(), c.Param("id")); err != nil {
		slog.Warn("Failed to clear session", "session_id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
	}
	return c.NoContent(http.StatusNoContent)
}

// ArchiveRequest is the body of POST /api/v1/sessions/:id/archive.
type ArchiveRequest struct {
	UserID  string `json:"user_id"`
	Summary string `json:"summary,omitempty"`
}

// ArchiveResponse identifies the archived conversation.
type ArchiveResponse struct {
	ArchivedAt     time.Time `json:"archived_at"`
	ConversationID string    `json:"conversation_id"`
	StageEstimate  string    `json:"stage_estimate"`
	Summary        string    `json:"summary"`
	NeedsDetected  []string  `json:"needs_detected"`
	Messages       int       `json:"messages"`
}

// ArchiveSession copies a session into the durable archive together with the
// current stage estimate and the needs found in the user's messages. Without
// a client summary one is generated.
func (s *APIV1Service) ArchiveSession(c echo.Context) error {
	if s.Archive == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "archive is not configured")
	}

	var req ArchiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	ctx := c.Request().Context()
	snap, err := s.Sessions.ExportErr(ctx, c.Param("id"))
	if err != nil {
		slog.Warn("Failed to read session for archive", "session_id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
	}
	if len(snap.Messages) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "session has no messages")
	}

	conv := &store.Conversation{
		UserID:   req.UserID,
		ChatID:   snap.SessionID,
		Summary:  req.Summary,
		Messages: make([]store.ConversationMessage, 0, len(snap.Messages)),
	}
	var userText []string
	for _, m := range snap.Messages {
		conv.Messages = append(conv.Messages, store.ConversationMessage{
			Timestamp: m.Timestamp,
			Role:      string(m.Role),
			Content:   m.Content,
		})
		if m.Role == session.RoleUser {
			userText = append(userText, m.Content)
		}
	}
	if s.Stage != nil {
		sig := s.Stage.Estimate(ctx, req.UserID)
		conv.StageEstimate = string(sig.Stage)
		if s.Needs != nil {
			conv.NeedsDetected = needs.Types(s.Needs.Analyze(strings.Join(userText, "\n"), sig.Stage))
		}
	}

	if strings.TrimSpace(conv.Summary) == "" && s.Summarizer != nil {
		conv.Summary = s.Summarizer.Summarize(ctx, snap.Messages).Text
	}

	created, err := s.Archive.AppendConversation(ctx, conv)
	if err != nil {
		slog.Error("Failed to archive session", "session_id", snap.SessionID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to archive session")
	}
	return c.JSON(http.StatusCreated, ArchiveResponse{
		ArchivedAt:     created.Timestamp,
		ConversationID: created.ID,
		StageEstimate:  created.StageEstimate,
		Summary:        created.Summary,
		NeedsDetected:  created.NeedsDetected,
		Messages:       len(created.Messages),
	})
}

// FeedbackRequest is the body of POST /api/v1/feedback.
type FeedbackRequest struct {
	ConversationID string `json:"conversation_id"`
	Rating         int    `json:"rating"`
}

// FeedbackResponse acknowledges a rating.
type FeedbackResponse struct {
	ReceivedAt     time.Time `json:"received_at"`
	ConversationID string    `json:"conversation_id"`
	Status         string    `json:"status"`
}

// Feedback records a 1-5 rating on an archived conversation.
func (s *APIV1Service) Feedback(c echo.Context) error {
	if s.Archive == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "archive is not configured")
	}

	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.ConversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}
	if req.Rating < store.MinFeedbackRating || req.Rating > store.MaxFeedbackRating {
		return echo.NewHTTPError(http.StatusBadRequest, "rating must be between 1 and 5")
	}

	if err := s.Archive.SetFeedback(c.Request().Context(), req.ConversationID, req.Rating); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		slog.Error("Failed to store feedback", "conversation_id", req.ConversationID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store feedback")
	}
	return c.JSON(http.StatusOK, FeedbackResponse{
		ReceivedAt:     time.Now().UTC(),
		ConversationID: req.ConversationID,
		Status:         "received",
	})
}
