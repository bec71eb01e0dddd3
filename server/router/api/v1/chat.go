package v1

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/alsassist/ai/emotion"
	"github.com/hrygo/alsassist/ai/needs"
	"github.com/hrygo/alsassist/ai/observability/logging"
	"github.com/hrygo/alsassist/ai/orchestrator"
	"github.com/hrygo/alsassist/ai/recommend"
	"github.com/hrygo/alsassist/ai/stage"
	"github.com/hrygo/alsassist/internal/errclass"
)

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// ChatResponse is the reply to a chat request.
type ChatResponse struct {
	StageInfo       *stage.Signal              `json:"stage_info,omitempty"`
	Emotion         *emotion.Signal            `json:"emotion,omitempty"`
	Response        string                     `json:"response"`
	SessionID       string                     `json:"session_id"`
	Recommendations []recommend.Recommendation `json:"recommendations,omitempty"`
	Needs           []needs.Candidate          `json:"needs,omitempty"`
	Degraded        []string                   `json:"degraded,omitempty"`
}

// Chat runs one conversation turn. A missing session id starts a new session.
func (s *APIV1Service) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := orchestrator.ValidateMessage(req.Message); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx := logging.WithTurn(c.Request().Context(), req.SessionID, c.Response().Header().Get(echo.HeaderXRequestID))
	logging.FromContext(ctx).Info("Processing chat request", "user_id", req.UserID)

	result, err := s.Turns.ProcessTurn(ctx, orchestrator.TurnRequest{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Message:   req.Message,
	})
	if err != nil {
		if errclass.IsValidation(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		logging.FromContext(ctx).Error("Chat processing failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, FailureDetail)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Response:        result.Response,
		SessionID:       result.SessionID,
		Recommendations: result.Recommendations,
		StageInfo:       result.Stage,
		Emotion:         result.Emotion,
		Needs:           result.Needs,
		Degraded:        result.Degraded,
	})
}
