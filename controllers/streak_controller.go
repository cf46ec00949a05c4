package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd/middleware"
	"github.com/devarispbrown/gtsd/services"
	"github.com/devarispbrown/gtsd/utils"
)

const retryAfter = 2 * time.Second

// StreakService is the part of the streak engine the HTTP layer needs.
type StreakService interface {
	Summary(ctx context.Context, userID uint) (*services.StreakSummary, error)
	EvaluateAndCredit(ctx context.Context, userID uint) (*services.Evaluation, error)
}

// StreakController serves the streak read endpoints and the internal compliance trigger.
type StreakController struct {
	engine StreakService
	log    *zap.Logger
}

// NewStreakController creates a new controller instance.
func NewStreakController(engine StreakService, log *zap.Logger) *StreakController {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreakController{engine: engine, log: log}
}

// MySummary returns the caller's streak and badges.
func (s *StreakController) MySummary(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	s.summary(ctx, userID)
}

// UserSummary returns the streak and badges of the user in the path. Streaks
// and badges are public profile data, so any authenticated caller may read
// any user's summary. Nothing private such as tasks or timezone is exposed.
func (s *StreakController) UserSummary(ctx *gin.Context) {
	userID, err := utils.ParseID(ctx.Param("id"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid user id")
		return
	}
	s.summary(ctx, userID)
}

func (s *StreakController) summary(ctx *gin.Context, userID uint) {
	summary, err := s.engine.Summary(ctx.Request.Context(), userID)
	if err != nil {
		s.respondError(ctx, userID, err)
		return
	}
	utils.Success(ctx, summary)
}

// Evaluate is called by the task workflow after a task changes. It evaluates
// today's compliance and credits the streak when the day qualifies.
func (s *StreakController) Evaluate(ctx *gin.Context) {
	userID, err := utils.ParseID(ctx.Param("id"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid user id")
		return
	}

	eval, err := s.engine.EvaluateAndCredit(ctx.Request.Context(), userID)
	if err != nil {
		s.respondError(ctx, userID, err)
		return
	}
	utils.Success(ctx, eval)
}

func (s *StreakController) respondError(ctx *gin.Context, userID uint, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
	case errors.Is(err, services.ErrInvalidTimezone), errors.Is(err, services.ErrTimezoneRequired):
		utils.Error(ctx, http.StatusUnprocessableEntity, 42210, err.Error())
	case services.IsRetryable(err):
		s.log.Warn("streak request failed, retryable", zap.Uint("user_id", userID), zap.Error(err))
		utils.Unavailable(ctx, 50310, "streak service temporarily unavailable", retryAfter)
	case errors.Is(err, services.ErrIntegrityViolation):
		s.log.Error("streak integrity violation", zap.Uint("user_id", userID), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50010, "streak update rejected")
	case errors.Is(err, context.Canceled):
		utils.Error(ctx, 499, 49900, "request canceled")
	default:
		s.log.Error("streak request failed", zap.Uint("user_id", userID), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50011, "internal error")
	}
}
