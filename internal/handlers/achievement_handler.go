// internal/handlers/achievement_handler.go
package handlers

import (
	"net/http"

	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/service"
	"go_5_learn_rewards/internal/webutil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AchievementHandler struct {
	achService service.AchievementService
}

func NewAchievementHandler(achService service.AchievementService) *AchievementHandler {
	return &AchievementHandler{achService: achService}
}

// ListEarned handles GET /users/{user_id}/achievements.
func (h *AchievementHandler) ListEarned(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_INPUT", "Invalid user ID.", "user_id", model.ErrInvalidInput))
		return
	}

	earned, err := h.achService.ListEarned(r.Context(), userID)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, earned)
}

// Progress handles GET /users/{user_id}/achievements/progress.
func (h *AchievementHandler) Progress(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_INPUT", "Invalid user ID.", "user_id", model.ErrInvalidInput))
		return
	}

	progress, err := h.achService.Progress(r.Context(), userID)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, progress)
}

// Check handles POST /admin/users/{user_id}/achievements/check and
// returns whatever was newly awarded.
func (h *AchievementHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_INPUT", "Invalid user ID.", "user_id", model.ErrInvalidInput))
		return
	}

	awarded, err := h.achService.CheckAndAward(r.Context(), userID)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	if awarded == nil {
		awarded = []model.EarnedAchievement{}
	}
	webutil.RespondWithJSON(w, http.StatusOK, awarded)
}
