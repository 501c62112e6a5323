// internal/handlers/certification_handler.go
package handlers

import (
	"errors"
	"net/http"

	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/service"
	"go_5_learn_rewards/internal/webutil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type CertificationHandler struct {
	certService service.CertificationService
}

func NewCertificationHandler(certService service.CertificationService) *CertificationHandler {
	return &CertificationHandler{certService: certService}
}

// Verify handles GET /certifications/verify/{code}. The endpoint is
// public; invalid, revoked, tampered and unknown codes all return the
// same shape with is_valid=false.
func (h *CertificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	code := chi.URLParam(r, "code")
	if code == "" {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_INPUT", "Verification code is required.", "code", model.ErrInvalidInput))
		return
	}

	result, err := h.certService.Verify(r.Context(), code)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, result)
}

// Eligibility handles GET /users/{user_id}/certifications/{certification_id}/eligibility.
func (h *CertificationHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_INPUT", "Invalid user ID.", "user_id", model.ErrInvalidInput))
		return
	}
	certID, err := uuid.Parse(chi.URLParam(r, "certification_id"))
	if err != nil {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_INPUT", "Invalid certification ID.", "certification_id", model.ErrInvalidInput))
		return
	}

	elig, err := h.certService.CheckEligibility(r.Context(), userID, certID)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, elig)
}

// EligibilitySummary handles GET /users/{user_id}/certifications/eligibility.
func (h *CertificationHandler) EligibilitySummary(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_INPUT", "Invalid user ID.", "user_id", model.ErrInvalidInput))
		return
	}

	summary, err := h.certService.CheckAllEligibilities(r.Context(), userID)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, summary)
}

type awardCertificationRequest struct {
	SkipEligibilityCheck bool `json:"skip_eligibility_check"`
}

// Award handles POST /admin/users/{user_id}/certifications/{certification_id}/award.
// The body is optional; without one the eligibility check is enforced.
func (h *CertificationHandler) Award(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_INPUT", "Invalid user ID.", "user_id", model.ErrInvalidInput))
		return
	}
	certID, err := uuid.Parse(chi.URLParam(r, "certification_id"))
	if err != nil {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_INPUT", "Invalid certification ID.", "certification_id", model.ErrInvalidInput))
		return
	}

	var req awardCertificationRequest
	if r.ContentLength > 0 {
		if err := webutil.DecodeJSONBody(r, &req); err != nil {
			webutil.HandleError(w, logger, model.NewAppError("INVALID_INPUT", "Invalid request body.", "", model.ErrInvalidInput))
			return
		}
		if err := webutil.Validator.Struct(&req); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				webutil.HandleError(w, logger, webutil.NewValidationErrorResponse(verrs))
				return
			}
			webutil.HandleError(w, logger, err)
			return
		}
	}

	award, err := h.certService.Award(r.Context(), userID, certID, req.SkipEligibilityCheck)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusCreated, award)
}
