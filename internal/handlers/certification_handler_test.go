// internal/handlers/certification_handler_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go_5_learn_rewards/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCertService struct {
	verifyResult *model.VerificationResult
	eligibility  *model.CertificationEligibility
	summary      *model.EligibilitySummary
	award        *model.CertificationAward
	gotSkip      bool
	err          error
}

func (s *stubCertService) CheckEligibility(ctx context.Context, userID, certID uuid.UUID) (*model.CertificationEligibility, error) {
	return s.eligibility, s.err
}
func (s *stubCertService) CheckAllEligibilities(ctx context.Context, userID uuid.UUID) (*model.EligibilitySummary, error) {
	return s.summary, s.err
}
func (s *stubCertService) Award(ctx context.Context, userID, certID uuid.UUID, skip bool) (*model.CertificationAward, error) {
	s.gotSkip = skip
	return s.award, s.err
}
func (s *stubCertService) AutoAwardEligible(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return nil, s.err
}
func (s *stubCertService) Verify(ctx context.Context, code string) (*model.VerificationResult, error) {
	return s.verifyResult, s.err
}

func newCertRouter(svc *stubCertService) http.Handler {
	h := NewCertificationHandler(svc)
	r := chi.NewRouter()
	r.Get("/certifications/verify/{code}", h.Verify)
	r.Get("/users/{user_id}/certifications/eligibility", h.EligibilitySummary)
	r.Get("/users/{user_id}/certifications/{certification_id}/eligibility", h.Eligibility)
	r.Post("/users/{user_id}/certifications/{certification_id}/award", h.Award)
	return r
}

func Test_CertificationHandler_Verify(t *testing.T) {
	earnedAt := time.Now().UTC().Truncate(time.Second)
	svc := &stubCertService{
		verifyResult: &model.VerificationResult{
			IsValid:  true,
			UserName: "Alice",
			EarnedAt: &earnedAt,
		},
	}
	router := newCertRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/certifications/verify/MAI-ABC123-XYZ789", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.VerificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.IsValid)
	assert.Equal(t, "Alice", got.UserName)
}

func Test_CertificationHandler_Verify_InvalidCodeSameShape(t *testing.T) {
	svc := &stubCertService{verifyResult: &model.VerificationResult{IsValid: false}}
	router := newCertRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/certifications/verify/NOPE", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Unknown codes are a 200 with is_valid=false, not a 404.
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.VerificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.IsValid)
}

func Test_CertificationHandler_Eligibility_BadUserID(t *testing.T) {
	router := newCertRouter(&stubCertService{})

	req := httptest.NewRequest(http.MethodGet, "/users/not-a-uuid/certifications/"+uuid.NewString()+"/eligibility", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_CertificationHandler_Award_NotEligible(t *testing.T) {
	svc := &stubCertService{
		err: model.NewAppError("NOT_ELIGIBLE", "Requirements not met.", "", model.ErrNotEligible),
	}
	router := newCertRouter(svc)

	req := httptest.NewRequest(http.MethodPost,
		"/users/"+uuid.NewString()+"/certifications/"+uuid.NewString()+"/award", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp model.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_ELIGIBLE", resp.Error.Code)
}

func Test_CertificationHandler_Award_Success(t *testing.T) {
	svc := &stubCertService{
		award: &model.CertificationAward{
			UserCertificationID: uuid.New(),
			VerificationCode:    "MAI-ABC123-XYZ789",
			VerificationHash:    "deadbeef",
		},
	}
	router := newCertRouter(svc)

	req := httptest.NewRequest(http.MethodPost,
		"/users/"+uuid.NewString()+"/certifications/"+uuid.NewString()+"/award", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got model.CertificationAward
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "MAI-ABC123-XYZ789", got.VerificationCode)
	assert.False(t, svc.gotSkip)
}

func Test_CertificationHandler_Award_SkipEligibility(t *testing.T) {
	svc := &stubCertService{award: &model.CertificationAward{UserCertificationID: uuid.New()}}
	router := newCertRouter(svc)

	body := strings.NewReader(`{"skip_eligibility_check": true}`)
	req := httptest.NewRequest(http.MethodPost,
		"/users/"+uuid.NewString()+"/certifications/"+uuid.NewString()+"/award", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, svc.gotSkip)
}

func Test_CertificationHandler_Award_UnknownBodyField(t *testing.T) {
	svc := &stubCertService{award: &model.CertificationAward{UserCertificationID: uuid.New()}}
	router := newCertRouter(svc)

	body := strings.NewReader(`{"skip_everything": true}`)
	req := httptest.NewRequest(http.MethodPost,
		"/users/"+uuid.NewString()+"/certifications/"+uuid.NewString()+"/award", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_CertificationHandler_EligibilitySummary(t *testing.T) {
	certID := uuid.New()
	svc := &stubCertService{
		summary: &model.EligibilitySummary{
			Eligible: []uuid.UUID{certID},
			Pending:  []model.PendingCertification{},
		},
	}
	router := newCertRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString()+"/certifications/eligibility", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.EligibilitySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Eligible, 1)
	assert.Equal(t, certID, got.Eligible[0])
}
