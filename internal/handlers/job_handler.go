// internal/handlers/job_handler.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/service"
	"go_5_learn_rewards/internal/webutil"
)

// JobHandler exposes the batch pipelines to the admin API. Triggers
// return 202 immediately; the run continues in the background under
// its own timeout and its outcome is logged. Progress is visible via
// the status endpoint.
type JobHandler struct {
	batchService service.BatchService
	statsService service.StatsUpdateService
	timeout      time.Duration
}

func NewJobHandler(batchService service.BatchService, statsService service.StatsUpdateService, timeout time.Duration) *JobHandler {
	return &JobHandler{
		batchService: batchService,
		statsService: statsService,
		timeout:      timeout,
	}
}

type jobAcceptedResponse struct {
	Status string `json:"status"`
	Job    string `json:"job"`
}

// RunDaily handles POST /admin/jobs/daily.
func (h *JobHandler) RunDaily(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	if h.batchService.Running() {
		webutil.HandleError(w, logger, model.NewAppError("JOB_ALREADY_RUNNING", "The daily achievement check is already running.", "", model.ErrAlreadyRunning))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		result := h.batchService.RunDaily(ctx)
		slog.Info("Triggered daily check finished",
			slog.Bool("success", result.Success),
			slog.Int("processed", result.Processed),
			slog.Int("errors", result.Errors),
			slog.Int64("duration_ms", result.DurationMS),
			slog.String("message", result.Message),
		)
	}()

	webutil.RespondWithJSON(w, http.StatusAccepted, jobAcceptedResponse{Status: "started", Job: "daily"})
}

// RunStats handles POST /admin/jobs/stats.
func (h *JobHandler) RunStats(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	if h.statsService.Running() {
		webutil.HandleError(w, logger, model.NewAppError("JOB_ALREADY_RUNNING", "The stats update is already running.", "", model.ErrAlreadyRunning))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		result := h.statsService.UpdateAll(ctx)
		slog.Info("Triggered stats update finished",
			slog.Bool("success", result.Success),
			slog.Int("processed", result.Processed),
			slog.Int("errors", result.Errors),
			slog.Int64("duration_ms", result.DurationMS),
			slog.String("message", result.Message),
		)
	}()

	webutil.RespondWithJSON(w, http.StatusAccepted, jobAcceptedResponse{Status: "started", Job: "stats"})
}

// Status handles GET /admin/jobs/status.
func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	webutil.RespondWithJSON(w, http.StatusOK, model.JobStatus{
		DailyRunning: h.batchService.Running(),
		StatsRunning: h.statsService.Running(),
	})
}
