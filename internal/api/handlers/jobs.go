package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dvloznov/finance-bot/internal/api/middleware"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/rs/zerolog"
)

// Update kinds that become jobs. Ignored updates never reach the queue.
var jobKinds = map[string]bool{"text": true, "audio": true, "unsupported": true, "callback": true}

var jobStatuses = map[jobs.JobStatus]bool{
	jobs.JobStatusPending:   true,
	jobs.JobStatusRunning:   true,
	jobs.JobStatusCompleted: true,
	jobs.JobStatusFailed:    true,
}

// JobsHandler exposes the recent update jobs for operators.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a jobs handler over store.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Debug().Err(err).Str("job_id", jobID).Msg("Update job not found")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs, newest first.
//
// Query parameters:
//   - kind: text, audio, unsupported or callback
//   - status: pending, running, completed or failed
//   - limit, offset: non-negative integers; limit 0 means no limit
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseJobFilter(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list update jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

func parseJobFilter(q url.Values) (jobs.JobFilter, error) {
	filter := jobs.JobFilter{
		Kind:   q.Get("kind"),
		Status: jobs.JobStatus(q.Get("status")),
	}
	if filter.Kind != "" && !jobKinds[filter.Kind] {
		return filter, fmt.Errorf("unknown kind %q", filter.Kind)
	}
	if filter.Status != "" && !jobStatuses[filter.Status] {
		return filter, fmt.Errorf("unknown status %q", filter.Status)
	}

	var err error
	if filter.Limit, err = nonNegative(q, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = nonNegative(q, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func nonNegative(q url.Values, name string) (int, error) {
	s := q.Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
