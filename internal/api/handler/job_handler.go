package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/datagrid-io/transferq/internal/api/auth"
	"github.com/datagrid-io/transferq/internal/api/domain"
	"github.com/datagrid-io/transferq/internal/api/dto"
	"github.com/datagrid-io/transferq/internal/api/events"
	"github.com/datagrid-io/transferq/internal/api/model"
	"github.com/datagrid-io/transferq/internal/api/storage"
	"github.com/gin-gonic/gin"
)

// SubmitJob handles POST/PUT /api/v1/jobs.
// Validates the payload, checks the delegated credential, expands the
// submission into a job with files and stores it.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	principal, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid submission body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Badly formatted JSON request (" + err.Error() + ")",
		})
		return
	}

	// The delegated credential must be usable before anything is assembled.
	cred, err := h.store.GetCredential(c.Request.Context(), principal.DelegationID, principal.UserDN)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": `No delegation id found for "` + principal.UserDN + `"`,
			})
			return
		}
		h.logger.Error("Failed to look up credential", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up credential"})
		return
	}
	if err := auth.CheckCredential(cred); err != nil {
		h.respondError(c, err)
		return
	}

	job, err := domain.AssembleJob(&req, principal, h.submitHost)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.store.CreateJob(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to store job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store job"})
		return
	}

	h.publishEvent(c, events.EventJobSubmitted, job)

	h.logger.Info("Job submitted",
		slog.String("job_id", job.JobID),
		slog.String("user_dn", job.UserDN),
		slog.String("vo_name", job.VOName),
		slog.String("job_state", job.JobState.String()),
		slog.Int("files", len(job.Files)),
	)

	c.JSON(http.StatusOK, job)
}

// GetJob handles GET /api/v1/jobs/:job_id.
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.loadAuthorizedJob(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetJobField handles GET /api/v1/jobs/:job_id/:field.
// Returns a single attribute of the job, addressed by its wire name.
func (h *JobHandler) GetJobField(c *gin.Context) {
	job, err := h.loadAuthorizedJob(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	data, err := json.Marshal(job)
	if err != nil {
		h.logger.Error("Failed to serialize job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to serialize job"})
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		h.logger.Error("Failed to serialize job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to serialize job"})
		return
	}

	value, ok := fields[c.Param("field")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No such field"})
		return
	}

	c.Data(http.StatusOK, "application/json", value)
}

// ListJobs handles GET /api/v1/jobs.
// Lists jobs still in an active state, optionally filtered by owner and VO.
func (h *JobHandler) ListJobs(c *gin.Context) {
	filter := storage.JobFilter{
		UserDN: c.Query("user_dn"),
		VOName: c.Query("vo_name"),
	}

	jobs, err := h.store.ListActiveJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// CancelJob handles DELETE /api/v1/jobs/:job_id.
// Cancels the job and every file of it still in flight; canceling a job
// that already finished returns the stored record unchanged.
func (h *JobHandler) CancelJob(c *gin.Context) {
	job, err := h.loadAuthorizedJob(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if domain.CancelJob(job, time.Now().UTC()) {
		if err := h.store.SaveJobStates(c.Request.Context(), job); err != nil {
			h.logger.Error("Failed to store cancellation",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel job"})
			return
		}

		h.publishEvent(c, events.EventJobCanceled, job)

		h.logger.Info("Job canceled",
			slog.String("job_id", job.JobID),
			slog.String("user_dn", job.UserDN),
		)
	}

	c.JSON(http.StatusOK, job)
}

// Whoami handles GET /api/v1/whoami.
func (h *JobHandler) Whoami(c *gin.Context) {
	principal, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, dto.WhoamiResponse{
		UserDN:       principal.UserDN,
		VONames:      principal.VONames,
		VomsCred:     principal.VomsCred,
		DelegationID: principal.DelegationID,
	})
}

// loadAuthorizedJob fetches the job addressed by the request and checks the
// principal may act on it.
func (h *JobHandler) loadAuthorizedJob(c *gin.Context) (*model.Job, error) {
	principal, ok := auth.PrincipalFrom(c)
	if !ok {
		return nil, domain.Unauthorized("Unauthorized")
	}

	jobID := c.Param("job_id")

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, domain.NotFound("No job with the id %q has been found", jobID)
		}
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if !auth.IsAuthorized(auth.CapTransfer, principal, job.UserDN, job.VOName) {
		return nil, domain.Forbidden("Not enough permissions to check the job %q", jobID)
	}

	return job, nil
}

// publishEvent sends a lifecycle event without failing the request: the job
// is already committed, so a broker hiccup only costs a notification.
func (h *JobHandler) publishEvent(c *gin.Context, event string, job *model.Job) {
	if h.events == nil {
		return
	}
	if err := h.events.PublishJobEvent(c.Request.Context(), event, job); err != nil {
		h.logger.Warn("Failed to publish job event",
			slog.String("event", event),
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// respondError maps an error to the HTTP response, defaulting to 500 for
// anything that is not a RequestError.
func (h *JobHandler) respondError(c *gin.Context, err error) {
	var reqErr *domain.RequestError
	if errors.As(err, &reqErr) {
		c.JSON(reqErr.Status, gin.H{"error": reqErr.Message})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
