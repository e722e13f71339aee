package handler

import (
	"context"
	"log/slog"

	"github.com/datagrid-io/transferq/internal/api/model"
	"github.com/datagrid-io/transferq/internal/api/storage"
)

// JobStore is the persistence surface the handlers need. *storage.Storage
// implements it; tests substitute an in-memory fake.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListActiveJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
	SaveJobStates(ctx context.Context, job *model.Job) error
	GetCredential(ctx context.Context, dlgID, userDN string) (*model.Credential, error)
}

// EventPublisher emits job lifecycle events. *events.Publisher implements it.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, event string, job *model.Job) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Store      JobStore
	Events     EventPublisher
	SubmitHost string
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger     *slog.Logger
	store      JobStore
	events     EventPublisher
	submitHost string
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:     deps.Logger,
		store:      deps.Store,
		events:     deps.Events,
		submitHost: deps.SubmitHost,
	}
}
