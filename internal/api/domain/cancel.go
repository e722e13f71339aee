package domain

import (
	"time"

	"github.com/datagrid-io/transferq/internal/api/model"
)

// CancelReason is recorded on the job and every file touched by a cancel.
const CancelReason = "Job canceled by the user"

// CancelJob applies the cancel transition to a job record in memory. The job
// and every file still in an active state move to CANCELED with a shared
// finish time and reason; files that already finished keep their original
// outcome. Canceling a job that is not active is a no-op, and the function
// reports whether anything changed so the caller knows if it must persist
// the update.
func CancelJob(job *model.Job, now time.Time) bool {
	if !job.JobState.IsActive() {
		return false
	}

	reason := CancelReason

	job.JobState = model.StateCanceled
	job.FinishTime = &now
	job.JobFinished = &now
	job.Reason = &reason

	for i := range job.Files {
		f := &job.Files[i]
		if !f.FileState.IsActive() {
			continue
		}
		f.FileState = model.StateCanceled
		f.FinishTime = &now
		f.JobFinished = &now
		f.Reason = &reason
	}

	return true
}
