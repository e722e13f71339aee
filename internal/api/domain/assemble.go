package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/datagrid-io/transferq/internal/api/dto"
	"github.com/datagrid-io/transferq/internal/api/model"
	"github.com/google/uuid"
)

// AssembleJob builds a complete job record from a submission payload: it
// applies parameter defaults, expands every transfer spec into files,
// binds the credential, derives the common endpoints and assigns the
// initial state. It does not persist anything.
func AssembleJob(req *dto.SubmitRequest, principal Principal, submitHost string) (*model.Job, error) {
	if len(req.Files) == 0 {
		return nil, BadRequest("No transfers specified")
	}

	params := EffectiveParams(req.Params)

	copyPinLifetime, err := intParam(params, "copy_pin_lifetime")
	if err != nil {
		return nil, err
	}
	bringOnline, err := intParam(params, "bring_online")
	if err != nil {
		return nil, err
	}

	jobID, err := uuid.NewUUID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}

	voName := ""
	if len(principal.VONames) > 0 {
		voName = principal.VONames[0]
	}

	job := &model.Job{
		JobID:            jobID.String(),
		JobState:         model.StateSubmitted,
		UserDN:           principal.UserDN,
		VOName:           voName,
		VomsCred:         strings.Join(principal.VomsCred, " "),
		SubmitHost:       submitHost,
		ReuseJob:         yesOrNo(params["reuse"]),
		OverwriteFlag:    yesOrNo(params["overwrite"]),
		VerifyChecksum:   yesOrNo(params["verify_checksum"]),
		SpaceToken:       stringParam(params, "spacetoken"),
		SourceSpaceToken: stringParam(params, "source_spacetoken"),
		BringOnline:      bringOnline,
		CopyPinLifetime:  copyPinLifetime,
		JobParams:        stringParam(params, "gridftp"),
		Priority:         3,
		SubmitTime:       time.Now().UTC(),
	}

	if meta := params["job_metadata"]; meta != nil {
		m, ok := meta.(map[string]interface{})
		if !ok {
			return nil, BadRequest("Malformed request: job_metadata must be an object")
		}
		job.JobMetadata = model.JSONMap(m)
	}

	// An inline credential blob and a delegation id are mutually exclusive.
	if req.Credential != nil {
		job.UserCred = *req.Credential
		job.CredID = ""
	} else {
		job.UserCred = ""
		job.CredID = principal.DelegationID
	}

	for index := range req.Files {
		spec := &req.Files[index]
		if spec.Sources == nil {
			return nil, BadRequest("Missing parameter: sources")
		}
		if spec.Destinations == nil {
			return nil, BadRequest("Missing parameter: destinations")
		}
		job.Files = append(job.Files, ExpandTransfer(spec, index)...)
	}

	if len(job.Files) == 0 {
		return nil, BadRequest("No pair with matching protocols")
	}

	// A requested pin lifetime means the data may need to be brought online
	// first, so the whole job starts in the staging path.
	if copyPinLifetime > -1 {
		job.JobState = model.StateStaging
		for i := range job.Files {
			job.Files[i].FileState = model.StateStaging
		}
	}

	deriveJobEndpoints(job)

	for i := range job.Files {
		job.Files[i].JobID = job.JobID
	}

	return job, nil
}

// deriveJobEndpoints sets the job-level source and destination endpoints to
// the single value shared by every file; any disagreement forces null.
func deriveJobEndpoints(job *model.Job) {
	if len(job.Files) == 0 {
		return
	}

	sourceSE := job.Files[0].SourceSE
	destSE := job.Files[0].DestSE
	job.SourceSE = &sourceSE
	job.DestSE = &destSE

	for i := range job.Files {
		if job.Files[i].SourceSE != sourceSE {
			job.SourceSE = nil
		}
		if job.Files[i].DestSE != destSE {
			job.DestSE = nil
		}
	}
}
