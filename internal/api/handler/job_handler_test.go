package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/datagrid-io/transferq/internal/api/auth"
	"github.com/datagrid-io/transferq/internal/api/domain"
	"github.com/datagrid-io/transferq/internal/api/events"
	"github.com/datagrid-io/transferq/internal/api/handler"
	"github.com/datagrid-io/transferq/internal/api/model"
	"github.com/datagrid-io/transferq/internal/api/router"
	"github.com/datagrid-io/transferq/internal/api/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserDN = "/DC=ch/DC=cern/OU=Test User"
	testVO     = "testvo"
	testDlgID  = "1234567890abcdef"
)

type fakeStore struct {
	jobs    map[string]*model.Job
	creds   map[string]*model.Credential
	created []*model.Job
	saved   []*model.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:  make(map[string]*model.Job),
		creds: make(map[string]*model.Credential),
	}
}

func (s *fakeStore) CreateJob(_ context.Context, job *model.Job) error {
	for i := range job.Files {
		job.Files[i].FileID = int64(i + 1)
	}
	s.jobs[job.JobID] = job
	s.created = append(s.created, job)
	return nil
}

func (s *fakeStore) GetJob(_ context.Context, jobID string) (*model.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (s *fakeStore) ListActiveJobs(_ context.Context, filter storage.JobFilter) ([]model.Job, error) {
	jobs := []model.Job{}
	for _, job := range s.jobs {
		if !job.JobState.IsActive() {
			continue
		}
		if filter.UserDN != "" && job.UserDN != filter.UserDN {
			continue
		}
		if filter.VOName != "" && job.VOName != filter.VOName {
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func (s *fakeStore) SaveJobStates(_ context.Context, job *model.Job) error {
	s.saved = append(s.saved, job)
	return nil
}

func (s *fakeStore) GetCredential(_ context.Context, dlgID, userDN string) (*model.Credential, error) {
	cred, ok := s.creds[dlgID+"|"+userDN]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	return cred, nil
}

type fakePublisher struct {
	published []string
}

func (p *fakePublisher) PublishJobEvent(_ context.Context, event string, _ *model.Job) error {
	p.published = append(p.published, event)
	return nil
}

func newTestRouter(store *fakeStore, pub *fakePublisher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return router.SetupRouter(&handler.Dependencies{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:      store,
		Events:     pub,
		SubmitHost: "fts.example.org",
	})
}

func pushDelegation(store *fakeStore, lifetime time.Duration) {
	store.creds[testDlgID+"|"+testUserDN] = &model.Credential{
		DlgID:           testDlgID,
		DN:              testUserDN,
		TerminationTime: time.Now().Add(lifetime),
	}
}

func doRequest(r *gin.Engine, method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if authenticated {
		req.Header.Set(auth.HeaderUserDN, testUserDN)
		req.Header.Set(auth.HeaderVO, testVO)
		req.Header.Set(auth.HeaderDelegationID, testDlgID)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const simpleSubmission = `{"files": [{"sources": ["root://source.es/file"], "destinations": ["root://dest.ch/file"]}]}`

func TestSubmitJob(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	pushDelegation(store, 12*time.Hour)
	r := newTestRouter(store, pub)

	body := `{
		"files": [{
			"sources": ["root://source.es/file"],
			"destinations": ["root://dest.ch/file"],
			"selection_strategy": "orderly",
			"checksum": "adler32:1234",
			"filesize": 1024,
			"metadata": {"mykey": "myvalue"}
		}],
		"params": {"overwrite": true, "verify_checksum": true}
	}`

	w := doRequest(r, http.MethodPut, "/api/v1/jobs", body, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))

	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, model.StateSubmitted, job.JobState)
	assert.Equal(t, testUserDN, job.UserDN)
	assert.True(t, job.OverwriteFlag)
	assert.True(t, job.VerifyChecksum)
	require.NotNil(t, job.SourceSE)
	assert.Equal(t, "root://source.es", *job.SourceSE)
	require.NotNil(t, job.DestSE)
	assert.Equal(t, "root://dest.ch", *job.DestSE)

	require.Len(t, job.Files, 1)
	f := job.Files[0]
	assert.Equal(t, model.StateSubmitted, f.FileState)
	assert.Equal(t, "root://source.es/file", f.SourceSURL)
	assert.Equal(t, "root://dest.ch/file", f.DestSURL)
	assert.Equal(t, 0, f.FileIndex)
	require.NotNil(t, f.Checksum)
	assert.Equal(t, "adler32:1234", *f.Checksum)
	require.NotNil(t, f.UserFilesize)
	assert.Equal(t, float64(1024), *f.UserFilesize)
	assert.Equal(t, "myvalue", f.FileMetadata["mykey"])

	require.Len(t, store.created, 1)
	assert.Equal(t, []string{events.EventJobSubmitted}, pub.published)
}

func TestSubmitJobStaging(t *testing.T) {
	store := newFakeStore()
	pushDelegation(store, 12*time.Hour)
	r := newTestRouter(store, &fakePublisher{})

	body := `{
		"files": [{"sources": ["srm://source.es/file"], "destinations": ["srm://dest.ch/file"]}],
		"params": {"copy_pin_lifetime": 3600, "bring_online": 60}
	}`

	w := doRequest(r, http.MethodPost, "/api/v1/jobs", body, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, model.StateStaging, job.JobState)
	require.Len(t, job.Files, 1)
	assert.Equal(t, model.StateStaging, job.Files[0].FileState)
}

func TestSubmitJobErrors(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		authenticated bool
		lifetime      time.Duration
		wantStatus    int
		wantError     string
	}{
		{
			name:          "unauthenticated",
			body:          simpleSubmission,
			authenticated: false,
			lifetime:      12 * time.Hour,
			wantStatus:    http.StatusUnauthorized,
		},
		{
			name:          "malformed JSON",
			body:          "thisXisXnotXjson",
			authenticated: true,
			lifetime:      12 * time.Hour,
			wantStatus:    http.StatusBadRequest,
			wantError:     "Badly formatted JSON request",
		},
		{
			name:          "no delegation",
			body:          simpleSubmission,
			authenticated: true,
			lifetime:      0, // no credential stored at all
			wantStatus:    http.StatusForbidden,
			wantError:     "No delegation id found",
		},
		{
			name:          "expired delegation",
			body:          simpleSubmission,
			authenticated: true,
			lifetime:      -2 * time.Hour,
			wantStatus:    http.StatusForbidden,
			wantError:     "expired",
		},
		{
			name:          "delegation about to expire",
			body:          simpleSubmission,
			authenticated: true,
			lifetime:      30 * time.Minute,
			wantStatus:    http.StatusForbidden,
			wantError:     "less than one hour",
		},
		{
			name:          "no transfers",
			body:          `{"params": {}}`,
			authenticated: true,
			lifetime:      12 * time.Hour,
			wantStatus:    http.StatusBadRequest,
			wantError:     "No transfers specified",
		},
		{
			name:          "mismatched protocols",
			body:          `{"files": [{"sources": ["http://a/f"], "destinations": ["root://b/f"]}]}`,
			authenticated: true,
			lifetime:      12 * time.Hour,
			wantStatus:    http.StatusBadRequest,
			wantError:     "No pair with matching protocols",
		},
		{
			name:          "local file urls",
			body:          `{"files": [{"sources": ["file:///etc/passwd"], "destinations": ["file:///srv/pub"]}]}`,
			authenticated: true,
			lifetime:      12 * time.Hour,
			wantStatus:    http.StatusBadRequest,
			wantError:     "No pair with matching protocols",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			if tt.lifetime != 0 {
				pushDelegation(store, tt.lifetime)
			}
			pub := &fakePublisher{}
			r := newTestRouter(store, pub)

			w := doRequest(r, http.MethodPut, "/api/v1/jobs", tt.body, tt.authenticated)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantError != "" {
				assert.Contains(t, w.Body.String(), tt.wantError)
			}
			assert.Empty(t, store.created)
			assert.Empty(t, pub.published)
		})
	}
}

func seedJob(store *fakeStore, state model.State) *model.Job {
	job := &model.Job{
		JobID:    "d23cde6a-874b-11eb-b2f2-0242ac130003",
		JobState: state,
		UserDN:   testUserDN,
		VOName:   testVO,
		Files: []model.File{
			{FileID: 1, JobID: "d23cde6a-874b-11eb-b2f2-0242ac130003", FileState: state},
		},
	}
	store.jobs[job.JobID] = job
	return job
}

func TestGetJob(t *testing.T) {
	store := newFakeStore()
	seeded := seedJob(store, model.StateSubmitted)
	r := newTestRouter(store, &fakePublisher{})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs/"+seeded.JobID, "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, seeded.JobID, job.JobID)
	assert.Equal(t, model.StateSubmitted, job.JobState)
	assert.Len(t, job.Files, 1)
}

func TestGetJobNotFound(t *testing.T) {
	r := newTestRouter(newFakeStore(), &fakePublisher{})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs/1234x", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No job with the id")
}

func TestGetJobForbidden(t *testing.T) {
	store := newFakeStore()
	job := seedJob(store, model.StateSubmitted)
	job.UserDN = "/DC=ch/DC=cern/OU=Someone Else"
	job.VOName = "othervo"
	r := newTestRouter(store, &fakePublisher{})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs/"+job.JobID, "", true)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Not enough permissions")
}

func TestGetJobField(t *testing.T) {
	store := newFakeStore()
	seeded := seedJob(store, model.StateSubmitted)
	r := newTestRouter(store, &fakePublisher{})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs/"+seeded.JobID+"/job_state", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"SUBMITTED"`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/jobs/"+seeded.JobID+"/no_such_thing", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No such field")
}

func TestListJobs(t *testing.T) {
	store := newFakeStore()
	seeded := seedJob(store, model.StateActive)
	r := newTestRouter(store, &fakePublisher{})

	w := doRequest(r, http.MethodGet, "/api/v1/jobs?user_dn="+url.QueryEscape(testUserDN), "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var jobs []model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, seeded.JobID, jobs[0].JobID)
}

func TestCancelJob(t *testing.T) {
	store := newFakeStore()
	seeded := seedJob(store, model.StateActive)
	pub := &fakePublisher{}
	r := newTestRouter(store, pub)

	w := doRequest(r, http.MethodDelete, "/api/v1/jobs/"+seeded.JobID, "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, model.StateCanceled, job.JobState)
	require.NotNil(t, job.Reason)
	assert.Equal(t, domain.CancelReason, *job.Reason)
	require.Len(t, job.Files, 1)
	assert.Equal(t, model.StateCanceled, job.Files[0].FileState)

	require.Len(t, store.saved, 1)
	assert.Equal(t, []string{events.EventJobCanceled}, pub.published)
}

func TestCancelFinishedJobIsNoOp(t *testing.T) {
	store := newFakeStore()
	seeded := seedJob(store, model.StateFinished)
	pub := &fakePublisher{}
	r := newTestRouter(store, pub)

	w := doRequest(r, http.MethodDelete, "/api/v1/jobs/"+seeded.JobID, "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, model.StateFinished, job.JobState)
	assert.Nil(t, job.Reason)

	assert.Empty(t, store.saved)
	assert.Empty(t, pub.published)
}

func TestWhoami(t *testing.T) {
	r := newTestRouter(newFakeStore(), &fakePublisher{})

	w := doRequest(r, http.MethodGet, "/api/v1/whoami", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		UserDN       string   `json:"user_dn"`
		VONames      []string `json:"vos"`
		DelegationID string   `json:"delegation_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testUserDN, resp.UserDN)
	assert.Equal(t, []string{testVO}, resp.VONames)
	assert.Equal(t, testDlgID, resp.DelegationID)
}

func TestHealthDoesNotRequireAuth(t *testing.T) {
	r := newTestRouter(newFakeStore(), &fakePublisher{})

	w := doRequest(r, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}
