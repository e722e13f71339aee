package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Job is one submitted transfer request. It owns an ordered set of Files
// expanded from the submission payload; files are never shared across jobs.
type Job struct {
	JobID            string     `db:"job_id" json:"job_id"`
	JobState         State      `db:"job_state" json:"job_state"`
	UserDN           string     `db:"user_dn" json:"user_dn"`
	VOName           string     `db:"vo_name" json:"vo_name"`
	CredID           string     `db:"cred_id" json:"cred_id"`
	UserCred         string     `db:"user_cred" json:"user_cred"`
	VomsCred         string     `db:"voms_cred" json:"voms_cred"`
	SubmitHost       string     `db:"submit_host" json:"submit_host"`
	SourceSE         *string    `db:"source_se" json:"source_se"`
	DestSE           *string    `db:"dest_se" json:"dest_se"`
	ReuseJob         bool       `db:"reuse_job" json:"reuse_job"`
	OverwriteFlag    bool       `db:"overwrite_flag" json:"overwrite_flag"`
	VerifyChecksum   bool       `db:"verify_checksum" json:"verify_checksum"`
	SpaceToken       string     `db:"space_token" json:"space_token"`
	SourceSpaceToken string     `db:"source_space_token" json:"source_space_token"`
	BringOnline      int        `db:"bring_online" json:"bring_online"`
	CopyPinLifetime  int        `db:"copy_pin_lifetime" json:"copy_pin_lifetime"`
	JobParams        string     `db:"job_params" json:"job_params"`
	JobMetadata      JSONMap    `db:"job_metadata" json:"job_metadata"`
	Priority         int        `db:"priority" json:"priority"`
	Reason           *string    `db:"reason" json:"reason"`
	SubmitTime       time.Time  `db:"submit_time" json:"submit_time"`
	FinishTime       *time.Time `db:"finish_time" json:"finish_time"`
	JobFinished      *time.Time `db:"job_finished" json:"job_finished"`

	Files []File `db:"-" json:"files"`
}

// File is one concrete source→destination transfer unit. FileID is assigned
// by the store; FileIndex groups siblings expanded from the same transfer
// spec within the submission.
type File struct {
	FileID            int64      `db:"file_id" json:"file_id"`
	JobID             string     `db:"job_id" json:"job_id"`
	FileIndex         int        `db:"file_index" json:"file_index"`
	FileState         State      `db:"file_state" json:"file_state"`
	SourceSURL        string     `db:"source_surl" json:"source_surl"`
	DestSURL          string     `db:"dest_surl" json:"dest_surl"`
	SourceSE          string     `db:"source_se" json:"source_se"`
	DestSE            string     `db:"dest_se" json:"dest_se"`
	Checksum          *string    `db:"checksum" json:"checksum"`
	UserFilesize      *float64   `db:"user_filesize" json:"user_filesize"`
	SelectionStrategy *string    `db:"selection_strategy" json:"selection_strategy"`
	FileMetadata      JSONMap    `db:"file_metadata" json:"file_metadata"`
	Reason            *string    `db:"reason" json:"reason"`
	FinishTime        *time.Time `db:"finish_time" json:"finish_time"`
	JobFinished       *time.Time `db:"job_finished" json:"job_finished"`
}

// Credential is a delegated proxy credential stored per (delegation id, DN).
type Credential struct {
	DlgID           string    `db:"dlg_id"`
	DN              string    `db:"dn"`
	Proxy           string    `db:"proxy"`
	VomsAttrs       string    `db:"voms_attrs"`
	TerminationTime time.Time `db:"termination_time"`
}

// Expired reports whether the credential's lifetime has run out.
func (c *Credential) Expired() bool {
	return !c.TerminationTime.After(time.Now())
}

// Remaining returns the credential lifetime left; negative when expired.
func (c *Credential) Remaining() time.Duration {
	return time.Until(c.TerminationTime)
}

// JSONMap stores an opaque key/value document in a jsonb column. A nil map
// round-trips as SQL NULL / JSON null.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}

	if len(data) == 0 {
		*m = nil
		return nil
	}

	return json.Unmarshal(data, m)
}
