package dto

// SubmitRequest is the body of POST/PUT /api/v1/jobs. Params is kept as a
// loose map on purpose: clients may send explicit nulls to ask for the
// default, and boolean-ish values may arrive as strings.
type SubmitRequest struct {
	Files      []TransferSpec         `json:"files"`
	Params     map[string]interface{} `json:"params"`
	Credential *string                `json:"credential"`
}

// TransferSpec is one source/destination group within a submission. Every
// (source, destination) pair with compatible protocols becomes a file.
type TransferSpec struct {
	Sources           []string               `json:"sources"`
	Destinations      []string               `json:"destinations"`
	Checksum          *string                `json:"checksum"`
	Filesize          *float64               `json:"filesize"`
	SelectionStrategy *string                `json:"selection_strategy"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// WhoamiResponse echoes the principal the request was authenticated as.
type WhoamiResponse struct {
	UserDN       string   `json:"user_dn"`
	VONames      []string `json:"vos"`
	VomsCred     []string `json:"voms_cred"`
	DelegationID string   `json:"delegation_id"`
}
