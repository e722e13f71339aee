package domain

// Principal is the authenticated identity a request acts as. It is built by
// the auth middleware; the domain never looks at transport details itself.
type Principal struct {
	UserDN       string
	VONames      []string
	VomsCred     []string
	DelegationID string
}
