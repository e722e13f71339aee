package auth

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/datagrid-io/transferq/internal/api/domain"
	"github.com/datagrid-io/transferq/internal/api/model"
)

// Request headers set by the authenticating gateway in front of the service.
const (
	HeaderUserDN       = "X-Grid-User-Dn"
	HeaderVO           = "X-Grid-Vo"
	HeaderVomsAttr     = "X-Grid-Voms-Attr"
	HeaderDelegationID = "X-Grid-Delegation-Id"
)

// Capability names checked before acting on a resource.
const (
	CapTransfer = "transfer"
)

// minCredentialLifetime rejects credentials that would expire mid-transfer.
const minCredentialLifetime = time.Hour

// PrincipalFromHeaders builds the request principal from the gateway
// headers. A request without a DN is unauthenticated. When the gateway does
// not pass a delegation id, one is derived from the DN and VOMS attributes
// the same way the delegation service does, so both sides agree on the key.
func PrincipalFromHeaders(h http.Header) (domain.Principal, error) {
	dn := strings.TrimSpace(h.Get(HeaderUserDN))
	if dn == "" {
		return domain.Principal{}, domain.Unauthorized("No user credentials found in the request")
	}

	var vos []string
	for _, raw := range strings.Split(h.Get(HeaderVO), ",") {
		if vo := strings.TrimSpace(raw); vo != "" {
			vos = append(vos, vo)
		}
	}
	if len(vos) == 0 {
		vos = []string{"nil"}
	}

	vomsCred := h.Values(HeaderVomsAttr)

	dlgID := strings.TrimSpace(h.Get(HeaderDelegationID))
	if dlgID == "" {
		dlgID = DeriveDelegationID(dn, vomsCred)
	}

	return domain.Principal{
		UserDN:       dn,
		VONames:      vos,
		VomsCred:     vomsCred,
		DelegationID: dlgID,
	}, nil
}

// DeriveDelegationID computes the 16 hex character delegation id for a DN
// plus its VOMS attributes.
func DeriveDelegationID(dn string, vomsCred []string) string {
	digest := sha1.New()
	digest.Write([]byte(dn))
	for _, attr := range vomsCred {
		digest.Write([]byte(attr))
	}
	return hex.EncodeToString(digest.Sum(nil))[:16]
}

// IsAuthorized decides whether the principal may act on a resource owned by
// another identity: the owner always may, and so may anyone sharing the
// resource's VO.
func IsAuthorized(capability string, principal domain.Principal, resourceOwner, resourceVO string) bool {
	if capability != CapTransfer {
		return false
	}
	if principal.UserDN == resourceOwner {
		return true
	}
	for _, vo := range principal.VONames {
		if vo == resourceVO {
			return true
		}
	}
	return false
}

// CheckCredential enforces the delegated-credential preconditions for a
// submission: the credential must exist, must not be expired and must have
// at least an hour of lifetime left.
func CheckCredential(cred *model.Credential) error {
	if cred == nil {
		return domain.ErrCredentialNotFound
	}
	if cred.Expired() {
		seconds := int(-cred.Remaining() / time.Second)
		return domain.Forbidden("The delegated credentials expired %d seconds ago", seconds)
	}
	if cred.Remaining() < minCredentialLifetime {
		return domain.Forbidden("The delegated credentials has less than one hour left")
	}
	return nil
}
