package reconcile

import (
	"strings"
	"time"
)

// Address is the optional structured address asserted by the identity
// provider. Absent sub-fields are empty strings and are ignored during
// profile sync.
type Address struct {
	Street     string
	PostalCode string
	Region     string
}

// Profile is the verified identity the provider asserts at callback time.
// Nothing is validated by the caller; the reconciler tolerates every field
// being absent.
type Profile struct {
	Provider          string
	ProviderAccountID string
	PhoneNumber       string // raw as asserted, canonicalized by the reconciler
	Email             string // empty unless asserted and verified
	Name              string
	Address           Address
	AccessToken       string
	RefreshToken      string
	TokenType         string
	Scope             string
	ExpiresAt         *time.Time
}

// CanonicalPhone normalizes a raw phone number to +<digits> form. The value
// is trimmed and a '+' is prefixed when it is all digits. Anything that
// cannot be reduced to +<digits> is treated as absent and the empty string
// is returned. Idempotent: CanonicalPhone(CanonicalPhone(x)) == CanonicalPhone(x).
func CanonicalPhone(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	digits := strings.TrimPrefix(s, "+")
	if digits == "" {
		return ""
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return "+" + digits
}
