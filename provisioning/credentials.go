package provisioning

import (
	"math/rand/v2"
	"strings"
)

const (
	usernamePrefix = "u"
	usernameRandom = 4
	passwordLength = 6
	base36         = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Credential is the hotspot login handed to the customer
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CredentialIssuer produces hotspot credentials
type CredentialIssuer interface {
	Issue() Credential
}

// RandomIssuer issues a "u" + 4 character username and a 6 character
// password, both lowercase base-36. Uniqueness is not checked.
type RandomIssuer struct{}

var _ CredentialIssuer = RandomIssuer{}

func (RandomIssuer) Issue() Credential {
	return Credential{
		Username: usernamePrefix + randomBase36(usernameRandom),
		Password: randomBase36(passwordLength),
	}
}

func randomBase36(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(base36[rand.IntN(len(base36))])
	}
	return b.String()
}

// IssuerFunc adapts a function to CredentialIssuer
type IssuerFunc func() Credential

func (f IssuerFunc) Issue() Credential { return f() }
