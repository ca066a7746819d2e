// Package auth holds the static operator accounts and the per-client
// rate limiting used by the relay pipeline.
package auth

import (
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"
)

// GrantRelayMsg is the grant the permission policy checks.
const GrantRelayMsg = "relaymsg"

// Oper is one configured operator account. PasswordHash is a bcrypt
// hash; plaintext passwords are never kept.
type Oper struct {
	Name         string
	PasswordHash string
	Grants       []string
}

// HasGrant reports whether the account carries the named grant.
func (o Oper) HasGrant(grant string) bool {
	for _, g := range o.Grants {
		if g == grant {
			return true
		}
	}
	return false
}

// Opers is the account set in effect, swapped as a unit on reload.
type Opers struct {
	accounts atomic.Pointer[map[string]Oper]
}

func NewOpers(accounts []Oper) *Opers {
	o := &Opers{}
	o.Replace(accounts)
	return o
}

// Replace installs a new account set atomically.
func (o *Opers) Replace(accounts []Oper) {
	m := make(map[string]Oper, len(accounts))
	for _, a := range accounts {
		m[a.Name] = a
	}
	o.accounts.Store(&m)
}

// Verify checks name/password against the configured accounts and
// returns the matching account. A bcrypt mismatch and an unknown name
// are indistinguishable to the caller.
func (o *Opers) Verify(name, password string) (Oper, bool) {
	m := o.accounts.Load()
	if m == nil {
		return Oper{}, false
	}
	acct, ok := (*m)[name]
	if !ok {
		return Oper{}, false
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return Oper{}, false
	}
	return acct, true
}

// HashPassword produces a bcrypt hash suitable for the config file.
// Used by tooling and tests.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
