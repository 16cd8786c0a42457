package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Account is one configured dashboard login.
type Account struct {
	Username     string
	PasswordHash string
	Role         string
}

// Authenticator checks logins against the configured accounts.
type Authenticator struct {
	accounts []Account
}

func NewAuthenticator(accounts ...Account) (*Authenticator, error) {
	if len(accounts) == 0 {
		return nil, errors.New("at least one account is required")
	}
	seen := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		if a.Username == "" || a.Role == "" {
			return nil, errors.New("account username and role are required")
		}
		if seen[a.Username] {
			return nil, fmt.Errorf("duplicate account %q", a.Username)
		}
		seen[a.Username] = true
		if _, err := bcrypt.Cost([]byte(a.PasswordHash)); err != nil {
			return nil, fmt.Errorf("account %q: password hash must be bcrypt", a.Username)
		}
	}
	return &Authenticator{accounts: accounts}, nil
}

// Check returns the account role. It always runs bcrypt so a wrong username
// costs the same as a wrong password.
func (a *Authenticator) Check(username, password string) (string, error) {
	acct, found := a.lookup(username)
	hash := a.accounts[0].PasswordHash
	if found {
		hash = acct.PasswordHash
	}
	pwErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if !found || pwErr != nil {
		return "", ErrInvalidCredentials
	}
	return acct.Role, nil
}

// RoleOf returns the current role of userID, so refreshed tokens follow
// configuration changes.
func (a *Authenticator) RoleOf(userID string) (string, bool) {
	acct, ok := a.lookup(userID)
	return acct.Role, ok
}

func (a *Authenticator) lookup(username string) (Account, bool) {
	var (
		out   Account
		found bool
	)
	for _, acct := range a.accounts {
		if subtle.ConstantTimeCompare([]byte(username), []byte(acct.Username)) == 1 {
			out, found = acct, true
		}
	}
	return out, found
}
