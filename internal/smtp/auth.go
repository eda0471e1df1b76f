// Package smtp receives mail over SMTP and feeds it to the ingest pipeline.
package smtp

import (
	"crypto/subtle"
	"errors"

	"github.com/emersion/go-sasl"
)

// errBadCredentials is returned for a failed AUTH exchange.
var errBadCredentials = errors.New("authentication failed")

// Authenticator checks SMTP AUTH credentials against a single configured
// account.
type Authenticator struct {
	username string
	password string
}

// NewAuthenticator creates an Authenticator with the given credentials.
// If either is empty, authentication is disabled.
func NewAuthenticator(username, password string) *Authenticator {
	return &Authenticator{
		username: username,
		password: password,
	}
}

// Enabled returns true if authentication credentials are configured.
func (a *Authenticator) Enabled() bool {
	return a.username != "" && a.password != ""
}

// Verify compares the credentials in constant time.
func (a *Authenticator) Verify(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return errBadCredentials
	}
	return nil
}

// PlainServer returns a SASL PLAIN server that calls onSuccess once the
// client has authenticated. The authorization identity, if any, must match
// the username.
func (a *Authenticator) PlainServer(onSuccess func(username string)) sasl.Server {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if identity != "" && identity != username {
			return errBadCredentials
		}
		if err := a.Verify(username, password); err != nil {
			return err
		}
		onSuccess(username)
		return nil
	})
}
