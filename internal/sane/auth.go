package sane

import (
	"fmt"
	"log/slog"

	"golang.org/x/text/encoding/charmap"

	"github.com/mzyy94/airsane/internal/sane/sys"
)

// Longest credentials that fit the library's buffers.
const (
	MaxUsernameLen = sys.MaxUsernameLen - 1
	MaxPasswordLen = sys.MaxPasswordLen - 1
)

// AuthorizationCallback answers credential requests raised while the
// library talks to a protected resource, usually during Connect.
//
// Authorize runs synchronously on the goroutine that made the library
// call. To grant access it returns the AuthOK from a successful
// a.ProvideCredentials; anything else, including the zero AuthOK,
// declines and the library sees empty credentials.
type AuthorizationCallback interface {
	Authorize(resource Str, a *Authorizer) AuthOK
}

// AuthorizeFunc adapts a function to AuthorizationCallback.
type AuthorizeFunc func(resource Str, a *Authorizer) AuthOK

func (f AuthorizeFunc) Authorize(resource Str, a *Authorizer) AuthOK { return f(resource, a) }

// Authorizer gives write access to the credential buffers of one
// request. It is only valid during the Authorize call it was passed to.
type Authorizer struct {
	username []byte
	password []byte
	provided bool
}

// MaxUsernameLen is the longest username the buffer takes.
func (a *Authorizer) MaxUsernameLen() int { return len(a.username) - 1 }

// MaxPasswordLen is the longest password the buffer takes.
func (a *Authorizer) MaxPasswordLen() int { return len(a.password) - 1 }

// AuthOK proves that credentials were written by a particular Authorizer.
type AuthOK struct {
	a *Authorizer
}

// AuthField names the credential an AuthError is about.
type AuthField string

const (
	FieldUsername AuthField = "username"
	FieldPassword AuthField = "password"
)

// AuthReason is why a credential was rejected.
type AuthReason int

const (
	// NotLatin1 means the text has a character outside ISO-8859-1.
	NotLatin1 AuthReason = iota + 1
	// TooLong means the text does not fit the buffer with its NUL.
	TooLong
	// ContainsNUL means the text has an embedded NUL.
	ContainsNUL
)

// AuthError is returned by ProvideCredentials. Nothing is written when
// it fails.
type AuthError struct {
	Field  AuthField
	Reason AuthReason
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case NotLatin1:
		return fmt.Sprintf("sane: %s is not representable in Latin-1", e.Field)
	case TooLong:
		return fmt.Sprintf("sane: %s is too long", e.Field)
	case ContainsNUL:
		return fmt.Sprintf("sane: %s contains a NUL byte", e.Field)
	}
	return fmt.Sprintf("sane: invalid %s", e.Field)
}

// ProvideCredentials converts username and password to Latin-1 and
// writes them, NUL-terminated, into the library's buffers.
func (a *Authorizer) ProvideCredentials(username, password string) (AuthOK, error) {
	user, err := latin1(username, FieldUsername)
	if err != nil {
		return AuthOK{}, err
	}
	pass, err := latin1(password, FieldPassword)
	if err != nil {
		return AuthOK{}, err
	}
	return a.ProvideCredentialsLatin1(user, pass)
}

// ProvideCredentialsLatin1 writes credentials that are already Latin-1.
func (a *Authorizer) ProvideCredentialsLatin1(username, password Str) (AuthOK, error) {
	if err := fits(username, len(a.username), FieldUsername); err != nil {
		return AuthOK{}, err
	}
	if err := fits(password, len(a.password), FieldPassword); err != nil {
		return AuthOK{}, err
	}
	a.username[copy(a.username, username)] = 0
	a.password[copy(a.password, password)] = 0
	a.provided = true
	return AuthOK{a: a}, nil
}

func latin1(s string, field AuthField) (Str, error) {
	out := make(Str, 0, len(s))
	for _, r := range s {
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			return nil, &AuthError{Field: field, Reason: NotLatin1}
		}
		out = append(out, b)
	}
	return out, nil
}

func fits(s Str, size int, field AuthField) error {
	for _, b := range s {
		if b == 0 {
			return &AuthError{Field: field, Reason: ContainsNUL}
		}
	}
	if len(s)+1 > size {
		return &AuthError{Field: field, Reason: TooLong}
	}
	return nil
}

// authorize is installed as the library's authorization callback.
func authorize(resource, username, password []byte) {
	deny := func() {
		username[0] = 0
		password[0] = 0
	}
	h := authHandler
	if h == nil {
		slog.Debug("sane: authorization requested without a handler", "resource", string(resource))
		deny()
		return
	}

	a := &Authorizer{username: username, password: password}
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("sane: authorization callback panicked", "panic", r)
			deny()
		}
	}()
	ok := h.Authorize(cloneStr(resource), a)
	if ok.a != a || !a.provided {
		slog.Debug("sane: authorization declined", "resource", string(resource))
		deny()
	}
	a.username, a.password = nil, nil
}
