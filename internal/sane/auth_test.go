package sane

import (
	"errors"
	"strings"
	"testing"

	"github.com/mzyy94/airsane/internal/sane/sys"
	"github.com/mzyy94/airsane/internal/sane/sys/mock"
)

func protectedDevice() *mock.Device {
	d := testDevice()
	d.Resource = "net:host:test"
	d.Username = "J\xfcrgen"
	d.Password = "secret"
	return d
}

func TestAuthorizationProvidesCredentials(t *testing.T) {
	b := mock.New(protectedDevice())
	var resource string
	s := newSession(t, b, AuthorizeFunc(func(r Str, a *Authorizer) AuthOK {
		resource = r.String()
		ok, err := a.ProvideCredentials("Jürgen", "secret")
		if err != nil {
			t.Errorf("ProvideCredentials: %v", err)
		}
		return ok
	}))

	d, err := s.Connect(nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer d.Close()

	if resource != "net:host:test" {
		t.Errorf("resource = %q", resource)
	}
	if got := string(b.LastUsername); got != "J\xfcrgen" {
		t.Errorf("username = %q, want Latin-1 J\\xfcrgen", got)
	}
}

func TestAuthorizationDeclined(t *testing.T) {
	tests := []struct {
		name string
		auth AuthorizationCallback
	}{
		{"no handler", nil},
		{"zero witness", AuthorizeFunc(func(Str, *Authorizer) AuthOK { return AuthOK{} })},
		{"foreign witness", AuthorizeFunc(func(_ Str, a *Authorizer) AuthOK {
			a.ProvideCredentials("Jürgen", "secret")
			other := &Authorizer{username: make([]byte, 128), password: make([]byte, 128)}
			ok, _ := other.ProvideCredentials("x", "y")
			return ok
		})},
		{"panic", AuthorizeFunc(func(_ Str, a *Authorizer) AuthOK {
			a.ProvideCredentials("Jürgen", "secret")
			panic("boom")
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mock.New(protectedDevice())
			s := newSession(t, b, tt.auth)
			if _, err := s.Connect(nil); !errors.Is(err, ErrAccessDenied) {
				t.Errorf("Connect error = %v, want ErrAccessDenied", err)
			}
			if len(b.LastUsername) != 0 || len(b.LastPassword) != 0 {
				t.Errorf("credentials = %q/%q, want empty", b.LastUsername, b.LastPassword)
			}
		})
	}
}

func TestProvideCredentialsRejects(t *testing.T) {
	long := strings.Repeat("a", MaxUsernameLen+1)
	tests := []struct {
		name     string
		user     string
		pass     string
		field    AuthField
		reason   AuthReason
		accepted bool
	}{
		{"ascii", "user", "pass", "", 0, true},
		{"latin1", "Ærø", "ß", "", 0, true},
		{"longest", strings.Repeat("a", MaxUsernameLen), strings.Repeat("b", MaxPasswordLen), "", 0, true},
		{"user not latin1", "ユーザー", "pass", FieldUsername, NotLatin1, false},
		{"pass not latin1", "user", "€", FieldPassword, NotLatin1, false},
		{"user too long", long, "pass", FieldUsername, TooLong, false},
		{"pass too long", "user", long, FieldPassword, TooLong, false},
		{"embedded nul", "us\x00er", "pass", FieldUsername, ContainsNUL, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := make([]byte, sys.MaxUsernameLen)
			pass := make([]byte, sys.MaxPasswordLen)
			user[0], pass[0] = 'x', 'y'
			a := &Authorizer{username: user, password: pass}

			ok, err := a.ProvideCredentials(tt.user, tt.pass)
			if tt.accepted {
				if err != nil || ok.a != a {
					t.Fatalf("ProvideCredentials = %v, %v", ok, err)
				}
				if got := cstring(user).String(); got != tt.user {
					t.Errorf("username buffer = %q, want %q", got, tt.user)
				}
				return
			}
			var ae *AuthError
			if !errors.As(err, &ae) || ae.Field != tt.field || ae.Reason != tt.reason {
				t.Fatalf("error = %v, want %s/%d", err, tt.field, tt.reason)
			}
			if user[0] != 'x' || pass[0] != 'y' {
				t.Error("buffers written on failure")
			}
		})
	}
}
