package signedcookie

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Wildcard is the name pattern matching every cookie except the session
// cookie.
const Wildcard = "*"

// Policy decides whether a cookie takes part in signing.
type Policy interface {
	// IsSignable reports whether the cookie called name must carry a
	// signed value. sessionName is the session cookie name of the current
	// request.
	IsSignable(name, sessionName string) bool
}

// PolicyFunc adapts an ordinary function to the Policy interface.
type PolicyFunc func(name, sessionName string) bool

// IsSignable calls f(name, sessionName).
func (f PolicyFunc) IsSignable(name, sessionName string) bool {
	return f(name, sessionName)
}

// NamePolicy matches cookies against a list of names. The Wildcard entry
// matches everything but the session cookie; listing the session cookie
// name explicitly makes it signable as well.
type NamePolicy struct {
	names    []string
	wildcard bool
}

// NewNamePolicy returns a policy for the given cookie names. Duplicates are
// ignored and the order is kept.
func NewNamePolicy(names ...string) *NamePolicy {
	p := &NamePolicy{names: make([]string, 0, len(names))}

	for _, name := range names {
		if name == Wildcard {
			p.wildcard = true
			continue
		}

		if !slices.Contains(p.names, name) {
			p.names = append(p.names, name)
		}
	}

	return p
}

// IsSignable implements Policy.
func (p *NamePolicy) IsSignable(name, sessionName string) bool {
	if slices.Contains(p.names, name) {
		return true
	}

	return p.wildcard && name != sessionName
}

// Names returns the explicitly listed names, without the wildcard.
func (p *NamePolicy) Names() []string {
	return slices.Clone(p.names)
}

// Wildcard reports whether the policy contains the wildcard pattern.
func (p *NamePolicy) Wildcard() bool {
	return p.wildcard
}

// ValidateNames checks that every entry is the wildcard or a cookie-name
// token as defined by RFC 6265 Section 4.1.1.
func ValidateNames(names []string) error {
	for _, name := range names {
		if name == Wildcard {
			continue
		}

		if !validCookieName(name) {
			return fmt.Errorf("%w: %q", ErrInvalidCookieName, name)
		}
	}

	return nil
}

func validCookieName(name string) bool {
	if name == "" {
		return false
	}

	return strings.IndexFunc(name, func(r rune) bool { return !httpguts.IsTokenRune(r) }) < 0
}
