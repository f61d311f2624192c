package signedcookie

import (
	"net/http"
	"slices"
	"strings"
)

// ResponseCookies is the mutable view of the Set-Cookie lines staged on a
// response header. Lines that cannot be parsed are kept untouched, and lines
// of cookies that were not modified are written back byte for byte.
type ResponseCookies struct {
	entries []responseEntry
}

type responseEntry struct {
	raw    string
	cookie *http.Cookie
	dirty  bool
}

// NewResponseCookies parses the Set-Cookie lines of h.
func NewResponseCookies(h http.Header) *ResponseCookies {
	lines := h.Values("Set-Cookie")
	c := &ResponseCookies{entries: make([]responseEntry, 0, len(lines))}

	for _, line := range lines {
		e := responseEntry{raw: line}
		if ck, err := http.ParseSetCookie(line); err == nil {
			e.cookie = ck
		}

		c.entries = append(c.entries, e)
	}

	return c
}

// All returns the staged cookies that could be parsed, in order.
func (c *ResponseCookies) All() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(c.entries))

	for _, e := range c.entries {
		if e.cookie != nil {
			out = append(out, e.cookie)
		}
	}

	return out
}

// Remove deletes the staged cookies identified by name, path and domain.
func (c *ResponseCookies) Remove(name, path, domain string) {
	c.entries = slices.DeleteFunc(c.entries, func(e responseEntry) bool {
		return e.cookie != nil && sameIdentity(e.cookie, name, path, domain)
	})
}

// Set stages ck, replacing a cookie with the same name, path and domain in
// place. Otherwise ck is appended.
func (c *ResponseCookies) Set(ck *http.Cookie) {
	for i, e := range c.entries {
		if e.cookie != nil && sameIdentity(e.cookie, ck.Name, ck.Path, ck.Domain) {
			c.entries[i] = responseEntry{cookie: ck, dirty: true}
			return
		}
	}

	c.entries = append(c.entries, responseEntry{cookie: ck, dirty: true})
}

// Apply writes the staged cookies back to h.
func (c *ResponseCookies) Apply(h http.Header) {
	h.Del("Set-Cookie")

	for _, e := range c.entries {
		if !e.dirty {
			h.Add("Set-Cookie", e.raw)
			continue
		}

		if v := e.cookie.String(); v != "" {
			h.Add("Set-Cookie", v)
		}
	}
}

func sameIdentity(ck *http.Cookie, name, path, domain string) bool {
	return ck.Name == name && ck.Path == path && strings.EqualFold(ck.Domain, domain)
}
