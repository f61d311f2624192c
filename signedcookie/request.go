package signedcookie

import (
	"net/http"
	"slices"
	"strings"
)

// RequestCookies is the ordered, mutable view of the cookies sent with a
// request. Changes are written back to the Cookie header by Apply.
//
// A name sent more than once is kept once per occurrence; Get returns the
// first occurrence, like http.Request.Cookie.
type RequestCookies struct {
	r       *http.Request
	cookies []*http.Cookie
}

// NewRequestCookies parses the cookies of r.
func NewRequestCookies(r *http.Request) *RequestCookies {
	return &RequestCookies{r: r, cookies: r.Cookies()}
}

// Len returns the number of cookies, counting repeated names.
func (c *RequestCookies) Len() int {
	return len(c.cookies)
}

// Names returns the distinct cookie names in order of first appearance.
func (c *RequestCookies) Names() []string {
	names := make([]string, 0, len(c.cookies))
	seen := make(map[string]struct{}, len(c.cookies))

	for _, ck := range c.cookies {
		if _, ok := seen[ck.Name]; ok {
			continue
		}

		seen[ck.Name] = struct{}{}
		names = append(names, ck.Name)
	}

	return names
}

// Get returns the value of the first cookie called name.
func (c *RequestCookies) Get(name string) (string, bool) {
	for _, ck := range c.cookies {
		if ck.Name == name {
			return ck.Value, true
		}
	}

	return "", false
}

// Set replaces the value of every cookie called name, or appends a new
// cookie when there is none.
func (c *RequestCookies) Set(name, value string) {
	found := false

	for _, ck := range c.cookies {
		if ck.Name == name {
			ck.Value = value
			ck.Quoted = false
			found = true
		}
	}

	if !found {
		c.cookies = append(c.cookies, &http.Cookie{Name: name, Value: value})
	}
}

// Remove deletes every cookie called name.
func (c *RequestCookies) Remove(name string) {
	c.cookies = slices.DeleteFunc(c.cookies, func(ck *http.Cookie) bool {
		return ck.Name == name
	})
}

// Apply rewrites the Cookie header of the request from the current state.
func (c *RequestCookies) Apply() {
	if len(c.cookies) == 0 {
		c.r.Header.Del("Cookie")
		return
	}

	parts := make([]string, 0, len(c.cookies))
	for _, ck := range c.cookies {
		parts = append(parts, (&http.Cookie{Name: ck.Name, Value: ck.Value, Quoted: ck.Quoted}).String())
	}

	c.r.Header.Set("Cookie", strings.Join(parts, "; "))
}
