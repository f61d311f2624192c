package signedcookie

// Compatibility with releases that signed only the session cookie, without
// the session cookie being listed in the policy. Remove this file and
// Config.DisableLegacySessionCookie together once old sessions have expired.

// legacySessionMatcher accepts a validly signed session cookie in addition
// to whatever the wrapped matcher accepts.
type legacySessionMatcher struct {
	next   inboundMatcher
	verify func(value string) bool
}

func (m legacySessionMatcher) matches(name, value, sessionName string) bool {
	if m.next.matches(name, value, sessionName) {
		return true
	}

	return name == sessionName && m.verify(value)
}
