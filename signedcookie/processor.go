package signedcookie

import (
	"log/slog"
	"net/http"

	"github.com/vitalvas/cookieguard/kernel"
	"github.com/vitalvas/cookieguard/signer"
)

// DefaultSessionName is the session cookie name used when
// Config.SessionName is empty.
const DefaultSessionName = "session_id"

// Recorder receives signed cookie events. *metrics.Prometheus implements it.
type Recorder interface {
	CookieVerified(name string)
	CookieRejected(name string)
	CookieSigned(name string)
}

// Config configures a Processor.
type Config struct {
	// Signer signs and verifies cookie values. Required.
	Signer signer.Signer

	// Policy selects the cookies that take part in signing. Exactly one of
	// Policy and Names must be set.
	Policy Policy

	// Names is the list form of the policy, wrapped in a NamePolicy.
	//
	// Deprecated: set Policy to NewNamePolicy(names...) instead.
	Names []string

	// SessionName is the name of the session cookie, which the wildcard
	// never matches. Defaults to DefaultSessionName. A name captured with
	// kernel.WithSessionName takes precedence for that request.
	SessionName string

	// DisableLegacySessionCookie stops accepting a signed session cookie
	// that the policy does not select. Such cookies were produced by older
	// releases which always signed the session cookie.
	DisableLegacySessionCookie bool

	// Logger receives deprecation warnings and debug messages for dropped
	// cookies. Defaults to slog.Default().
	Logger *slog.Logger

	// Recorder optionally counts verified, rejected and signed cookies.
	Recorder Recorder
}

// inboundMatcher selects the request cookies whose value must be verified.
type inboundMatcher interface {
	matches(name, value, sessionName string) bool
}

type policyMatcher struct {
	policy Policy
}

func (m policyMatcher) matches(name, _, sessionName string) bool {
	return m.policy.IsSignable(name, sessionName)
}

// Processor verifies signed cookies on requests and signs cookies staged on
// responses. It holds no per-request state and is safe for concurrent use.
type Processor struct {
	signer      signer.Signer
	policy      Policy
	inbound     inboundMatcher
	sessionName string
	logger      *slog.Logger
	recorder    Recorder
}

// NewProcessor validates cfg and returns a Processor.
//
// It returns ErrNoSigner if Signer is nil, ErrInvalidConfiguration unless
// exactly one of Policy and Names is set, and ErrInvalidCookieName if Names
// contains an invalid entry.
func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Signer == nil {
		return nil, ErrNoSigner
	}

	if (cfg.Policy == nil) == (cfg.Names == nil) {
		return nil, ErrInvalidConfiguration
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.Policy
	if policy == nil {
		if err := ValidateNames(cfg.Names); err != nil {
			return nil, err
		}

		policy = NewNamePolicy(cfg.Names...)
		logger.Warn("signedcookie: Config.Names is deprecated, set Config.Policy to NewNamePolicy(names...) instead",
			slog.Any("names", cfg.Names))
	}

	sessionName := cfg.SessionName
	if sessionName == "" {
		sessionName = DefaultSessionName
	}

	var inbound inboundMatcher = policyMatcher{policy: policy}
	if !cfg.DisableLegacySessionCookie {
		inbound = legacySessionMatcher{next: inbound, verify: cfg.Signer.Verify}
	}

	return &Processor{
		signer:      cfg.Signer,
		policy:      policy,
		inbound:     inbound,
		sessionName: sessionName,
		logger:      logger,
		recorder:    cfg.Recorder,
	}, nil
}

// Policy returns the policy in use.
func (p *Processor) Policy() Policy {
	return p.policy
}

// SessionName returns the session cookie name that applies to r.
func (p *Processor) SessionName(r *http.Request) string {
	return kernel.SessionName(r, p.sessionName)
}

// ProcessRequest replaces the value of every signed request cookie with its
// verified plaintext and removes the cookies whose signature is invalid.
// The Cookie header of r is rewritten in place. Sub-requests are left
// untouched.
func (p *Processor) ProcessRequest(r *http.Request) {
	if !kernel.IsMainRequest(r) {
		return
	}

	cookies := NewRequestCookies(r)
	if cookies.Len() == 0 {
		return
	}

	sessionName := p.SessionName(r)
	changed := false

	kept := cookies.cookies[:0]
	for _, ck := range cookies.cookies {
		if !p.inbound.matches(ck.Name, ck.Value, sessionName) {
			kept = append(kept, ck)
			continue
		}

		changed = true

		if !p.signer.Verify(ck.Value) {
			p.logger.DebugContext(r.Context(), "signedcookie: dropping cookie with invalid signature",
				slog.String("cookie", ck.Name))

			if p.recorder != nil {
				p.recorder.CookieRejected(ck.Name)
			}

			continue
		}

		ck.Value = p.signer.VerifiedRawValue(ck.Value)
		ck.Quoted = false
		kept = append(kept, ck)

		if p.recorder != nil {
			p.recorder.CookieVerified(ck.Name)
		}
	}

	if !changed {
		return
	}

	clear(cookies.cookies[len(kept):])
	cookies.cookies = kept
	cookies.Apply()
}

// ProcessResponse signs the value of every signable cookie staged in h.
// All other attributes are kept. Values are signed as staged, so a value
// that is already signed is signed again. r is the request the response
// belongs to; nothing is done for sub-requests.
func (p *Processor) ProcessResponse(r *http.Request, h http.Header) {
	if !kernel.IsMainRequest(r) || len(h.Values("Set-Cookie")) == 0 {
		return
	}

	cookies := NewResponseCookies(h)
	sessionName := p.SessionName(r)
	changed := false

	for _, ck := range cookies.All() {
		if !p.policy.IsSignable(ck.Name, sessionName) {
			continue
		}

		signed := *ck
		signed.Value = p.signer.Sign(ck.Value)
		signed.Raw = ""

		cookies.Remove(ck.Name, ck.Path, ck.Domain)
		cookies.Set(&signed)
		changed = true

		if p.recorder != nil {
			p.recorder.CookieSigned(ck.Name)
		}
	}

	if changed {
		cookies.Apply(h)
	}
}
