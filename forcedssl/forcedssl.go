package forcedssl

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/vitalvas/cookieguard/kernel"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/idna"
)

// DefaultHSTSMaxAge is one year in seconds.
const DefaultHSTSMaxAge = 31536000

var (
	// ErrInvalidMaxAge is returned when Config.HSTSMaxAge is negative.
	ErrInvalidMaxAge = errors.New("forced ssl: hsts max-age must not be negative")

	// ErrInvalidRedirectStatus is returned when Config.RedirectStatusCode is
	// not a redirect status.
	ErrInvalidRedirectStatus = errors.New("forced ssl: redirect status must be 301, 302, 303, 307 or 308")

	// ErrInvalidPattern is returned when an AllowList or Hosts entry is not
	// a valid regular expression.
	ErrInvalidPattern = errors.New("forced ssl: invalid pattern")
)

// Recorder receives redirect events. *metrics.Prometheus implements it.
type Recorder interface {
	Redirected()
}

// Config configures the forced SSL middleware.
type Config struct {
	// HSTSMaxAge sets the max-age directive of the Strict-Transport-Security
	// header in seconds. When zero, the header is not set.
	HSTSMaxAge int

	// HSTSIncludeSubDomains appends the includeSubDomains directive.
	HSTSIncludeSubDomains bool

	// HSTSPreload appends the preload directive.
	HSTSPreload bool

	// AllowList holds regular expressions matched case-insensitively
	// against the request path. Matching requests are not redirected.
	AllowList []string

	// Hosts holds regular expressions matched case-insensitively against
	// the request host. When set, only matching hosts are redirected.
	// Internationalized hosts are matched in both ASCII and Unicode form.
	Hosts []string

	// RedirectStatusCode is the status of the redirect to HTTPS.
	// Defaults to 302 Found.
	RedirectStatusCode int

	// TrustForwardedProto treats requests with "X-Forwarded-Proto: https"
	// as secure. Enable it only behind a proxy that sets the header.
	TrustForwardedProto bool

	// Recorder optionally counts redirects.
	Recorder Recorder
}

type forcedSSL struct {
	hstsValue      string
	allowList      []*regexp.Regexp
	hosts          []*regexp.Regexp
	redirectStatus int
	trustProto     bool
	recorder       Recorder
}

// Middleware returns a middleware that redirects plain HTTP requests with a
// safe method to HTTPS and adds the Strict-Transport-Security header to
// responses sent over HTTPS, unless the handler already set it. Only main
// requests are handled.
//
// It returns ErrInvalidMaxAge, ErrInvalidRedirectStatus or ErrInvalidPattern
// for invalid configuration.
func Middleware(cfg Config) (kernel.MiddlewareFunc, error) {
	if cfg.HSTSMaxAge < 0 {
		return nil, ErrInvalidMaxAge
	}

	if cfg.RedirectStatusCode == 0 {
		cfg.RedirectStatusCode = http.StatusFound
	}

	switch cfg.RedirectStatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return nil, ErrInvalidRedirectStatus
	}

	allowList, err := compilePatterns(cfg.AllowList)
	if err != nil {
		return nil, err
	}

	hosts, err := compilePatterns(cfg.Hosts)
	if err != nil {
		return nil, err
	}

	f := &forcedSSL{
		hstsValue:      HSTSValue(cfg.HSTSMaxAge, cfg.HSTSIncludeSubDomains, cfg.HSTSPreload),
		allowList:      allowList,
		hosts:          hosts,
		redirectStatus: cfg.RedirectStatusCode,
		trustProto:     cfg.TrustForwardedProto,
		recorder:       cfg.Recorder,
	}

	return f.middleware, nil
}

// HSTSValue formats a Strict-Transport-Security header value. It returns an
// empty string when maxAge is not positive.
func HSTSValue(maxAge int, includeSubDomains, preload bool) string {
	if maxAge <= 0 {
		return ""
	}

	value := fmt.Sprintf("max-age=%d", maxAge)
	if includeSubDomains {
		value += "; includeSubDomains"
	}
	if preload {
		value += "; preload"
	}

	return value
}

func (f *forcedSSL) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !kernel.IsMainRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		if !f.isSecure(r) {
			if f.shouldRedirect(r) {
				f.redirect(w, r)
				return
			}

			// RFC 6797 Section 7.2: no HSTS header over plain HTTP.
			next.ServeHTTP(w, r)
			return
		}

		if f.hstsValue == "" {
			next.ServeHTTP(w, r)
			return
		}

		hw := &hstsResponseWriter{ResponseWriter: w, value: f.hstsValue}
		next.ServeHTTP(hw, r)
		hw.setHeader()
	})
}

func (f *forcedSSL) isSecure(r *http.Request) bool {
	if r.TLS != nil || strings.EqualFold(r.URL.Scheme, "https") {
		return true
	}

	return f.trustProto && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func (f *forcedSSL) shouldRedirect(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
	default:
		return false
	}

	path := r.URL.Path
	if path == "" {
		path = "/"
	}

	if matchAny(f.allowList, path) {
		return false
	}

	if len(f.hosts) > 0 && !matchHost(f.hosts, r.Host) {
		return false
	}

	return true
}

func (f *forcedSSL) redirect(w http.ResponseWriter, r *http.Request) {
	if r.Host == "" || !httpguts.ValidHostHeader(r.Host) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if f.recorder != nil {
		f.recorder.Redirected()
	}

	http.Redirect(w, r, "https://"+r.Host+r.URL.RequestURI(), f.redirectStatus)
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, p, err)
		}

		out = append(out, re)
	}

	return out, nil
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}

	return false
}

// matchHost tries the host as sent and, for punycode hosts, its Unicode
// form.
func matchHost(patterns []*regexp.Regexp, host string) bool {
	if matchAny(patterns, host) {
		return true
	}

	name, port := host, ""
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		name, port = host[:i], host[i:]
	}

	unicode, err := idna.ToUnicode(name)
	if err != nil || unicode == name {
		return false
	}

	return matchAny(patterns, unicode+port)
}

// hstsResponseWriter adds the HSTS header right before the response header
// is written, when the handler did not set one.
type hstsResponseWriter struct {
	http.ResponseWriter
	value string
	done  bool
}

func (hw *hstsResponseWriter) setHeader() {
	if hw.done {
		return
	}

	hw.done = true

	h := hw.Header()
	if h.Get("Strict-Transport-Security") == "" {
		h.Set("Strict-Transport-Security", hw.value)
	}
}

func (hw *hstsResponseWriter) WriteHeader(statusCode int) {
	hw.setHeader()
	hw.ResponseWriter.WriteHeader(statusCode)
}

func (hw *hstsResponseWriter) Write(b []byte) (int, error) {
	hw.setHeader()
	return hw.ResponseWriter.Write(b)
}

// Flush sets the header and flushes the underlying writer when it supports
// flushing.
func (hw *hstsResponseWriter) Flush() {
	hw.setHeader()

	if f, ok := hw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (hw *hstsResponseWriter) Unwrap() http.ResponseWriter {
	return hw.ResponseWriter
}
