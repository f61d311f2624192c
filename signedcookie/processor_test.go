package signedcookie

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/cookieguard/kernel"
	"github.com/vitalvas/cookieguard/signer"
)

const testSecret = "this-is-a-32-byte-or-longer-key!"

func newTestSigner(t *testing.T) *signer.HMAC {
	t.Helper()

	s, err := signer.New([]byte(testSecret))
	require.NoError(t, err)

	return s
}

func newTestProcessor(t *testing.T, cfg Config) *Processor {
	t.Helper()

	if cfg.Signer == nil {
		cfg.Signer = newTestSigner(t)
	}

	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}

	p, err := NewProcessor(cfg)
	require.NoError(t, err)

	return p
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingRecorder struct {
	verified, rejected, signed []string
}

func (r *countingRecorder) CookieVerified(name string) { r.verified = append(r.verified, name) }
func (r *countingRecorder) CookieRejected(name string) { r.rejected = append(r.rejected, name) }
func (r *countingRecorder) CookieSigned(name string)   { r.signed = append(r.signed, name) }

func TestNewProcessor(t *testing.T) {
	s := newTestSigner(t)

	t.Run("config validation", func(t *testing.T) {
		tests := []struct {
			name    string
			config  Config
			wantErr error
		}{
			{"no signer", Config{Policy: NewNamePolicy("a")}, ErrNoSigner},
			{"no policy and no names", Config{Signer: s}, ErrInvalidConfiguration},
			{"policy and names", Config{Signer: s, Policy: NewNamePolicy("a"), Names: []string{"a"}}, ErrInvalidConfiguration},
			{"invalid name", Config{Signer: s, Names: []string{"bad name"}}, ErrInvalidCookieName},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewProcessor(tt.config)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
	})

	t.Run("policy form does not warn", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := NewProcessor(Config{
			Signer: s,
			Policy: NewNamePolicy("a"),
			Logger: slog.New(slog.NewTextHandler(&buf, nil)),
		})
		require.NoError(t, err)
		assert.Empty(t, buf.String())
	})

	t.Run("name list form warns once", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := NewProcessor(Config{
			Signer: s,
			Names:  []string{"foobar"},
			Logger: slog.New(slog.NewTextHandler(&buf, nil)),
		})
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), "deprecated")
		assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
		assert.True(t, p.Policy().IsSignable("foobar", DefaultSessionName))
	})

	t.Run("empty name list is valid", func(t *testing.T) {
		p := newTestProcessor(t, Config{Names: []string{}})
		assert.False(t, p.Policy().IsSignable("foobar", DefaultSessionName))
	})

	t.Run("default session name", func(t *testing.T) {
		p := newTestProcessor(t, Config{Policy: NewNamePolicy("a")})
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		assert.Equal(t, DefaultSessionName, p.SessionName(r))
		assert.Equal(t, "SID", p.SessionName(kernel.WithSessionName(r, "SID")))
	})
}

func TestProcessRequest(t *testing.T) {
	s := newTestSigner(t)

	t.Run("verified cookie is unwrapped", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("foobar")})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "foobar", Value: s.Sign("x")})
		p.ProcessRequest(r)

		ck, err := r.Cookie("foobar")
		require.NoError(t, err)
		assert.Equal(t, "x", ck.Value)
	})

	t.Run("tampered cookie is removed", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("foobar")})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "foobar", Value: "garbage"})
		r.AddCookie(&http.Cookie{Name: "other", Value: "kept"})
		p.ProcessRequest(r)

		_, err := r.Cookie("foobar")
		assert.ErrorIs(t, err, http.ErrNoCookie)

		ck, err := r.Cookie("other")
		require.NoError(t, err)
		assert.Equal(t, "kept", ck.Value)
	})

	t.Run("only signable cookies are touched", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("foobar")})

		signedOther := s.Sign("y")
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "plain", Value: "garbage"})
		r.AddCookie(&http.Cookie{Name: "other", Value: signedOther})
		p.ProcessRequest(r)

		ck, err := r.Cookie("plain")
		require.NoError(t, err)
		assert.Equal(t, "garbage", ck.Value)

		ck, err = r.Cookie("other")
		require.NoError(t, err)
		assert.Equal(t, signedOther, ck.Value)
	})

	t.Run("header is left alone when nothing matches", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("foobar")})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Cookie", "a=1;b=2")
		p.ProcessRequest(r)

		assert.Equal(t, "a=1;b=2", r.Header.Get("Cookie"))
	})

	t.Run("repeated cookie names are checked one by one", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("foobar")})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "foobar", Value: "forged"})
		r.AddCookie(&http.Cookie{Name: "foobar", Value: s.Sign("x")})
		p.ProcessRequest(r)

		cookies := r.Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "x", cookies[0].Value)
	})

	t.Run("recorder and debug log", func(t *testing.T) {
		var buf bytes.Buffer
		rec := &countingRecorder{}
		p := newTestProcessor(t, Config{
			Signer:   s,
			Policy:   NewNamePolicy("*"),
			Recorder: rec,
			Logger:   slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "good", Value: s.Sign("1")})
		r.AddCookie(&http.Cookie{Name: "bad", Value: "2"})
		p.ProcessRequest(r)

		assert.Equal(t, []string{"good"}, rec.verified)
		assert.Equal(t, []string{"bad"}, rec.rejected)
		assert.Contains(t, buf.String(), "cookie=bad")
	})

	t.Run("sub request is not processed", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("foobar")})

		signed := s.Sign("x")
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "foobar", Value: signed})
		r.AddCookie(&http.Cookie{Name: "tampered", Value: "garbage"})
		r = kernel.NewSubRequest(r)

		before := r.Header.Get("Cookie")
		p.ProcessRequest(r)

		assert.Equal(t, before, r.Header.Get("Cookie"))
	})
}

func TestProcessRequestSessionCookie(t *testing.T) {
	s := newTestSigner(t)
	const session = "PHPSESSID"

	t.Run("wildcard does not unwrap session cookie without legacy support", func(t *testing.T) {
		p := newTestProcessor(t, Config{
			Signer:                     s,
			Policy:                     NewNamePolicy("*"),
			SessionName:                session,
			DisableLegacySessionCookie: true,
		})

		signed := s.Sign("s")
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: session, Value: signed})
		p.ProcessRequest(r)

		ck, err := r.Cookie(session)
		require.NoError(t, err)
		assert.Equal(t, signed, ck.Value)
	})

	t.Run("legacy signed session cookie is unwrapped", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("*"), SessionName: session})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: session, Value: s.Sign("s")})
		p.ProcessRequest(r)

		ck, err := r.Cookie(session)
		require.NoError(t, err)
		assert.Equal(t, "s", ck.Value)
	})

	t.Run("unsigned session cookie is kept", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("*"), SessionName: session})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: session, Value: "abc123"})
		p.ProcessRequest(r)

		ck, err := r.Cookie(session)
		require.NoError(t, err)
		assert.Equal(t, "abc123", ck.Value)
	})

	t.Run("legacy path works with an empty policy", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy(), SessionName: session})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: session, Value: s.Sign("s")})
		p.ProcessRequest(r)

		ck, err := r.Cookie(session)
		require.NoError(t, err)
		assert.Equal(t, "s", ck.Value)
	})

	t.Run("explicitly listed session cookie is verified", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("*", session), SessionName: session})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: session, Value: "abc123"})
		p.ProcessRequest(r)

		_, err := r.Cookie(session)
		assert.ErrorIs(t, err, http.ErrNoCookie)
	})

	t.Run("session name from request context", func(t *testing.T) {
		p := newTestProcessor(t, Config{
			Signer:                     s,
			Policy:                     NewNamePolicy("*"),
			DisableLegacySessionCookie: true,
		})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "tenant_sid", Value: "plain"})
		r = kernel.WithSessionName(r, "tenant_sid")
		p.ProcessRequest(r)

		ck, err := r.Cookie("tenant_sid")
		require.NoError(t, err)
		assert.Equal(t, "plain", ck.Value)
	})
}

func TestProcessResponse(t *testing.T) {
	s := newTestSigner(t)
	expires := time.Date(2030, time.January, 2, 3, 4, 5, 0, time.UTC)

	t.Run("signable cookie is signed with attributes kept", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("foobar")})

		w := httptest.NewRecorder()
		http.SetCookie(w, &http.Cookie{
			Name:     "foobar",
			Value:    "x",
			Path:     "/app",
			Domain:   "example.com",
			Expires:  expires,
			MaxAge:   3600,
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})

		p.ProcessResponse(httptest.NewRequest(http.MethodGet, "/", nil), w.Header())

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)

		ck := cookies[0]
		assert.Equal(t, "foobar", ck.Name)
		assert.Equal(t, s.Sign("x"), ck.Value)
		assert.Equal(t, "/app", ck.Path)
		assert.Equal(t, "example.com", ck.Domain)
		assert.True(t, expires.Equal(ck.Expires))
		assert.Equal(t, 3600, ck.MaxAge)
		assert.True(t, ck.Secure)
		assert.True(t, ck.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	})

	t.Run("other cookies are kept verbatim", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("foobar")})

		h := http.Header{}
		h.Add("Set-Cookie", "plain=1; Path=/; Custom=attr")
		h.Add("Set-Cookie", "foobar=x; Path=/")

		p.ProcessResponse(httptest.NewRequest(http.MethodGet, "/", nil), h)

		assert.Equal(t, []string{"plain=1; Path=/; Custom=attr", "foobar=" + s.Sign("x") + "; Path=/"}, h.Values("Set-Cookie"))
	})

	t.Run("wildcard skips session cookie", func(t *testing.T) {
		rec := &countingRecorder{}
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("*"), SessionName: "sid", Recorder: rec})

		h := http.Header{}
		h.Add("Set-Cookie", "sid=abc")
		h.Add("Set-Cookie", "cart=3")

		p.ProcessResponse(httptest.NewRequest(http.MethodGet, "/", nil), h)

		assert.Equal(t, []string{"sid=abc", "cart=" + s.Sign("3")}, h.Values("Set-Cookie"))
		assert.Equal(t, []string{"cart"}, rec.signed)
	})

	t.Run("already signed value is signed again", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("foobar")})

		h := http.Header{}
		h.Add("Set-Cookie", "foobar="+s.Sign("x"))

		p.ProcessResponse(httptest.NewRequest(http.MethodGet, "/", nil), h)

		assert.Equal(t, []string{"foobar=" + s.Sign(s.Sign("x"))}, h.Values("Set-Cookie"))
	})

	t.Run("sub request is not processed", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("foobar")})

		h := http.Header{}
		h.Add("Set-Cookie", "foobar=x")

		r := kernel.NewSubRequest(httptest.NewRequest(http.MethodGet, "/", nil))
		p.ProcessResponse(r, h)

		assert.Equal(t, []string{"foobar=x"}, h.Values("Set-Cookie"))
	})

	t.Run("round trip through request processing", func(t *testing.T) {
		p := newTestProcessor(t, Config{Signer: s, Policy: NewNamePolicy("foobar")})

		w := httptest.NewRecorder()
		http.SetCookie(w, &http.Cookie{Name: "foobar", Value: "hello"})
		p.ProcessResponse(httptest.NewRequest(http.MethodGet, "/", nil), w.Header())

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, ck := range w.Result().Cookies() {
			r.AddCookie(ck)
		}
		p.ProcessRequest(r)

		ck, err := r.Cookie("foobar")
		require.NoError(t, err)
		assert.Equal(t, "hello", ck.Value)
	})
}
