package kernel

import (
	"context"
	"net/http"
)

// MiddlewareFunc is a function which receives an http.Handler and returns
// another http.Handler. It matches the middleware signature used by chi,
// gorilla/mux and net/http wrappers.
type MiddlewareFunc func(http.Handler) http.Handler

// Middleware allows MiddlewareFunc to be passed where a Middleware-style
// value is expected.
func (mw MiddlewareFunc) Middleware(handler http.Handler) http.Handler {
	return mw(handler)
}

// Chain composes middlewares so that the first one is the outermost.
// Nil entries are skipped.
func Chain(mws ...MiddlewareFunc) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] == nil {
				continue
			}
			next = mws[i](next)
		}

		return next
	}
}

// RequestType distinguishes the outermost request from internally
// dispatched sub-requests.
type RequestType int

const (
	// MainRequest is the request received from the client.
	MainRequest RequestType = iota

	// SubRequest is a request dispatched internally while handling
	// a main request.
	SubRequest
)

// String returns a human readable name of the request type.
func (t RequestType) String() string {
	if t == SubRequest {
		return "sub"
	}

	return "main"
}

type requestTypeKey struct{}

type sessionNameKey struct{}

// RequestTypeOf returns the type of r. Requests without a marker are main
// requests.
func RequestTypeOf(r *http.Request) RequestType {
	if t, ok := r.Context().Value(requestTypeKey{}).(RequestType); ok {
		return t
	}

	return MainRequest
}

// IsMainRequest reports whether r is the outermost request.
func IsMainRequest(r *http.Request) bool {
	return RequestTypeOf(r) == MainRequest
}

// NewSubRequest returns a shallow clone of r marked as a sub-request.
// The cookie header and the session name are carried over.
func NewSubRequest(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), requestTypeKey{}, SubRequest)

	return r.Clone(ctx)
}

// Dispatch serves h with a sub-request derived from r.
func Dispatch(w http.ResponseWriter, r *http.Request, h http.Handler) {
	h.ServeHTTP(w, NewSubRequest(r))
}

// WithSessionName returns a copy of r that carries the name of the session
// cookie used by the session subsystem for this request.
func WithSessionName(r *http.Request, name string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionNameKey{}, name))
}

// SessionName returns the session cookie name captured on the request
// context, or fallback when none was set.
func SessionName(r *http.Request, fallback string) string {
	if name, ok := r.Context().Value(sessionNameKey{}).(string); ok && name != "" {
		return name
	}

	return fallback
}
