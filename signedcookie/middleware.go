package signedcookie

import (
	"net/http"

	"github.com/vitalvas/cookieguard/kernel"
)

// Middleware returns a middleware that verifies signed cookies before the
// next handler runs and signs the cookies the handler stages, right before
// the response header is written.
//
// It returns the same errors as NewProcessor.
func Middleware(cfg Config) (kernel.MiddlewareFunc, error) {
	p, err := NewProcessor(cfg)
	if err != nil {
		return nil, err
	}

	return p.Middleware, nil
}

// Middleware wraps next with request and response processing.
func (p *Processor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !kernel.IsMainRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		p.ProcessRequest(r)

		sw := &signingResponseWriter{ResponseWriter: w, p: p, r: r}
		next.ServeHTTP(sw, r)

		// Headers of a handler that never wrote are flushed by net/http
		// after it returns, so they can still be signed here.
		sw.sign()
	})
}

// signingResponseWriter signs staged cookies once, before the header is
// sent.
type signingResponseWriter struct {
	http.ResponseWriter
	p      *Processor
	r      *http.Request
	signed bool
}

func (sw *signingResponseWriter) sign() {
	if sw.signed {
		return
	}

	sw.signed = true
	sw.p.ProcessResponse(sw.r, sw.Header())
}

func (sw *signingResponseWriter) WriteHeader(statusCode int) {
	// 1xx responses do not carry cookies and are followed by the final
	// header.
	if statusCode >= 100 && statusCode < 200 && statusCode != http.StatusSwitchingProtocols {
		sw.ResponseWriter.WriteHeader(statusCode)
		return
	}

	sw.sign()
	sw.ResponseWriter.WriteHeader(statusCode)
}

func (sw *signingResponseWriter) Write(b []byte) (int, error) {
	sw.sign()
	return sw.ResponseWriter.Write(b)
}

// Flush signs pending cookies and flushes the underlying writer when it
// supports flushing.
func (sw *signingResponseWriter) Flush() {
	sw.sign()

	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (sw *signingResponseWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
