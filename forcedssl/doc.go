// Package forcedssl redirects plain HTTP traffic to HTTPS and sends the
// HTTP Strict Transport Security header (RFC 6797) over HTTPS.
//
//	mw, err := forcedssl.Middleware(forcedssl.Config{
//	    HSTSMaxAge:            forcedssl.DefaultHSTSMaxAge,
//	    HSTSIncludeSubDomains: true,
//	    AllowList:             []string{`^/healthz$`},
//	    RedirectStatusCode:    http.StatusMovedPermanently,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.Use(mw)
//
// Only safe methods (GET, HEAD, OPTIONS, TRACE) are redirected; other
// requests are passed on so that a POST body is never silently dropped by a
// redirect.
package forcedssl
