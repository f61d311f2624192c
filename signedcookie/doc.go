// Package signedcookie detects cookies tampered with by the client.
//
// Cookies selected by a Policy are signed when the application stages them
// on a response and verified when the client sends them back. A cookie
// whose signature does not verify is removed from the request, so handlers
// see it as absent and never observe a forged or garbled value.
//
//	s, err := signer.New([]byte(os.Getenv("COOKIE_SECRET")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mw, err := signedcookie.Middleware(signedcookie.Config{
//	    Signer: s,
//	    Policy: signedcookie.NewNamePolicy("remember_me", "cart"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.Use(mw)
//
// # Policy
//
// NewNamePolicy matches exact cookie names. The "*" pattern matches every
// cookie except the session cookie, whose value is owned by the session
// subsystem; list the session cookie name explicitly to sign it too.
//
// # Signed session cookies from older releases
//
// Earlier releases signed the session cookie without it being part of the
// policy. Such a cookie is still unwrapped when its signature verifies,
// unless Config.DisableLegacySessionCookie is set.
//
// # Limitations
//
// Outbound values are signed as staged. A handler that copies an already
// signed value from the request into a new Set-Cookie gets it signed twice.
// Set-Cookie attributes unknown to net/http are dropped from re-signed
// cookies.
package signedcookie
