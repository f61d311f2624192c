// Package kernel holds the small amount of request lifecycle plumbing shared
// by the cookieguard middlewares.
//
// Middlewares in this module act only on main requests. A handler that
// forwards work to another handler inside the same HTTP exchange should do so
// with Dispatch (or NewSubRequest), so that cookies are not unwrapped or
// signed twice:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    kernel.Dispatch(w, r, fragmentHandler)
//	}
//
// The session cookie name can be captured per request with WithSessionName
// when it differs between virtual hosts or tenants.
package kernel
