package agent

import "strings"

// Request is the descriptor of one intercepted request. It carries only the
// attributes the routing policy needs; nothing here is persisted.
type Request struct {
	// URL is the request target, relative to the upstream origin.
	URL string
	// Method is the HTTP method.
	Method string
	// Accept is the request's Accept header value.
	Accept string
	// NavigationMode is set for top-level navigations
	// (Sec-Fetch-Mode: navigate in browser terms).
	NavigationMode bool
	// Destination is the declared destination type: document, script,
	// image, and so on (Sec-Fetch-Dest in browser terms).
	Destination string
}

// HTMLLike reports whether the request should be served network-first.
// A request is HTML-like if it is a navigation, accepts text/html, or
// declares a document destination. Everything else is a static asset.
func (r *Request) HTMLLike() bool {
	return r.NavigationMode ||
		strings.Contains(r.Accept, "text/html") ||
		r.Destination == "document"
}
