package http

import "net/http"

// AuthConfig decorates an outgoing request with credentials.
type AuthConfig interface {
	Apply(req *http.Request)
}

// NoAuth sends requests as-is, e.g. the SOAP login call.
type NoAuth struct{}

func (NoAuth) Apply(*http.Request) {}

// BearerToken authenticates REST calls with the session id as an OAuth
// bearer token.
type BearerToken struct {
	Token string
}

func (a BearerToken) Apply(req *http.Request) {
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
}

// SessionHeader sends the session id in a named header. The Bulk API
// expects X-SFDC-Session.
type SessionHeader struct {
	SessionID string
	Header    string
}

func (a SessionHeader) Apply(req *http.Request) {
	if a.SessionID == "" {
		return
	}
	name := a.Header
	if name == "" {
		name = "X-SFDC-Session"
	}
	req.Header.Set(name, a.SessionID)
}
