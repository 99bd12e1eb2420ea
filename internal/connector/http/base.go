package http

// Base carries the REST client and identity of an HTTP-backed endpoint.
// Connectors embed it.
type Base struct {
	Client *Client

	EndpointID string

	// Version is the API version bound after login.
	Version string
}

// NewBase creates a Base around a new client.
func NewBase(id string, config *ClientConfig) *Base {
	return &Base{Client: NewClient(config), EndpointID: id}
}

// ID returns the endpoint identifier.
func (b *Base) ID() string { return b.EndpointID }

// Close releases nothing; connections belong to the shared transport.
func (b *Base) Close() error { return nil }
