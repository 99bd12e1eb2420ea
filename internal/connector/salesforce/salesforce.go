package salesforce

import (
	"context"
	"sync"

	connhttp "github.com/nucleus/ucl-salesforce/internal/connector/http"
	"github.com/nucleus/ucl-salesforce/internal/endpoint"
)

// Client is the outbound surface the plugins depend on.
type Client interface {
	// QueryAll runs a SOQL query and follows every nextRecordsUrl.
	QueryAll(ctx context.Context, soql string) (*QueryResult, error)

	// Describe returns the field metadata of one object.
	Describe(ctx context.Context, object string) (*DescribeResult, error)

	// DescribeGlobal lists the objects of the org.
	DescribeGlobal(ctx context.Context) ([]GlobalObject, error)

	// BulkUpsert submits records through a bulk job keyed on
	// externalIDField and returns one result per record, in order.
	BulkUpsert(ctx context.Context, object string, records []map[string]any, externalIDField string) ([]BulkResult, error)
}

var (
	_ Client                  = (*Salesforce)(nil)
	_ endpoint.DataEndpoint   = (*Salesforce)(nil)
	_ endpoint.ActionEndpoint = (*Salesforce)(nil)
)

// Salesforce is the Salesforce connector.
type Salesforce struct {
	*connhttp.Base
	config *Config

	// bulk shares the limiter settings but authenticates with the
	// X-SFDC-Session header.
	bulk *connhttp.Client

	mu      sync.RWMutex
	session *Session
}

// New creates a connector. No network call is made until Login or the
// first endpoint operation.
func New(config *Config) (*Salesforce, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	restConfig := connhttp.DefaultClientConfig()
	restConfig.Headers["Accept"] = "application/json"
	restConfig.Logger = config.Logger
	restConfig.Transport = config.Transport
	if config.Timeout > 0 {
		restConfig.Timeout = config.Timeout
	}
	if config.RateLimit > 0 {
		restConfig.RateLimit = config.RateLimit
	}
	restConfig.MaxRetries = config.MaxRetries

	bulkConfig := *restConfig
	bulkConfig.Headers = map[string]string{"Accept": "application/json"}

	return &Salesforce{
		Base:   connhttp.NewBase("http.salesforce", restConfig),
		config: config,
		bulk:   connhttp.NewClient(&bulkConfig),
	}, nil
}

// Dial creates a connector and logs in with the configured credentials.
func Dial(ctx context.Context, config *Config) (*Salesforce, error) {
	s, err := New(config)
	if err != nil {
		return nil, err
	}
	if _, err := s.Login(ctx, config.Credentials); err != nil {
		return nil, err
	}
	return s, nil
}

// Session returns the bound session, or nil before login.
func (s *Salesforce) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Config returns the validated configuration.
func (s *Salesforce) Config() *Config {
	return s.config
}

func (s *Salesforce) bind(session *Session) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	s.Client.SetBaseURL(session.InstanceURL)
	s.Client.SetAuth(connhttp.BearerToken{Token: session.ID})
	s.bulk.SetBaseURL(session.InstanceURL)
	s.bulk.SetAuth(connhttp.SessionHeader{SessionID: session.ID})
	s.Version = s.config.APIVersion
}

// ensureSession logs in with the configured credentials on first use.
func (s *Salesforce) ensureSession(ctx context.Context) error {
	if s.Session() != nil {
		return nil
	}
	_, err := s.Login(ctx, s.config.Credentials)
	return err
}
