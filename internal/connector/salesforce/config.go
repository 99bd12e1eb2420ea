package salesforce

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultAPIVersion    = "59.0"
	DefaultDomain        = "login"
	DefaultBulkBatchSize = 10000
	MaxBulkBatchSize     = 10000
	DefaultPollInterval  = 2 * time.Second
	DefaultPollTimeout   = 10 * time.Minute
)

// Credentials identify a Salesforce user for the SOAP login.
type Credentials struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	SecurityToken string `json:"securityToken"`
}

// Config holds Salesforce connection configuration.
type Config struct {
	Credentials

	// Domain is "login" for production orgs or "test" for sandboxes.
	Domain string `json:"domain,omitempty"`

	// LoginURL overrides Domain, e.g. a My Domain URL.
	LoginURL string `json:"loginUrl,omitempty"`

	APIVersion string `json:"apiVersion,omitempty"`

	// ClientName is sent in the SOAP CallOptions header.
	ClientName string `json:"clientName,omitempty"`

	Timeout   time.Duration `json:"-"`
	RateLimit float64       `json:"-"`

	// MaxRetries re-sends throttled or 5xx GET calls. Zero disables
	// retries.
	MaxRetries int `json:"-"`

	// BulkBatchSize caps the number of records per bulk batch.
	BulkBatchSize int           `json:"bulkBatchSize,omitempty"`
	PollInterval  time.Duration `json:"-"`
	PollTimeout   time.Duration `json:"-"`

	Transport http.RoundTripper `json:"-"`
	Logger    zerolog.Logger    `json:"-"`
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.Username == "" {
		return &ValidationError{Field: "username", Message: "required"}
	}
	if c.Password == "" {
		return &ValidationError{Field: "password", Message: "required"}
	}
	if c.SecurityToken == "" {
		return &ValidationError{Field: "securityToken", Message: "required"}
	}
	if c.LoginURL == "" {
		if c.Domain == "" {
			c.Domain = DefaultDomain
		}
		if c.Domain != "login" && c.Domain != "test" {
			return &ValidationError{Field: "domain", Message: "must be login or test"}
		}
	} else if !strings.HasPrefix(c.LoginURL, "https://") && !strings.HasPrefix(c.LoginURL, "http://") {
		return &ValidationError{Field: "loginUrl", Message: "must be an absolute http(s) URL"}
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	c.APIVersion = strings.TrimPrefix(c.APIVersion, "v")
	if c.BulkBatchSize <= 0 {
		c.BulkBatchSize = DefaultBulkBatchSize
	}
	if c.BulkBatchSize > MaxBulkBatchSize {
		c.BulkBatchSize = MaxBulkBatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.ClientName == "" {
		c.ClientName = "ucl-salesforce"
	}
	return nil
}

// loginBase returns the host the SOAP login is posted to.
func (c *Config) loginBase() string {
	if c.LoginURL != "" {
		return strings.TrimSuffix(c.LoginURL, "/")
	}
	return "https://" + c.Domain + ".salesforce.com"
}

func (c *Config) dataPath(parts ...string) string {
	return "/services/data/v" + c.APIVersion + "/" + strings.Join(parts, "/")
}

func (c *Config) asyncPath(parts ...string) string {
	return "/services/async/" + c.APIVersion + "/" + strings.Join(parts, "/")
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
