package plugin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
)

// Parameter names shared by the Salesforce plugins.
const (
	ParamUsername      = "username"
	ParamPassword      = "password"
	ParamSecurityToken = "security_token"
	ParamDomain        = "domain"
	ParamLoginURL      = "login_url"
	ParamAPIVersion    = "api_version"
	ParamDataset       = "dataset"
)

// ParameterType names how the host renders a parameter.
type ParameterType string

const (
	TypeString    ParameterType = "string"
	TypeMultiline ParameterType = "multiline"
	TypePassword  ParameterType = "password"
	TypeBool      ParameterType = "boolean"
	TypeDataset   ParameterType = "dataset"
)

// ParameterDescriptor declares one plugin parameter.
type ParameterDescriptor struct {
	Name        string        `json:"name"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Type        ParameterType `json:"type"`
	Advanced    bool          `json:"advanced,omitempty"`
	Default     any           `json:"default,omitempty"`
}

// ConnectionParameters are the parameters every Salesforce plugin takes.
func ConnectionParameters() []ParameterDescriptor {
	return []ParameterDescriptor{
		{Name: ParamUsername, Label: "Username", Description: "Username of the Salesforce Account.", Type: TypeString},
		{Name: ParamPassword, Label: "Password", Description: "Password of the Salesforce Account.", Type: TypePassword},
		{Name: ParamSecurityToken, Label: "Security Token", Description: "Security Token of the Salesforce Account.", Type: TypePassword},
		{Name: ParamDomain, Label: "Domain", Description: "login for production orgs, test for sandboxes.", Type: TypeString, Advanced: true, Default: salesforce.DefaultDomain},
		{Name: ParamLoginURL, Label: "Login URL", Description: "Custom login host, overrides the domain.", Type: TypeString, Advanced: true, Default: ""},
		{Name: ParamAPIVersion, Label: "API Version", Description: "Salesforce API version.", Type: TypeString, Advanced: true, Default: salesforce.DefaultAPIVersion},
	}
}

// Params is the loose parameter map a plugin is constructed from.
type Params map[string]any

// String returns a trimmed string parameter or "" when absent.
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Bool returns a boolean parameter, accepting "true"/"false" strings.
func (p Params) Bool(key string, defaultVal bool) (bool, error) {
	switch v := p[key].(type) {
	case nil:
		return defaultVal, nil
	case bool:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return defaultVal, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, &ConfigurationError{Parameter: key, Message: fmt.Sprintf("%q is not a boolean", v)}
		}
		return b, nil
	default:
		return false, &ConfigurationError{Parameter: key, Message: fmt.Sprintf("unsupported type %T", v)}
	}
}

// Required returns a non-empty string parameter or a ConfigurationError
// carrying message.
func (p Params) Required(key, message string) (string, error) {
	v := p.String(key)
	if v == "" {
		return "", &ConfigurationError{Parameter: key, Message: message}
	}
	return v, nil
}

// Connection builds the connector configuration from the credential
// parameters.
func (p Params) Connection() (*salesforce.Config, error) {
	username, err := p.Required(ParamUsername, "Username is required.")
	if err != nil {
		return nil, err
	}
	// Passwords and tokens are used verbatim.
	password, _ := p[ParamPassword].(string)
	if password == "" {
		return nil, &ConfigurationError{Parameter: ParamPassword, Message: "Password is required."}
	}
	token, _ := p[ParamSecurityToken].(string)
	if token == "" {
		return nil, &ConfigurationError{Parameter: ParamSecurityToken, Message: "Security Token is required."}
	}
	domain := p.String(ParamDomain)
	if domain != "" && domain != "login" && domain != "test" {
		return nil, &ConfigurationError{Parameter: ParamDomain, Message: "Domain must be login or test."}
	}
	return &salesforce.Config{
		Credentials: salesforce.Credentials{
			Username:      username,
			Password:      password,
			SecurityToken: token,
		},
		Domain:     domain,
		LoginURL:   p.String(ParamLoginURL),
		APIVersion: p.String(ParamAPIVersion),
	}, nil
}
