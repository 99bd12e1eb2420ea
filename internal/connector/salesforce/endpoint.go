package salesforce

import (
	"context"
	"fmt"

	"github.com/nucleus/ucl-salesforce/internal/endpoint"
)

// ValidateConfig logs in and reports whether the credentials were accepted.
func (s *Salesforce) ValidateConfig(ctx context.Context, config map[string]any) (*endpoint.ValidationResult, error) {
	session, err := s.Login(ctx, s.config.Credentials)
	if err != nil {
		if IsAuthentication(err) {
			return &endpoint.ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("Connection failed: %v", err),
			}, nil
		}
		return nil, err
	}
	return &endpoint.ValidationResult{
		Valid:           true,
		Message:         "Connection successful: " + session.InstanceURL,
		DetectedVersion: s.config.APIVersion,
	}, nil
}

// GetCapabilities returns Salesforce capabilities.
func (s *Salesforce) GetCapabilities() *endpoint.Capabilities {
	return &endpoint.Capabilities{
		SupportsFull:     true,
		SupportsPreview:  true,
		SupportsMetadata: true,
		SupportsWrite:    true,
		SupportsUpsert:   true,
		DefaultFetchSize: 2000,
	}
}

// GetDescriptor returns the Salesforce endpoint descriptor.
func (s *Salesforce) GetDescriptor() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		ID:          "http.salesforce",
		Family:      "http",
		Title:       "Salesforce",
		Vendor:      "Salesforce",
		Description: "Salesforce connector for SOQL queries, object metadata and bulk upserts",
		DocsURL:     "https://developer.salesforce.com/docs/atlas.en-us.api_rest.meta/api_rest/",
		Fields: []*endpoint.FieldDescriptor{
			{Key: "username", Label: "Username", ValueType: "string", Required: true},
			{Key: "password", Label: "Password", ValueType: "password", Required: true, Sensitive: true},
			{Key: "securityToken", Label: "Security Token", ValueType: "password", Required: true, Sensitive: true},
			{Key: "domain", Label: "Domain", ValueType: "string", DefaultValue: DefaultDomain, Advanced: true, Options: []*endpoint.FieldOption{
				{Label: "Production", Value: "login"},
				{Label: "Sandbox", Value: "test"},
			}},
			{Key: "loginUrl", Label: "Login URL", ValueType: "string", Advanced: true, Placeholder: "https://mycompany.my.salesforce.com"},
			{Key: "apiVersion", Label: "API Version", ValueType: "string", DefaultValue: DefaultAPIVersion, Advanced: true},
		},
	}
}
