package salesforce

import (
	"time"

	"github.com/nucleus/ucl-salesforce/internal/endpoint"
)

func init() {
	endpoint.DefaultRegistry().Register("http.salesforce", func(config map[string]any) (endpoint.Endpoint, error) {
		return New(ConfigFromMap(config))
	})
}

// ConfigFromMap builds a Config from loose endpoint configuration.
func ConfigFromMap(config map[string]any) *Config {
	return &Config{
		Credentials: Credentials{
			Username:      getString(config, "username", ""),
			Password:      getString(config, "password", ""),
			SecurityToken: getString(config, "securityToken", ""),
		},
		Domain:        getString(config, "domain", ""),
		LoginURL:      getString(config, "loginUrl", ""),
		APIVersion:    getString(config, "apiVersion", ""),
		BulkBatchSize: getInt(config, "bulkBatchSize", 0),
		Timeout:       time.Duration(getInt(config, "timeoutSeconds", 0)) * time.Second,
	}
}

// --- Config Helpers ---

func getString(m map[string]any, key, defaultVal string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return defaultVal
}

func getInt(m map[string]any, key string, defaultVal int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return defaultVal
}

func getBool(m map[string]any, key string, defaultVal bool) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		switch v {
		case "true", "True", "1":
			return true
		case "false", "False", "0":
			return false
		}
	}
	return defaultVal
}
