package plugin

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a missing or invalid plugin parameter.
type ConfigurationError struct {
	Parameter string
	Message   string
}

func (e *ConfigurationError) Error() string {
	if e.Parameter == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Parameter, e.Message)
}

// SchemaMismatchError reports input columns that are not fields of the
// target object.
type SchemaMismatchError struct {
	Object  string
	Columns []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("columns %s are not available in Salesforce object %s",
		strings.Join(e.Columns, ", "), e.Object)
}
