// Package connector registers the Salesforce endpoint and plugins.
package connector

import (
	// Import connectors and plugins to register them
	_ "github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	_ "github.com/nucleus/ucl-salesforce/internal/plugin/contactexport"
	_ "github.com/nucleus/ucl-salesforce/internal/plugin/sobjectupsert"
	_ "github.com/nucleus/ucl-salesforce/internal/plugin/soqlquery"
)

// All imports trigger init() functions that register endpoints and plugins.
