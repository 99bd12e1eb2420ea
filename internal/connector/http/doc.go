// Package http is the REST transport under the Salesforce connector: a
// rate-limited client with retries on throttling and server errors,
// pluggable request authentication and nextRecordsUrl pagination.
package http
