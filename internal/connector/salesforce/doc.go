// Package salesforce implements the Salesforce connector: a session-bound
// API client (SOAP partner login, REST query and describe, Bulk API v1
// upserts) that also serves as the "http.salesforce" UCL endpoint.
//
// Datasets are SObjects. Reading an object issues a SOQL query over its
// fields; writing upserts records through a bulk job.
package salesforce
