// Package service holds the application operations behind the HTTP API:
// tenant lifecycle, users and patients. Services depend on small consumer
// interfaces so they can be tested without a database; internal/store
// provides the PostgreSQL implementations.
package service
