package domain

import (
	"fmt"
	"time"
)

// ConnectionError reports a failure to establish or verify the SWIS
// connection (authentication, network, or TLS). Never retried here.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ValidationError reports a bad or incompatible parameter. Fatal and raised
// before any remote mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// CredentialNotFoundError reports a credential name with no matching entry
// in the remote credential catalog.
type CredentialNotFoundError struct {
	Name string
}

func (e *CredentialNotFoundError) Error() string {
	return fmt.Sprintf("credential %q not found in Orion", e.Name)
}

// DiscoveryTimeoutError reports that a discovery or resource-import job did
// not complete within the bounded poll. The remote node may be left
// partially configured; a follow-up reconcile converges it.
type DiscoveryTimeoutError struct {
	ProfileID int
	Waited    time.Duration
}

func (e *DiscoveryTimeoutError) Error() string {
	if e.ProfileID != 0 {
		return fmt.Sprintf("discovery profile %d did not finish within %s", e.ProfileID, e.Waited)
	}
	return fmt.Sprintf("discovery did not finish within %s", e.Waited)
}

// RemoteOperationError reports a failed SWIS invoke, CRUD, or query call,
// including the vendor fault payload when one was returned.
type RemoteOperationError struct {
	Entity string
	Verb   string
	Status int
	Fault  string
	Err    error
}

func (e *RemoteOperationError) Error() string {
	op := e.Entity
	if e.Verb != "" {
		op += "." + e.Verb
	}
	switch {
	case e.Fault != "":
		return fmt.Sprintf("%s failed (status %d): %s", op, e.Status, e.Fault)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", op, e.Err)
	default:
		return fmt.Sprintf("%s failed (status %d)", op, e.Status)
	}
}

func (e *RemoteOperationError) Unwrap() error { return e.Err }

// QueryError reports a malformed or rejected read query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("query failed: %v (query: %s)", e.Err, e.Query)
	}
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
