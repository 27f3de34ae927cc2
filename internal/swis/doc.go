// Package swis implements a client for the SolarWinds Information Service
// (SWIS) JSON REST API v3.
//
// The remote API is treated as an opaque capability set: Query runs SWQL
// read queries, Invoke calls entity verbs, and Create/Read/Update/Delete
// operate on SWIS URIs. Higher layers consume the narrow Service interface
// so they can be tested against an in-memory fake.
//
// A single Connect probe verifies reachability and credentials up front;
// no retries are performed anywhere in this package. Retry policy belongs
// to the orchestration layer driving the modules.
package swis
