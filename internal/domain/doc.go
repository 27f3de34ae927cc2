// Package domain defines the core types for managing monitored nodes in a
// SolarWinds Orion installation.
//
// The central types are NodeSpec, the operator-supplied desired state for a
// single node, and Node, the state of the corresponding entity as observed
// through the SolarWinds Information Service (SWIS). The reconciler in
// internal/orion diffs one against the other.
//
// # Filters
//
// Filter expresses a predicate over discovered resources (interfaces and
// volumes). The same type serves two distinct pipelines:
//
// Discovery filters are serialized into the discovery request and evaluated
// server-side, so excluded interfaces are never imported in the first place.
//
// Removal filters run client-side after discovery: any interface or volume
// matching a removal filter is deleted from monitoring.
//
// # Errors
//
// The error taxonomy for the whole module lives here (ConnectionError,
// ValidationError, CredentialNotFoundError, DiscoveryTimeoutError,
// RemoteOperationError, QueryError). All are plain structs usable with
// errors.As; none imply a retry.
package domain
