// Package orion implements desired-state reconciliation for monitored nodes
// in SolarWinds Orion.
//
// The entry point is Reconciler.Reconcile: given a NodeSpec it looks up the
// remote node by identity key, classifies it as absent, present-and-matching,
// or present-and-divergent, and issues the minimal set of SWIS calls to
// converge. Every applied change is a set-to-value operation, so re-running
// after a transient failure is safe; no retries happen here.
//
// Creation goes through two distinct paths. SNMP and WMI nodes are created
// by an Orion discovery job: the reconciler builds a discovery profile
// (including server-side interface expression filters), starts it, and polls
// its status within a bounded window. Agent nodes register a passive agent
// and then schedule a list-resources import. Both paths finish with the same
// post-create steps: volume and interface removal filters, caption and DNS
// fixes, and custom properties.
//
// The resolver half of the package turns raw parameters into a ResolvedNode,
// validating cross-field constraints before any remote mutation and
// resolving credential and polling engine names to their opaque ids.
package orion
