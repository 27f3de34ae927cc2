// Package query generates and runs dynamic SWQL queries from a declarative
// description: a base table, projected columns, nested entity projections,
// and include/exclude property filters.
//
// Nested entity columns are projected as aliased flat columns and folded back
// into per-relation arrays on the way out, grouping rows by the base-column
// tuple and suppressing duplicate nested entries. Everything here is a pure
// read; mutation lives in the orion package.
package query
