// Package types defines the shared data model for the retrieval engine:
// entities, scored entities, chunk matches, and query bundles.
//
// All values in this package are created fresh per retrieval call and
// discarded when the call returns; nothing here carries cross-query state.
package types
