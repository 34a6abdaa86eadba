// Package graph provides the read-only graph store abstraction used by
// the retrieval engine, together with a Neo4j-backed implementation.
//
// The engine treats the graph database as an opaque query executor: fixed
// Cypher traversal patterns with flat parameter maps, no transactional
// semantics. Mutating the graph is outside this module's scope.
package graph
