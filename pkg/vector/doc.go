// Package vector defines the vector store abstraction consumed by the
// retrieval engine and provides a Postgres/pgvector implementation.
package vector
