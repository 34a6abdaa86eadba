package vector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/graphweave/graphweave/pkg/types"
)

// PostgresStore implements Store over Postgres with the pgvector
// extension. Each index maps to a table holding id, text value, source id
// and an embedding column with a cosine-distance index.
type PostgresStore struct {
	db      *sql.DB
	indexes map[string]*PostgresIndex
}

// NewPostgresStore opens a connection to Postgres and registers the
// standard "chunk" index. Additional indexes can be registered with
// RegisterIndex before use.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	store := &PostgresStore{
		db:      db,
		indexes: make(map[string]*PostgresIndex),
	}
	store.RegisterIndex(ChunkIndexName, "chunks")
	return store, nil
}

// RegisterIndex maps an index name to a backing table.
func (s *PostgresStore) RegisterIndex(name, table string) {
	s.indexes[name] = &PostgresIndex{db: s.db, name: name, table: table}
}

// Index returns the named index, or nil when it is not registered.
func (s *PostgresStore) Index(name string) Index {
	index, ok := s.indexes[name]
	if !ok {
		return nil
	}
	return index
}

// Close closes the database connection shared by all indexes.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// PostgresIndex is a single pgvector-backed index.
type PostgresIndex struct {
	db    *sql.DB
	name  string
	table string
}

// TopK ranks rows by cosine distance to the query embedding.
func (i *PostgresIndex) TopK(ctx context.Context, query types.QueryBundle, k int) ([]types.ChunkMatch, error) {
	if k <= 0 || len(query.Embedding) == 0 {
		return nil, nil
	}

	stmt := fmt.Sprintf(`
		SELECT chunk_id, value, source_id, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, pq.QuoteIdentifier(i.table))

	rows, err := i.db.QueryContext(ctx, stmt, pgvector.NewVector(query.Embedding), k)
	if err != nil {
		return nil, fmt.Errorf("top-k query on index %q failed: %w", i.name, err)
	}
	defer rows.Close()

	var matches []types.ChunkMatch
	for rows.Next() {
		var (
			chunkID  string
			value    sql.NullString
			sourceID sql.NullString
			score    float64
		)
		if err := rows.Scan(&chunkID, &value, &sourceID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan top-k row: %w", err)
		}
		matches = append(matches, types.ChunkMatch{
			ChunkID:    chunkID,
			Score:      score,
			SearchType: types.SearchTypeCosine,
			Chunk: &types.Chunk{
				ChunkID: chunkID,
				Value:   value.String,
				Source:  types.SourceInfo{SourceID: sourceID.String},
			},
		})
	}
	return matches, rows.Err()
}

// GetEmbeddings fetches stored embeddings for the given ids in one query.
func (i *PostgresIndex) GetEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error) {
	if len(ids) == 0 {
		return map[string][]float32{}, nil
	}

	stmt := fmt.Sprintf(`
		SELECT chunk_id, embedding
		FROM %s
		WHERE chunk_id = ANY($1)`, pq.QuoteIdentifier(i.table))

	rows, err := i.db.QueryContext(ctx, stmt, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("embedding fetch on index %q failed: %w", i.name, err)
	}
	defer rows.Close()

	embeddings := make(map[string][]float32, len(ids))
	for rows.Next() {
		var (
			chunkID   string
			embedding pgvector.Vector
		)
		if err := rows.Scan(&chunkID, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		embeddings[chunkID] = embedding.Slice()
	}
	return embeddings, rows.Err()
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Index = (*PostgresIndex)(nil)
)
