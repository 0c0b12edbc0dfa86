package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/coachkb/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ChunkStore = (*Store)(nil)

// Store is a SQLite-backed chunk store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: store directory is required", domain.ErrInvalidInput)
	}

	// Ensure directory exists
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(dir, "chunks.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_chunks.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

const selectColumns = "id, source_key, content, embedding, metadata"

// Insert adds rows in a single transaction.
func (s *Store) Insert(ctx context.Context, rows []domain.StoredChunk) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source_key, content, embedding, metadata, segment_type,
			conversation_id, chunk_index, conversation_chunk_index, linked_conversation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		md, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata for %s: %w", r.ID, err)
		}
		var convIdx int
		if im, ok := r.Metadata.Interaction(); ok {
			convIdx = im.ConversationChunkIndex
		}
		var linked sql.NullInt64
		if cm, ok := r.Metadata.Commentary(); ok && cm.LinkedConversationID != nil {
			linked = sql.NullInt64{Int64: int64(*cm.LinkedConversationID), Valid: true}
		}
		_, err = stmt.ExecContext(ctx,
			r.ID, r.SourceKey, r.Content, float32SliceToBytes(r.Embedding), string(md),
			string(r.Metadata.SegmentType()), r.Metadata.ConversationID(), r.Metadata.ChunkIndex, convIdx, linked,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteBySource removes every row stored under sourceKey.
func (s *Store) DeleteBySource(ctx context.Context, sourceKey string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE source_key = ?", sourceKey)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted chunks: %w", err)
	}
	return int(n), nil
}

// CountBySource returns the number of rows stored under sourceKey.
func (s *Store) CountBySource(ctx context.Context, sourceKey string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE source_key = ?", sourceKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// SearchSimilar scans every row and returns those with cosine similarity at
// or above threshold, best first.
func (s *Store) SearchSimilar(
	ctx context.Context, embedding []float32, limit int, threshold float64,
) ([]domain.RetrievedChunk, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	all, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.RetrievedChunk, 0, len(all))
	for _, c := range all {
		c.Similarity = domain.CosineSimilarity(embedding, c.Embedding)
		if c.Similarity < threshold {
			continue
		}
		c.Embedding = nil
		hits = append(hits, c)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchKeyword returns rows whose content contains keyword, case-insensitively.
// Embeddings are returned so the caller can compute similarity.
func (s *Store) SearchKeyword(ctx context.Context, keyword string, limit int) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+` FROM chunks
		WHERE lower(content) LIKE '%' || lower(?) || '%' ESCAPE '\'
		ORDER BY source_key, chunk_index LIMIT ?`,
		escapeLike(keyword), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// FetchConversation returns the interaction rows of one conversation.
func (s *Store) FetchConversation(ctx context.Context, sourceKey string, conversationID int) ([]domain.RetrievedChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+` FROM chunks
		WHERE source_key = ? AND segment_type = ? AND conversation_id = ?
		ORDER BY conversation_chunk_index, chunk_index`,
		sourceKey, string(domain.SegmentInteraction), conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching conversation: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// FetchCommentaryForConversation returns the commentary rows linked to a conversation.
func (s *Store) FetchCommentaryForConversation(
	ctx context.Context, sourceKey string, conversationID int,
) ([]domain.RetrievedChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+` FROM chunks
		WHERE source_key = ? AND segment_type = ? AND linked_conversation_id = ?
		ORDER BY chunk_index`,
		sourceKey, string(domain.SegmentCommentary), conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching commentary: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ==================== Helper Functions ====================

func scanChunks(rows *sql.Rows) ([]domain.RetrievedChunk, error) {
	var out []domain.RetrievedChunk
	for rows.Next() {
		var (
			c         domain.RetrievedChunk
			embedding []byte
			metadata  string
		)
		if err := rows.Scan(&c.ID, &c.SourceKey, &c.Content, &embedding, &metadata); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", c.ID, err)
		}
		c.Embedding = bytesToFloat32Slice(embedding)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
