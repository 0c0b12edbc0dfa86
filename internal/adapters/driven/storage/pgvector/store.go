// Package pgvector provides a PostgreSQL chunk store using the pgvector extension.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ChunkStore = (*Store)(nil)

// DefaultBatchSize bounds rows per INSERT statement.
const DefaultBatchSize = 200

// chunkRow is the table model. Metadata holds the full chunk metadata; the
// remaining columns duplicate the fields stitching filters on.
type chunkRow struct {
	ID                     string          `gorm:"type:text;primaryKey"`
	SourceKey              string          `gorm:"type:text;not null;index"`
	Content                string          `gorm:"type:text;not null"`
	Embedding              pgvector.Vector `gorm:"type:vector"`
	Metadata               string          `gorm:"type:jsonb;not null"`
	SegmentType            string          `gorm:"type:text;not null;default:''"`
	ConversationID         int             `gorm:"not null;default:0"`
	ChunkIndex             int             `gorm:"not null;default:0"`
	ConversationChunkIndex int             `gorm:"not null;default:0"`
	LinkedConversationID   *int
	CreatedAt              time.Time `gorm:"autoCreateTime"`
}

func (chunkRow) TableName() string {
	return "coach_chunks"
}

// Store is a gorm-backed chunk store.
type Store struct {
	db *gorm.DB
}

// NewStore connects to dsn, enables the vector extension and migrates the table.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", domain.ErrInvalidInput)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to postgres: %v", domain.ErrProviderUnavailable, err)
	}
	return NewStoreFromDB(db)
}

// NewStoreFromDB wraps an open connection and migrates the table.
func NewStoreFromDB(db *gorm.DB) (*Store, error) {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enabling vector extension: %w", err)
	}
	if err := db.AutoMigrate(&chunkRow{}); err != nil {
		return nil, fmt.Errorf("migrating chunks table: %w", err)
	}
	err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_coach_chunks_conversation
		ON coach_chunks (source_key, segment_type, conversation_id)`).Error
	if err != nil {
		return nil, fmt.Errorf("creating conversation index: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Insert adds rows in batches within one transaction.
func (s *Store) Insert(ctx context.Context, rows []domain.StoredChunk) error {
	if len(rows) == 0 {
		return nil
	}
	models := make([]chunkRow, len(rows))
	for i, r := range rows {
		m, err := toRow(r)
		if err != nil {
			return err
		}
		models[i] = m
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(models, DefaultBatchSize).Error; err != nil {
			return fmt.Errorf("inserting chunks: %w", err)
		}
		return nil
	})
}

// DeleteBySource removes every row stored under sourceKey.
func (s *Store) DeleteBySource(ctx context.Context, sourceKey string) (int, error) {
	res := s.db.WithContext(ctx).Where("source_key = ?", sourceKey).Delete(&chunkRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting chunks: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// CountBySource returns the number of rows stored under sourceKey.
func (s *Store) CountBySource(ctx context.Context, sourceKey string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&chunkRow{}).Where("source_key = ?", sourceKey).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return int(n), nil
}

// SearchSimilar orders rows by cosine distance (`<=>`) and keeps those at or
// above threshold similarity.
func (s *Store) SearchSimilar(
	ctx context.Context, embedding []float32, limit int, threshold float64,
) ([]domain.RetrievedChunk, error) {
	type scored struct {
		chunkRow
		Similarity float64
	}
	var results []scored

	query := pgvector.NewVector(embedding)
	q := s.db.WithContext(ctx).
		Table(chunkRow{}.TableName()).
		Select("*, 1 - (embedding <=> ?) AS similarity", query).
		Where("1 - (embedding <=> ?) >= ?", query, threshold).
		Order("similarity DESC, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(results))
	for _, r := range results {
		c, err := fromRow(r.chunkRow)
		if err != nil {
			return nil, err
		}
		c.Similarity = r.Similarity
		c.Embedding = nil
		out = append(out, c)
	}
	return out, nil
}

// SearchKeyword returns rows whose content contains keyword, case-insensitively.
func (s *Store) SearchKeyword(ctx context.Context, keyword string, limit int) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, nil
	}
	q := s.db.WithContext(ctx).
		Where("content ILIKE ?", "%"+escapeLike(keyword)+"%").
		Order("source_key, chunk_index")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return s.find(q, "keyword search")
}

// FetchConversation returns the interaction rows of one conversation.
func (s *Store) FetchConversation(ctx context.Context, sourceKey string, conversationID int) ([]domain.RetrievedChunk, error) {
	q := s.db.WithContext(ctx).
		Where("source_key = ? AND segment_type = ? AND conversation_id = ?",
			sourceKey, string(domain.SegmentInteraction), conversationID).
		Order("conversation_chunk_index, chunk_index")
	return s.find(q, "fetching conversation")
}

// FetchCommentaryForConversation returns the commentary rows linked to a conversation.
func (s *Store) FetchCommentaryForConversation(
	ctx context.Context, sourceKey string, conversationID int,
) ([]domain.RetrievedChunk, error) {
	q := s.db.WithContext(ctx).
		Where("source_key = ? AND segment_type = ? AND linked_conversation_id = ?",
			sourceKey, string(domain.SegmentCommentary), conversationID).
		Order("chunk_index")
	return s.find(q, "fetching commentary")
}

func (s *Store) find(q *gorm.DB, op string) ([]domain.RetrievedChunk, error) {
	var rows []chunkRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]domain.RetrievedChunk, 0, len(rows))
	for _, r := range rows {
		c, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func toRow(c domain.StoredChunk) (chunkRow, error) {
	md, err := json.Marshal(c.Metadata)
	if err != nil {
		return chunkRow{}, fmt.Errorf("marshalling metadata for %s: %w", c.ID, err)
	}
	row := chunkRow{
		ID:             c.ID,
		SourceKey:      c.SourceKey,
		Content:        c.Content,
		Embedding:      pgvector.NewVector(c.Embedding),
		Metadata:       string(md),
		SegmentType:    string(c.Metadata.SegmentType()),
		ConversationID: c.Metadata.ConversationID(),
		ChunkIndex:     c.Metadata.ChunkIndex,
	}
	if im, ok := c.Metadata.Interaction(); ok {
		row.ConversationChunkIndex = im.ConversationChunkIndex
	}
	if cm, ok := c.Metadata.Commentary(); ok && cm.LinkedConversationID != nil {
		linked := *cm.LinkedConversationID
		row.LinkedConversationID = &linked
	}
	return row, nil
}

func fromRow(r chunkRow) (domain.RetrievedChunk, error) {
	c := domain.RetrievedChunk{
		ID:        r.ID,
		SourceKey: r.SourceKey,
		Content:   r.Content,
		Embedding: r.Embedding.Slice(),
	}
	if err := json.Unmarshal([]byte(r.Metadata), &c.Metadata); err != nil {
		return c, fmt.Errorf("decoding metadata for %s: %w", r.ID, err)
	}
	return c, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
