package pgvector

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/adapters/driven/storage/storetest"
	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

func TestRowConversion(t *testing.T) {
	in := storetest.Commentary(uuid.NewString(), "coachA/v1", 3, 7, 2, "notice the hook", []float32{0.5, 0.25})

	row, err := toRow(in)
	require.NoError(t, err)
	assert.Equal(t, string(domain.SegmentCommentary), row.SegmentType)
	assert.Equal(t, 7, row.ChunkIndex)
	require.NotNil(t, row.LinkedConversationID)
	assert.Equal(t, 2, *row.LinkedConversationID)

	out, err := fromRow(row)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Content, out.Content)
	assert.Equal(t, in.Embedding, out.Embedding)
	assert.Equal(t, in.Metadata, out.Metadata)
}

func TestRowConversion_Interaction(t *testing.T) {
	row, err := toRow(storetest.Interaction(uuid.NewString(), "coachA/v1", 4, 2, 9, "hi", []float32{1}))
	require.NoError(t, err)

	assert.Equal(t, 4, row.ConversationID)
	assert.Equal(t, 2, row.ConversationChunkIndex)
	assert.Nil(t, row.LinkedConversationID)
}

func TestNewStore_RequiresDSN(t *testing.T) {
	_, err := NewStore("")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// TestStore runs against a live database when COACHKB_TEST_PG_DSN is set.
func TestStore(t *testing.T) {
	dsn := os.Getenv("COACHKB_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("COACHKB_TEST_PG_DSN not set")
	}
	store, err := NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	storetest.Run(t, func(t *testing.T) driven.ChunkStore {
		require.NoError(t, store.db.Exec("TRUNCATE coach_chunks").Error)
		return store
	})
}
