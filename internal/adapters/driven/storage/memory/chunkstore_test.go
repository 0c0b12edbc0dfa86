package memory

import (
	"testing"

	"github.com/custodia-labs/coachkb/internal/adapters/driven/storage/storetest"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

func TestChunkStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) driven.ChunkStore { return NewChunkStore() })
}
