package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

// ChunksSuffix is the file name suffix of chunks files.
const ChunksSuffix = ".chunks.json"

// Ensure ChunkArtifactStore implements the interface.
var _ driven.ChunkArtifactStore = (*ChunkArtifactStore)(nil)

// ChunkArtifactStore keeps chunks files at <root>/<source>/<videoId>.chunks.json.
type ChunkArtifactStore struct {
	root string
}

// NewChunkArtifactStore creates a store rooted at the chunks directory.
func NewChunkArtifactStore(root string) *ChunkArtifactStore {
	return &ChunkArtifactStore{root: root}
}

// PathFor returns where a video's chunks file lives.
func (s *ChunkArtifactStore) PathFor(source, videoID string) string {
	return filepath.Join(s.root, source, videoID+ChunksSuffix)
}

// Stat returns the modification time of a video's chunks file.
func (s *ChunkArtifactStore) Stat(source, videoID string) (time.Time, bool) {
	info, err := os.Stat(s.PathFor(source, videoID))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// Write replaces a video's chunks file atomically.
func (s *ChunkArtifactStore) Write(source string, file *domain.ChunksFile) error {
	if file == nil || file.VideoID == "" {
		return fmt.Errorf("%w: chunks file without video id", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode chunks file: %w", err)
	}
	if err := writeFileAtomic(s.PathFor(source, file.VideoID), data, 0644); err != nil {
		return fmt.Errorf("write chunks file: %w", err)
	}
	return nil
}

// List returns the chunks files of the given sources, or of every source
// when sources is empty, sorted by source then video id.
func (s *ChunkArtifactStore) List(sources []string) ([]driven.ChunksFileInfo, error) {
	if len(sources) == 0 {
		var err error
		if sources, err = subdirs(s.root); err != nil {
			return nil, err
		}
	}

	var out []driven.ChunksFileInfo
	for _, source := range sources {
		entries, err := os.ReadDir(filepath.Join(s.root, source))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("list chunks for %s: %w", source, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ChunksSuffix) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
			}
			out = append(out, driven.ChunksFileInfo{
				Source:  source,
				VideoID: strings.TrimSuffix(e.Name(), ChunksSuffix),
				Path:    filepath.Join(s.root, source, e.Name()),
				ModTime: info.ModTime(),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].VideoID < out[j].VideoID
	})
	return out, nil
}

// Read decodes and validates a chunks file.
func (s *ChunkArtifactStore) Read(path string) ([]byte, *domain.ChunksFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: chunks file %s", domain.ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("read chunks file: %w", err)
	}

	var file domain.ChunksFile
	if err := decodeValid(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return raw, &file, nil
}

// decodeValid unmarshals JSON into v and checks its validation tags.
func decodeValid(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}
	return nil
}
