package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// EnrichedSuffix is the file name suffix of enriched transcripts.
const EnrichedSuffix = ".enriched.json"

// Ensure TranscriptSource implements the interface.
var _ driven.TranscriptSource = (*TranscriptSource)(nil)

// TranscriptSource reads enriched transcripts laid out as
// <root>/<source>/<folder>/*.enriched.json.
type TranscriptSource struct {
	root string
}

// NewTranscriptSource creates a transcript source rooted at the enriched directory.
func NewTranscriptSource(root string) *TranscriptSource {
	return &TranscriptSource{root: root}
}

// Discover resolves each entry to its transcript file. Nil entries walks
// every source and folder under the root.
func (s *TranscriptSource) Discover(entries []domain.ManifestEntry) ([]driven.TranscriptFile, []domain.ManifestEntry, error) {
	if entries == nil {
		found, err := s.discoverAll()
		return found, nil, err
	}

	var found []driven.TranscriptFile
	var missing []domain.ManifestEntry
	for _, e := range entries {
		f, ok, err := s.locate(e)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			missing = append(missing, e)
			continue
		}
		found = append(found, f)
	}
	return found, missing, nil
}

func (s *TranscriptSource) discoverAll() ([]driven.TranscriptFile, error) {
	sources, err := subdirs(s.root)
	if err != nil {
		return nil, err
	}

	var found []driven.TranscriptFile
	for _, source := range sources {
		folders, err := subdirs(filepath.Join(s.root, source))
		if err != nil {
			return nil, err
		}
		for _, folder := range folders {
			videoID, _ := domain.VideoIDFromFolder(folder)
			f, ok, err := s.locate(domain.ManifestEntry{Source: source, Folder: folder, VideoID: videoID})
			if err != nil {
				return nil, err
			}
			if ok {
				found = append(found, f)
			}
		}
	}
	return found, nil
}

// locate finds the enriched file of one video folder.
func (s *TranscriptSource) locate(e domain.ManifestEntry) (driven.TranscriptFile, bool, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, e.Source, globEscape(e.Folder), "*"+EnrichedSuffix))
	if err != nil {
		return driven.TranscriptFile{}, false, fmt.Errorf("glob %s: %w", e.Folder, err)
	}
	if len(matches) == 0 {
		return driven.TranscriptFile{}, false, nil
	}
	sort.Strings(matches)
	if len(matches) > 1 {
		logger.WithFields(logger.Fields{"folder": e.Folder, "using": filepath.Base(matches[0])}).
			Warn("multiple enriched transcripts in folder")
	}

	info, err := os.Stat(matches[0])
	if err != nil {
		return driven.TranscriptFile{}, false, fmt.Errorf("stat transcript: %w", err)
	}
	return driven.TranscriptFile{Entry: e, Path: matches[0], ModTime: info.ModTime()}, true, nil
}

// ReadTranscript reads a transcript and adapts it to the canonical schema.
func (s *TranscriptSource) ReadTranscript(path string) ([]byte, *domain.Transcript, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: transcript %s", domain.ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("read transcript: %w", err)
	}

	tr, err := DecodeTranscript(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return raw, tr, nil
}

// subdirs lists the sorted directory names under dir. A missing dir is empty.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// globEscape quotes the glob metacharacters that folder names like
// "Title [videoId]" contain.
func globEscape(s string) string {
	var b []rune
	for _, r := range s {
		switch r {
		case '[', ']', '*', '?', '\\':
			b = append(b, '\\')
		}
		b = append(b, r)
	}
	return string(b)
}
