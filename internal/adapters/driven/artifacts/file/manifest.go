package file

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// LoadManifest parses a `source|folder` manifest file.
func (s *TranscriptSource) LoadManifest(path string) (*domain.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: manifest %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	return ParseManifest(filepath.Base(path), f)
}

// ParseManifest reads `source|folder` lines. Blank lines and lines starting
// with # are ignored. The video id is the trailing [id] of the folder name.
// Listing the same video under two sources is an error; repeating a line is not.
func ParseManifest(name string, r io.Reader) (*domain.Manifest, error) {
	m := &domain.Manifest{Name: name}
	owners := make(map[string]string)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		source, folder, ok := strings.Cut(text, "|")
		source, folder = strings.TrimSpace(source), strings.TrimSpace(folder)
		if !ok || source == "" || folder == "" {
			return nil, fmt.Errorf("%w: %s line %d: expected source|folder", domain.ErrMalformedInput, name, line)
		}
		videoID, ok := domain.VideoIDFromFolder(folder)
		if !ok {
			return nil, fmt.Errorf("%w: %s line %d: folder %q has no [videoId] suffix", domain.ErrMalformedInput, name, line, folder)
		}

		if owner, seen := owners[videoID]; seen {
			if owner != source {
				return nil, fmt.Errorf("%w: %s line %d: video %s listed under %s and %s",
					domain.ErrMalformedInput, name, line, videoID, owner, source)
			}
			continue
		}
		owners[videoID] = source
		m.Entries = append(m.Entries, domain.ManifestEntry{Source: source, Folder: folder, VideoID: videoID})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", name, err)
	}
	return m, nil
}
