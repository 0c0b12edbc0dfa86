package domain

import "sort"

// ManifestEntry assigns one video folder to one source.
type ManifestEntry struct {
	Source  string
	Folder  string
	VideoID string
}

// Manifest is the parsed `source|folder` scope of a run.
type Manifest struct {
	// Name is the manifest file's base name; gate inputs must reference it.
	Name    string
	Entries []ManifestEntry
}

// Filter returns the entries of one source, or all entries when source is empty.
func (m *Manifest) Filter(source string) []ManifestEntry {
	if source == "" {
		return m.Entries
	}
	var out []ManifestEntry
	for _, e := range m.Entries {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out
}

// VideoIDs returns the sorted video ids of the filtered scope.
func (m *Manifest) VideoIDs(source string) []string {
	entries := m.Filter(source)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.VideoID)
	}
	sort.Strings(ids)
	return ids
}

// SourceOf returns the source a video belongs to.
func (m *Manifest) SourceOf(videoID string) (string, bool) {
	for _, e := range m.Entries {
		if e.VideoID == videoID {
			return e.Source, true
		}
	}
	return "", false
}
