package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

var (
	inputTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	writeTime = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
)

// mockTranscriptSource serves transcripts from memory.
type mockTranscriptSource struct {
	manifest *domain.Manifest
	files    []driven.TranscriptFile
	docs     map[string]*domain.Transcript
	raw      map[string][]byte
}

func newMockTranscriptSource() *mockTranscriptSource {
	return &mockTranscriptSource{docs: make(map[string]*domain.Transcript), raw: make(map[string][]byte)}
}

func (m *mockTranscriptSource) add(source string, tr *domain.Transcript, raw string) {
	folder := fmt.Sprintf("%s [%s]", tr.Title, tr.VideoID)
	path := source + "/" + folder + "/video.enriched.json"
	videoID, _ := domain.VideoIDFromFolder(folder)
	m.files = append(m.files, driven.TranscriptFile{
		Entry:   domain.ManifestEntry{Source: source, Folder: folder, VideoID: videoID},
		Path:    path,
		ModTime: inputTime,
	})
	m.docs[path] = tr
	m.raw[path] = []byte(raw)
}

func (m *mockTranscriptSource) LoadManifest(path string) (*domain.Manifest, error) {
	if m.manifest == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	return m.manifest, nil
}

func (m *mockTranscriptSource) Discover(entries []domain.ManifestEntry) ([]driven.TranscriptFile, []domain.ManifestEntry, error) {
	if entries == nil {
		return m.files, nil, nil
	}
	var found []driven.TranscriptFile
	var missing []domain.ManifestEntry
	for _, e := range entries {
		ok := false
		for _, f := range m.files {
			if f.Entry.Source == e.Source && f.Entry.VideoID == e.VideoID {
				found = append(found, f)
				ok = true
			}
		}
		if !ok {
			missing = append(missing, e)
		}
	}
	return found, missing, nil
}

func (m *mockTranscriptSource) ReadTranscript(path string) ([]byte, *domain.Transcript, error) {
	tr, ok := m.docs[path]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrMalformedInput, path)
	}
	return m.raw[path], tr, nil
}

// mockArtifacts keeps chunks files in memory.
type mockArtifacts struct {
	files  map[string]*domain.ChunksFile
	raw    map[string][]byte
	mod    map[string]time.Time
	writes int
}

func newMockArtifacts() *mockArtifacts {
	return &mockArtifacts{
		files: make(map[string]*domain.ChunksFile),
		raw:   make(map[string][]byte),
		mod:   make(map[string]time.Time),
	}
}

func (m *mockArtifacts) PathFor(source, videoID string) string {
	return source + "/" + videoID + ".chunks.json"
}

func (m *mockArtifacts) Stat(source, videoID string) (time.Time, bool) {
	t, ok := m.mod[m.PathFor(source, videoID)]
	return t, ok
}

func (m *mockArtifacts) Write(source string, file *domain.ChunksFile) error {
	raw, err := json.Marshal(file)
	if err != nil {
		return err
	}
	path := m.PathFor(source, file.VideoID)
	m.files[path] = file
	m.raw[path] = raw
	m.mod[path] = writeTime
	m.writes++
	return nil
}

func (m *mockArtifacts) List(sources []string) ([]driven.ChunksFileInfo, error) {
	var out []driven.ChunksFileInfo
	for path := range m.files {
		source, name, _ := strings.Cut(path, "/")
		if len(sources) > 0 && !containsString(sources, source) {
			continue
		}
		out = append(out, driven.ChunksFileInfo{
			Source:  source,
			VideoID: strings.TrimSuffix(name, ".chunks.json"),
			Path:    path,
			ModTime: m.mod[path],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *mockArtifacts) Read(path string) ([]byte, *domain.ChunksFile, error) {
	f, ok := m.files[path]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrMalformedInput, path)
	}
	return m.raw[path], f, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// mockEmbedder returns deterministic vectors derived from text length.
type mockEmbedder struct {
	model       string
	err         error
	modelErr    error
	calls       int
	vectorsFunc func(text string) []float32
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{model: "test-embed"}
}

func (m *mockEmbedder) vector(text string) []float32 {
	if m.vectorsFunc != nil {
		return m.vectorsFunc(text)
	}
	return []float32{float32(len(text)%7) + 1, 1, 0.5}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return 3 }
func (m *mockEmbedder) ModelName() string { return m.model }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) ModelAvailable(context.Context) error { return m.modelErr }
func (m *mockEmbedder) Close() error { return nil }

// mockChunkStore is a minimal row store keyed by stored sourceKey.
type mockChunkStore struct {
	mu         sync.Mutex
	rows       []domain.StoredChunk
	similar    []domain.RetrievedChunk
	keyword    []domain.RetrievedChunk
	convs      map[string][]domain.RetrievedChunk
	comms      map[string][]domain.RetrievedChunk
	fetchErr   error
	keywordErr error
	fetches    int
	keywordQs  []string
}

func newMockChunkStore() *mockChunkStore {
	return &mockChunkStore{
		convs: make(map[string][]domain.RetrievedChunk),
		comms: make(map[string][]domain.RetrievedChunk),
	}
}

func (m *mockChunkStore) Insert(_ context.Context, rows []domain.StoredChunk) error {
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *mockChunkStore) DeleteBySource(_ context.Context, sourceKey string) (int, error) {
	kept := m.rows[:0]
	n := 0
	for _, r := range m.rows {
		if r.SourceKey == sourceKey {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return n, nil
}

func (m *mockChunkStore) CountBySource(_ context.Context, sourceKey string) (int, error) {
	n := 0
	for _, r := range m.rows {
		if r.SourceKey == sourceKey {
			n++
		}
	}
	return n, nil
}

func (m *mockChunkStore) SearchSimilar(context.Context, []float32, int, float64) ([]domain.RetrievedChunk, error) {
	return m.similar, nil
}

func (m *mockChunkStore) SearchKeyword(_ context.Context, keyword string, _ int) ([]domain.RetrievedChunk, error) {
	m.keywordQs = append(m.keywordQs, keyword)
	if m.keywordErr != nil {
		return nil, m.keywordErr
	}
	return m.keyword, nil
}

func convKey(sourceKey string, conv int) string {
	return fmt.Sprintf("%s#%d", sourceKey, conv)
}

func (m *mockChunkStore) FetchConversation(_ context.Context, sourceKey string, conv int) ([]domain.RetrievedChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.convs[convKey(sourceKey, conv)], nil
}

func (m *mockChunkStore) FetchCommentaryForConversation(_ context.Context, sourceKey string, conv int) ([]domain.RetrievedChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.comms[convKey(sourceKey, conv)], nil
}

func (m *mockChunkStore) Close() error { return nil }

// mockGateInputs serves preloaded gate documents.
type mockGateInputs struct {
	taxonomy   *domain.TaxonomyReport
	readiness  *domain.ReadinessSummary
	judgements *domain.JudgementSet
}

func (m *mockGateInputs) LoadTaxonomyReport(string) (*domain.TaxonomyReport, error) {
	if m.taxonomy == nil {
		return nil, domain.ErrNotFound
	}
	return m.taxonomy, nil
}

func (m *mockGateInputs) LoadReadinessSummary(string) (*domain.ReadinessSummary, error) {
	if m.readiness == nil {
		return nil, domain.ErrNotFound
	}
	return m.readiness, nil
}

func (m *mockGateInputs) LoadJudgements(string) (*domain.JudgementSet, error) {
	if m.judgements == nil {
		return nil, domain.ErrNotFound
	}
	return m.judgements, nil
}

// infieldTranscript is one conversation framed by commentary.
func infieldTranscript(channel, videoID string) *domain.Transcript {
	segs := []domain.Segment{
		{ID: 1, Text: "today we are in the city centre for some daytime approaches", SpeakerRole: "coach"},
		{ID: 2, ConversationID: 1, Phase: "open", Text: "hey, I just had to say hello", SpeakerRole: "coach"},
		{ID: 3, ConversationID: 1, Phase: "open", Text: "oh hi, thank you", SpeakerRole: "target"},
		{ID: 4, ConversationID: 1, Phase: "hook", Text: "you look like you are studying medicine", SpeakerRole: "coach"},
		{ID: 5, ConversationID: 1, Phase: "hook", Text: "I am, second year of medical school", SpeakerRole: "target"},
		{ID: 6, Text: "notice how the hook came from something I observed", SpeakerRole: "coach"},
	}
	return &domain.Transcript{
		VideoID:   videoID,
		Channel:   channel,
		Title:     "Daytime",
		VideoType: domain.VideoTypeInfield,
		Segments:  segs,
		Enrichments: []domain.Enrichment{
			{Type: domain.EnrichmentCommentary, BlockID: 1, StartSegment: 1, EndSegment: 1},
			{Type: domain.EnrichmentApproach, ConversationID: 1, StartSegment: 2, EndSegment: 5,
				Description: "Direct opener into an observational hook.", Techniques: []string{"direct opener"}},
			{Type: domain.EnrichmentCommentary, BlockID: 2, StartSegment: 6, EndSegment: 6},
		},
	}
}
