package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// fingerprintLength is the number of hex characters kept from the digest.
const fingerprintLength = 16

type canonicalEnrichment struct {
	ConversationID  int      `json:"conversation_id"`
	StartSegment    int      `json:"start_segment"`
	EndSegment      int      `json:"end_segment"`
	Description     string   `json:"description"`
	Techniques      []string `json:"techniques"`
	Topics          []string `json:"topics"`
	PhaseConfidence [][2]any `json:"phase_confidence"`
	Turns           []string `json:"turns"`
}

// Fingerprint is a stable digest of one conversation's enrichment and turns.
// Judgements recorded against a different fingerprint are stale. Returns ""
// when the transcript has no approach enrichment for the conversation.
func Fingerprint(tr *domain.Transcript, conversationID int) string {
	if tr == nil {
		return ""
	}
	for _, e := range tr.Enrichments {
		if e.Type != domain.EnrichmentApproach || e.ConversationID != conversationID {
			continue
		}

		c := canonicalEnrichment{
			ConversationID: e.ConversationID,
			StartSegment:   e.StartSegment,
			EndSegment:     e.EndSegment,
			Description:    strings.TrimSpace(e.Description),
			Techniques:     sortedCopy(e.Techniques),
			Topics:         sortedCopy(e.Topics),
		}
		phases := make([]string, 0, len(e.PhaseConfidence))
		for p := range e.PhaseConfidence {
			phases = append(phases, p)
		}
		sort.Strings(phases)
		for _, p := range phases {
			c.PhaseConfidence = append(c.PhaseConfidence, [2]any{p, e.PhaseConfidence[p]})
		}
		for _, s := range tr.SegmentsIn(e) {
			if s.ConversationID == conversationID {
				c.Turns = append(c.Turns, strings.TrimSpace(s.Text))
			}
		}

		// Marshal cannot fail for these field types.
		data, _ := json.Marshal(c)
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])[:fingerprintLength]
	}
	return ""
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
