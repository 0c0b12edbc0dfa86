package chunker

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// span maps a character range of a window back to its segment.
type span struct {
	start, end int
	seg        domain.Segment
}

// windowSegment packs lines greedily into windows of at most chunkSize
// characters, carrying the trailing overlap characters of each emitted window
// into the next, shortened when the next line would not fit beside it. Windows
// that would hold only carried text are not emitted.
func (p *Processor) windowSegment(segs []domain.Segment, quality *domain.QualityIndex) []piece {
	var (
		out     []piece
		text    strings.Builder
		spans   []span
		masked  []domain.Segment
		carried int
	)

	// keepFrom drops the text before cut and re-bases the spans onto the rest.
	keepFrom := func(cut int) {
		body := text.String()
		var next []span
		for _, sp := range spans {
			if sp.end > cut {
				next = append(next, span{start: max(sp.start, cut) - cut, end: sp.end - cut, seg: sp.seg})
			}
		}
		tail := body[cut:]
		text.Reset()
		text.WriteString(tail)
		spans = next
		carried = len(tail)
	}

	emit := func() {
		if text.Len() <= carried {
			return
		}
		out = append(out, windowPiece(text.String(), spans, masked))
		masked = nil
		keepFrom(carryStart(text.String(), p.overlap))
	}

	for _, s := range segs {
		if quality.IsMasked(s) {
			masked = append(masked, s)
			continue
		}
		line := strings.TrimSpace(s.Text)
		if len(line) < minLineLength {
			continue
		}

		if text.Len() > carried && text.Len()+1+len(line) > p.chunkSize {
			emit()
		}
		if carried > 0 && carried+1+len(line) > p.chunkSize {
			// Shrink the carried overlap so the window stays within chunkSize.
			keepFrom(carryStart(text.String(), max(0, p.chunkSize-1-len(line))))
		}
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		start := text.Len()
		text.WriteString(line)
		spans = append(spans, span{start: start, end: text.Len(), seg: s})
	}
	emit()

	return out
}

// carryStart returns the offset where the trailing overlap begins, moved
// forward to a rune boundary.
func carryStart(body string, overlap int) int {
	if overlap <= 0 {
		return len(body)
	}
	if overlap >= len(body) {
		return 0
	}
	cut := len(body) - overlap
	for cut < len(body) && !utf8.RuneStart(body[cut]) {
		cut++
	}
	return cut
}

func windowPiece(body string, spans []span, masked []domain.Segment) piece {
	pc := piece{text: body}
	seen := make(map[int]bool, len(spans)+len(masked))
	for _, sp := range spans {
		if !seen[sp.seg.ID] {
			seen[sp.seg.ID] = true
			pc.segs = append(pc.segs, sp.seg)
		}
	}
	for _, s := range masked {
		if !seen[s.ID] {
			seen[s.ID] = true
			pc.segs = append(pc.segs, s)
			pc.masked = append(pc.masked, s.ID)
		}
	}
	sort.Slice(pc.segs, func(i, j int) bool { return pc.segs[i].ID < pc.segs[j].ID })
	return pc
}
