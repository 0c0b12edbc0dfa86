package chunker

import (
	"strings"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// phaseSegment groups turns by phase and packs "Speaker: text" lines up to the
// chunk size. A single line is never split. Masked turns add no text but stay
// attached to the chunk they fall in.
func (p *Processor) phaseSegment(segs []domain.Segment, quality *domain.QualityIndex) []piece {
	var (
		out     []piece
		cur     piece
		builder strings.Builder
		started bool
	)

	flush := func() {
		if builder.Len() > 0 {
			cur.text = builder.String()
			out = append(out, cur)
		}
		cur = piece{phase: cur.phase}
		builder.Reset()
	}

	for _, s := range segs {
		phase := strings.TrimSpace(s.Phase)
		if phase == "" {
			phase = cur.phase
		}
		if started && phase != cur.phase {
			flush()
		}
		cur.phase = phase
		started = true

		if quality.IsMasked(s) {
			cur.segs = append(cur.segs, s)
			cur.masked = append(cur.masked, s.ID)
			continue
		}

		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		line := s.SpeakerLabel() + ": " + text

		if builder.Len() > 0 && builder.Len()+1+len(line) > p.chunkSize {
			flush()
		}
		if builder.Len() > 0 {
			builder.WriteByte('\n')
		}
		builder.WriteString(line)
		cur.segs = append(cur.segs, s)
	}
	flush()

	return out
}
