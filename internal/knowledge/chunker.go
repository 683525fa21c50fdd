package knowledge

import (
	"regexp"
	"strings"
)

var (
	paragraphSplit = regexp.MustCompile(`\n{2,}`)
	sentenceSplit  = regexp.MustCompile(`(?U)[^.!?]+[.!?]+['"”’)]*\s*`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// Span is one chunk of text produced by ChunkText. Overlap counts the
// leading characters carried from the previous span.
type Span struct {
	Text    string
	Overlap int
}

// ChunkText splits document text into bounded, order-preserving spans.
//
// Splitting prefers paragraph boundaries, then sentence boundaries; a single
// sentence longer than maxChars is hard-sliced. Adjacent spans share up to
// overlapChars of trailing/leading context so meaning is not lost at a cut.
// No span is empty and no span exceeds maxChars + overlapChars. Text shorter
// than maxChars yields exactly one span.
func ChunkText(text string, maxChars, overlapChars int) []Span {
	if maxChars <= 0 {
		maxChars = 1200
	}
	if overlapChars < 0 {
		overlapChars = 0
	}

	units := splitUnits(text, maxChars)
	if len(units) == 0 {
		return nil
	}

	// Greedily pack units into cores no longer than maxChars.
	var cores []string
	current := ""
	for _, unit := range units {
		switch {
		case current == "":
			current = unit
		case len(current)+1+len(unit) <= maxChars:
			current += " " + unit
		default:
			cores = append(cores, current)
			current = unit
		}
	}
	cores = append(cores, current)

	spans := make([]Span, 0, len(cores))
	for i, core := range cores {
		if i == 0 || overlapChars == 0 {
			spans = append(spans, Span{Text: core})
			continue
		}
		prefix := tailWithin(cores[i-1], overlapChars-1)
		if prefix == "" {
			spans = append(spans, Span{Text: core})
			continue
		}
		spans = append(spans, Span{
			Text:    prefix + " " + core,
			Overlap: len(prefix) + 1,
		})
	}
	return spans
}

// splitUnits normalizes whitespace and returns sentence-or-smaller units,
// each no longer than maxChars.
func splitUnits(text string, maxChars int) []string {
	var units []string
	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(whitespaceRun.ReplaceAllString(para, " "))
		if para == "" {
			continue
		}
		if len(para) <= maxChars {
			units = append(units, para)
			continue
		}
		sentences := sentenceSplit.FindAllString(para, -1)
		if rest := strings.TrimSpace(sentenceSplit.ReplaceAllString(para, "")); rest != "" {
			sentences = append(sentences, rest)
		}
		if len(sentences) == 0 {
			sentences = []string{para}
		}
		for _, s := range sentences {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			units = append(units, hardSlice(s, maxChars)...)
		}
	}
	return units
}

// hardSlice cuts s into rune-safe pieces of at most maxChars bytes each.
// Used only when a single sentence exceeds the chunk budget.
func hardSlice(s string, maxChars int) []string {
	if len(s) <= maxChars {
		return []string{s}
	}
	var parts []string
	runes := []rune(s)
	start := 0
	for start < len(runes) {
		end := start
		size := 0
		for end < len(runes) {
			r := len(string(runes[end]))
			if size+r > maxChars {
				break
			}
			size += r
			end++
		}
		if end == start {
			end = start + 1 // single rune wider than the budget; keep it whole
		}
		parts = append(parts, string(runes[start:end]))
		start = end
	}
	return parts
}

// tailWithin returns the longest word-aligned suffix of s no longer than
// limit bytes.
func tailWithin(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	cut := s[len(s)-limit:]
	// Drop the leading partial word so the overlap starts cleanly.
	if idx := strings.IndexByte(cut, ' '); idx >= 0 {
		return strings.TrimSpace(cut[idx+1:])
	}
	return ""
}

// ChunksForDocument applies ChunkText to a document and materializes Chunk
// records with stable IDs and contiguous sequence indices from 0.
func ChunksForDocument(doc Document, maxChars, overlapChars int) []Chunk {
	spans := ChunkText(doc.Text, maxChars, overlapChars)
	chunks := make([]Chunk, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, Chunk{
			ID:         ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Seq:        i,
			Text:       span.Text,
			Overlap:    span.Overlap,
		})
	}
	return chunks
}
