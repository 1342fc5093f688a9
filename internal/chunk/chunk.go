// Package chunk splits extracted document text into bounded, overlapping
// pieces sized for embedding. Splitting follows paragraph boundaries so a
// chunk stays semantically coherent, and consecutive chunks share an overlap
// tail so context survives the cut.
package chunk

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Limits are the chunk size constraints in characters.
type Limits struct {
	// Target is the size chunks trend toward.
	Target int

	// Max is the hard upper bound for any chunk.
	Max int

	// Min is the lower bound for every chunk except a document's last.
	Min int

	// Overlap is how many trailing characters of a flushed chunk seed the
	// next one.
	Overlap int
}

// DefaultLimits are tuned for typical embedding context windows.
func DefaultLimits() Limits {
	return Limits{Target: 1000, Max: 1500, Min: 200, Overlap: 200}
}

// Chunk is one bounded slice of a source document. Values are never mutated
// after Split returns; changed content produces new chunks.
type Chunk struct {
	Content     string
	SourceTitle string
	Index       int
	Total       int
}

// Title returns the chunk's display title: the source title, suffixed with
// the part number when the document was split.
func (c Chunk) Title() string {
	if c.Total <= 1 {
		return c.SourceTitle
	}
	return fmt.Sprintf("%s (Part %d of %d)", c.SourceTitle, c.Index+1, c.Total)
}

// Splitter chunks documents under a fixed set of Limits.
type Splitter struct {
	limits Limits
	logger *slog.Logger
}

// NewSplitter creates a Splitter. Non-positive limit fields take the
// defaults; a nil logger falls back to slog.Default().
func NewSplitter(limits Limits, logger *slog.Logger) *Splitter {
	def := DefaultLimits()
	if limits.Target <= 0 {
		limits.Target = def.Target
	}
	if limits.Max <= 0 {
		limits.Max = def.Max
	}
	if limits.Min <= 0 {
		limits.Min = def.Min
	}
	if limits.Overlap <= 0 {
		limits.Overlap = def.Overlap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{limits: limits, logger: logger}
}

var paragraphSep = regexp.MustCompile(`\n\n+`)

// Split divides text into chunks. Text at or under Max comes back as a
// single chunk. Every chunk's Total is the true emitted count and Index
// values are dense from zero.
func (s *Splitter) Split(text, title string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if len(text) <= s.limits.Max {
		return []Chunk{{Content: text, SourceTitle: title, Index: 0, Total: 1}}
	}

	var (
		chunks []Chunk
		buf    strings.Builder
		// fresh counts paragraphs appended since the last flush. A buffer
		// holding only the overlap seed is never emitted as a chunk.
		fresh int
	)

	// flush emits the buffer as a chunk and reseeds it with the overlap
	// tail of the flushed content.
	flush := func() {
		content := strings.TrimSpace(buf.String())
		if content == "" {
			return
		}
		chunks = append(chunks, Chunk{Content: content, SourceTitle: title})

		buf.Reset()
		fresh = 0
		if tail := s.overlapTail(content); tail != "" {
			buf.WriteString(tail)
			buf.WriteString("\n\n")
		}
	}

	for _, paragraph := range paragraphSep.Split(text, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		for _, piece := range s.splitOversize(paragraph) {
			// Flush before the append would blow past Max, provided the
			// buffer already holds enough to stand alone.
			if fresh > 0 && buf.Len()+len(piece) > s.limits.Max && buf.Len() > s.limits.Min {
				flush()
			}

			buf.WriteString(piece)
			buf.WriteString("\n\n")
			fresh++

			// Flush at Target so chunks trend toward it instead of always
			// growing to Max.
			if buf.Len() >= s.limits.Target {
				flush()
			}
		}
	}

	if fresh > 0 && strings.TrimSpace(buf.String()) != "" {
		chunks = append(chunks, Chunk{Content: strings.TrimSpace(buf.String()), SourceTitle: title})
	}

	// Rewrite index and total from the actual emitted count.
	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}

	s.logger.Debug("document chunked", "title", title, "chunks", len(chunks), "length", len(text))
	return chunks
}

// splitOversize breaks a paragraph longer than Max into sentence-boundary
// pieces small enough that a piece plus the overlap seed still fits under
// Max. A single sentence exceeding the budget is hard-split. Paragraphs at
// or under Max come back unchanged.
func (s *Splitter) splitOversize(paragraph string) []string {
	if len(paragraph) <= s.limits.Max {
		return []string{paragraph}
	}

	budget := s.limits.Max - s.limits.Overlap - 4
	if budget <= 0 {
		budget = s.limits.Max
	}

	var (
		pieces []string
		buf    strings.Builder
	)
	flush := func() {
		if piece := strings.TrimSpace(buf.String()); piece != "" {
			pieces = append(pieces, piece)
		}
		buf.Reset()
	}

	for _, sentence := range splitSentences(paragraph) {
		for len(sentence) > budget {
			flush()
			pieces = append(pieces, strings.TrimSpace(sentence[:budget]))
			sentence = strings.TrimSpace(sentence[budget:])
		}
		if buf.Len()+len(sentence)+1 > budget {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(sentence)
	}
	flush()
	return pieces
}

// splitSentences cuts text after sentence-ending punctuation followed by a
// space. The terminator stays with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		if (text[i] == '.' || text[i] == '!' || text[i] == '?') && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(text[start:i+1]))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// overlapTail returns the trailing Overlap characters of content, trimmed
// forward to the nearest sentence boundary inside the tail when one exists.
func (s *Splitter) overlapTail(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= s.limits.Overlap {
		return content
	}

	tail := content[len(content)-s.limits.Overlap:]
	if cut := strings.Index(tail, ". "); cut > 0 {
		return tail[cut+2:]
	}
	return tail
}
