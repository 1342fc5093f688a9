package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskb/campuskb/internal/log"
)

const sentence = "The quick brown fox jumps over the lazy dog. "

// paragraph builds deterministic prose of roughly n characters.
func paragraph(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(sentence)
	}
	return strings.TrimSpace(b.String())
}

func newSplitter(t *testing.T) *Splitter {
	t.Helper()
	return NewSplitter(DefaultLimits(), log.NewNop())
}

func TestSplitSmallTextSingleChunk(t *testing.T) {
	s := newSplitter(t)
	text := "  " + paragraph(800) + "  "

	chunks := s.Split(text, "Housing")

	require.Len(t, chunks, 1)
	assert.Equal(t, strings.TrimSpace(text), chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].Total)
	assert.Equal(t, "Housing", chunks[0].Title())
}

func TestSplitEmptyText(t *testing.T) {
	s := newSplitter(t)
	assert.Nil(t, s.Split("", "x"))
	assert.Nil(t, s.Split("   \n\n  ", "x"))
}

func TestSplitExactlyMaxIsSingleChunk(t *testing.T) {
	s := NewSplitter(Limits{Target: 1000, Max: 1500, Min: 200, Overlap: 200}, log.NewNop())
	text := strings.Repeat("a", 1500)

	chunks := s.Split(text, "x")
	require.Len(t, chunks, 1)
}

func TestSplitTwoChunksWithOverlap(t *testing.T) {
	s := newSplitter(t)

	// ~2600 characters across three paragraphs: one large paragraph that
	// triggers a flush, then two small ones that accumulate into the rest.
	p1 := paragraph(1390)
	p2 := paragraph(580)
	p3 := paragraph(580)
	text := p1 + "\n\n" + p2 + "\n\n" + p3

	chunks := s.Split(text, "Catalog")

	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 1500)
		assert.Equal(t, 2, c.Total)
		assert.Equal(t, "Catalog", c.SourceTitle)
	}
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, "Catalog (Part 1 of 2)", chunks[0].Title())
	assert.Equal(t, "Catalog (Part 2 of 2)", chunks[1].Title())

	// The second chunk opens with the overlap tail: a suffix of the first
	// chunk's content.
	head, _, found := strings.Cut(chunks[1].Content, "\n\n")
	require.True(t, found)
	assert.NotEmpty(t, head)
	assert.LessOrEqual(t, len(head), 200)
	assert.True(t, strings.HasSuffix(chunks[0].Content, head),
		"second chunk must start with the first chunk's trailing text")
}

func TestSplitIndexesDenseAndTotalsTrue(t *testing.T) {
	s := newSplitter(t)

	var parts []string
	for i := 0; i < 12; i++ {
		parts = append(parts, paragraph(700))
	}
	chunks := s.Split(strings.Join(parts, "\n\n"), "Long Doc")

	require.Greater(t, len(chunks), 2)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, len(chunks), c.Total)
	}
}

func TestSplitSizeBounds(t *testing.T) {
	s := newSplitter(t)

	var parts []string
	for i := 0; i < 10; i++ {
		parts = append(parts, paragraph(600))
	}
	chunks := s.Split(strings.Join(parts, "\n\n"), "Bounds")

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, len(c.Content), 200, "chunk %d below min", i)
			assert.LessOrEqual(t, len(c.Content), 1500, "chunk %d above max", i)
		}
	}
}

func TestSplitNeverEmitsOverlapOnlyChunk(t *testing.T) {
	s := newSplitter(t)

	// Sized so the final buffer holds only the overlap seed after the last
	// flush; no trailing chunk may be emitted for it.
	text := paragraph(1400) + "\n\n" + paragraph(580) + "\n\n" + paragraph(580)
	chunks := s.Split(text, "x")

	for i, c := range chunks {
		assert.Greater(t, len(strings.Split(c.Content, "\n\n")), 0)
		if i > 0 {
			// Each chunk after the first holds more than its seed.
			assert.Greater(t, len(c.Content), 200)
		}
	}
}

func TestSplitOversizeParagraphStaysBounded(t *testing.T) {
	s := newSplitter(t)

	// One ~3000-character paragraph with no blank lines, then two normal
	// ones. Every emitted chunk must respect Max.
	text := paragraph(2999) + "\n\n" + paragraph(400) + "\n\n" + paragraph(400)

	chunks := s.Split(text, "Policy Manual")

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 1500, "chunk %d above max", i)
	}
	// Oversize paragraphs split at sentence boundaries, so the first chunk
	// ends on a complete sentence.
	assert.True(t, strings.HasSuffix(chunks[0].Content, "dog."))
}

func TestSplitOversizeUnbrokenRun(t *testing.T) {
	s := newSplitter(t)

	// 3000 characters with no sentence boundary at all forces the hard
	// split.
	text := strings.Repeat("loremipsum", 300) + "\n\n" + paragraph(300)

	chunks := s.Split(text, "x")

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 1500, "chunk %d above max", i)
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First point. Second point! Third question? Trailing fragment")
	assert.Equal(t, []string{"First point.", "Second point!", "Third question?", "Trailing fragment"}, got)

	assert.Equal(t, []string{"No terminator here"}, splitSentences("No terminator here"))
}

func TestOverlapTailSentenceBoundary(t *testing.T) {
	s := newSplitter(t)

	content := paragraph(1000)
	tail := s.overlapTail(content)

	assert.LessOrEqual(t, len(tail), 200)
	assert.True(t, strings.HasSuffix(content, tail))
	// The boundary cut drops the partial sentence at the front of the tail.
	assert.True(t, strings.HasPrefix(tail, "The quick") || len(tail) == 200)
}

func TestOverlapTailShortContent(t *testing.T) {
	s := newSplitter(t)
	assert.Equal(t, "short text", s.overlapTail("short text"))
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(Limits{}, nil)
	assert.Equal(t, DefaultLimits(), s.limits)
}

func TestChunkTitleSingle(t *testing.T) {
	c := Chunk{Content: "x", SourceTitle: "Registrar", Index: 0, Total: 1}
	assert.Equal(t, "Registrar", c.Title())
}
