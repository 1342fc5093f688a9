package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"github.com/campuskb/campuskb/internal/confidence"
	"github.com/campuskb/campuskb/internal/knowledge"
	"github.com/campuskb/campuskb/internal/prompt"
	"github.com/campuskb/campuskb/internal/retrieval"
)

// MaxContextLength bounds the rendered context block.
const MaxContextLength = 8000

// CompletionFunc produces an answer from a rendered prompt and the user
// question. The model behind it is external; a nil CompletionFunc makes the
// service return the retrieved context without generation.
type CompletionFunc func(ctx context.Context, systemPrompt, question string) (string, error)

// Answer is the scored result of one query.
type Answer struct {
	Response     string             `json:"response"`
	TopDocuments []retrieval.Scored `json:"topDocuments"`
	Confidence   float64            `json:"confidence"`
	Level        confidence.Level   `json:"confidenceLevel"`
	NeedsHuman   bool               `json:"needsHumanAssistance"`
	Sources      []string           `json:"sources"`
	Category     string             `json:"category"`
	Duration     time.Duration      `json:"-"`
}

// MarshalJSON reports the duration as whole milliseconds under durationMs;
// a raw time.Duration would serialize as nanoseconds.
func (a Answer) MarshalJSON() ([]byte, error) {
	type answerJSON Answer
	return json.Marshal(struct {
		answerJSON
		DurationMS int64 `json:"durationMs"`
	}{answerJSON(a), a.Duration.Milliseconds()})
}

// Service runs the query path: retrieve, render, complete, score.
type Service struct {
	retriever *retrieval.Retriever
	prompts   prompt.Snapshot
	complete  CompletionFunc
	topK      int
	logger    *slog.Logger
}

// NewService creates a query Service. complete may be nil; topK defaults to
// the retriever's default when non-positive. A nil logger falls back to
// slog.Default().
func NewService(retriever *retrieval.Retriever, prompts prompt.Snapshot, complete CompletionFunc, topK int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		retriever: retriever,
		prompts:   prompts,
		complete:  complete,
		topK:      topK,
		logger:    logger,
	}
}

// Query answers one question. category may be nil; the service then detects
// one from the question's keywords. Completion failure degrades to a
// low-confidence handoff answer, never an error: availability over polish.
func (s *Service) Query(ctx context.Context, question string, category *knowledge.Category) Answer {
	start := time.Now()

	cat := knowledge.CategoryGeneral
	if category != nil {
		cat = *category
	} else {
		cat = prompt.DetectCategory(question)
	}

	docs := s.retriever.Retrieve(ctx, question, s.topK)

	contents := make([]string, 0, len(docs))
	sources := make([]string, 0, len(docs))
	for _, d := range docs {
		contents = append(contents, d.Content)
		if src := d.Metadata["source"]; src != "" && !slices.Contains(sources, src) {
			sources = append(sources, src)
		}
	}

	var rendered string
	if len(docs) == 0 {
		rendered = s.prompts.RenderFallback(question)
	} else {
		contextBlock := prompt.TruncateContext(prompt.BuildContext(contents), MaxContextLength)
		rendered = s.prompts.Render(cat, contextBlock, question)
	}

	response, failed := s.generate(ctx, rendered, question)

	assessment := confidence.Score(response, len(docs), &cat)
	if failed {
		assessment = confidence.Assessment{Confidence: 0, NeedsHuman: true}
	}

	answer := Answer{
		Response:     response,
		TopDocuments: docs,
		Confidence:   assessment.Confidence,
		Level:        assessment.Level(),
		NeedsHuman:   assessment.NeedsHuman,
		Sources:      sources,
		Category:     cat.String(),
		Duration:     time.Since(start),
	}

	s.logger.Info("query answered",
		"category", answer.Category,
		"documents", len(docs),
		"confidence", answer.Confidence,
		"needs_human", answer.NeedsHuman,
		"duration", answer.Duration)
	return answer
}

// generate calls the external completion. Reports failure so the caller can
// force the handoff path.
func (s *Service) generate(ctx context.Context, rendered, question string) (response string, failed bool) {
	if s.complete == nil {
		return "", false
	}
	response, err := s.complete(ctx, rendered, question)
	if err != nil {
		s.logger.Error("completion failed, degrading to handoff", "error", err)
		return "I'm sorry, I'm experiencing technical difficulties. " +
			"Please try again later or contact the registrar's office.", true
	}
	return response, false
}
