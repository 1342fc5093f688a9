// Package confidence scores generated answers. Scoring is a pure function
// of the response text, the retrieval yield, and the query category; it
// performs no I/O and is deterministic for identical inputs.
package confidence

import (
	"regexp"
	"strings"

	"github.com/campuskb/campuskb/internal/knowledge"
)

const (
	highThreshold = 0.75
	lowThreshold  = 0.50

	retrievalWeight = 0.4
	qualityWeight   = 0.4
	categoryWeight  = 0.2
)

// Level labels a confidence band for observability. The human-handoff
// decision is the boolean on Assessment, not the label.
type Level string

const (
	LevelHigh   Level = "HIGH"
	LevelMedium Level = "MEDIUM"
	LevelLow    Level = "LOW"
)

// Assessment is the scored result for one answer.
type Assessment struct {
	// Confidence is in [0, 1].
	Confidence float64

	// NeedsHuman is set when confidence falls below the low threshold.
	NeedsHuman bool
}

// Level returns the confidence band.
func (a Assessment) Level() Level {
	switch {
	case a.Confidence >= highThreshold:
		return LevelHigh
	case a.Confidence >= lowThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Score combines retrieval yield (40%), response quality (40%), and
// category keyword evidence (20%) into a single confidence. A nil category
// means the query category is unknown and contributes a neutral term.
func Score(response string, documentsRetrieved int, category *knowledge.Category) Assessment {
	confidence := retrievalTerm(documentsRetrieved)*retrievalWeight +
		qualityTerm(response)*qualityWeight +
		categoryTerm(category, response)*categoryWeight

	confidence = clamp(confidence)
	return Assessment{
		Confidence: confidence,
		NeedsHuman: confidence < lowThreshold,
	}
}

// retrievalTerm is a step function rewarding corroboration, saturating at
// three independent sources.
func retrievalTerm(documentsRetrieved int) float64 {
	switch {
	case documentsRetrieved <= 0:
		return 0.0
	case documentsRetrieved == 1:
		return 0.5
	case documentsRetrieved >= 3:
		return 1.0
	default:
		return 0.75
	}
}

// qualityTerm scores the response text itself: a length base, hedging
// penalty, and specific-information boost composed multiplicatively in that
// order.
func qualityTerm(response string) float64 {
	if strings.TrimSpace(response) == "" {
		return 0.0
	}

	var score float64
	switch length := len(response); {
	case length < 50:
		score = 0.3
	case length < 150:
		score = 0.6
	default:
		score = 1.0
	}

	lower := strings.ToLower(response)
	if containsAny(lower, uncertaintyMarkers) {
		score *= 0.7
	}
	if containsSpecificInformation(lower) {
		score *= 1.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// categoryTerm checks the response for keyword evidence matching the query
// category. A miss scores the category's penalty; categories without a
// keyword table score a flat default.
func categoryTerm(category *knowledge.Category, response string) float64 {
	if category == nil {
		return 0.5
	}
	lower := strings.ToLower(response)

	switch *category {
	case knowledge.CategoryTuition:
		return hitOrMiss(containsAny(lower, tuitionKeywords), 0.6)
	case knowledge.CategoryCourses:
		return hitOrMiss(containsAny(lower, courseKeywords), 0.6)
	case knowledge.CategoryDeadlines:
		return hitOrMiss(containsDateInformation(lower), 0.5)
	case knowledge.CategoryPolicies:
		return hitOrMiss(containsAny(lower, policyKeywords), 0.6)
	case knowledge.CategoryTechnical:
		return hitOrMiss(containsAny(lower, technicalKeywords), 0.6)
	case knowledge.CategoryAdmissions, knowledge.CategoryGeneral:
		return 0.7
	default:
		return 0.7
	}
}

func hitOrMiss(hit bool, missPenalty float64) float64 {
	if hit {
		return 1.0
	}
	return missPenalty
}

// clamp bounds a confidence to [0, 1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var uncertaintyMarkers = []string{
	"i don't know", "not sure", "might", "maybe", "possibly",
	"i'm not certain", "unclear", "cannot confirm", "unable to",
	"i don't have", "no information",
}

var tuitionKeywords = []string{
	"tuition", "fee", "payment", "cost", "price", "dollar", "$", "semester",
}

var courseKeywords = []string{
	"course", "class", "credit", "prerequisite", "registration",
	"enroll", "schedule", "semester",
}

var policyKeywords = []string{
	"policy", "rule", "regulation", "requirement", "must", "should",
	"allowed", "prohibited", "procedure",
}

var technicalKeywords = []string{
	"login", "password", "access", "portal", "system", "account",
	"email", "website", "technical", "support",
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june", "july",
	"august", "september", "october", "november", "december",
}

var digitPattern = regexp.MustCompile(`\d`)

var datePattern = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`)

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// containsSpecificInformation rewards concrete facts: digits, currency, or
// month names.
func containsSpecificInformation(lower string) bool {
	return digitPattern.MatchString(lower) ||
		strings.Contains(lower, "$") ||
		containsAny(lower, monthNames)
}

// containsDateInformation accepts numeric dates or month names.
func containsDateInformation(lower string) bool {
	return datePattern.MatchString(lower) || containsAny(lower, monthNames)
}
