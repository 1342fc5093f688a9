// Package prompt holds the category-specific answer templates. Templates
// live in an immutable Snapshot value passed to the components that render
// prompts; reloading builds a new Snapshot instead of mutating a shared
// cache.
package prompt

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/campuskb/campuskb/internal/knowledge"
)

// Template placeholders substituted by Render.
const (
	contextPlaceholder  = "{context}"
	questionPlaceholder = "{question}"
)

// Snapshot is an immutable set of templates keyed by category. Categories
// without a specific template render through the default template.
type Snapshot struct {
	byCategory map[knowledge.Category]string
	fallback   string
	def        string
}

// Default returns the built-in templates.
func Default() Snapshot {
	return Snapshot{
		byCategory: map[knowledge.Category]string{
			knowledge.CategoryTuition:   tuitionTemplate,
			knowledge.CategoryCourses:   courseTemplate,
			knowledge.CategoryDeadlines: deadlineTemplate,
			knowledge.CategoryPolicies:  policyTemplate,
			knowledge.CategoryTechnical: technicalTemplate,
		},
		fallback: fallbackTemplate,
		def:      defaultTemplate,
	}
}

// templateFiles maps template filenames to categories for LoadDir.
var templateFiles = map[string]knowledge.Category{
	"tuition.txt":   knowledge.CategoryTuition,
	"courses.txt":   knowledge.CategoryCourses,
	"deadlines.txt": knowledge.CategoryDeadlines,
	"policies.txt":  knowledge.CategoryPolicies,
	"technical.txt": knowledge.CategoryTechnical,
}

// LoadDir builds a new Snapshot from template files in fsys, falling back
// to the built-in template for any file that is missing. Calling LoadDir
// again is the reload mechanism; existing Snapshot values are unaffected.
func LoadDir(fsys fs.FS) (Snapshot, error) {
	snap := Default()
	loaded := make(map[knowledge.Category]string, len(snap.byCategory))
	for cat, tmpl := range snap.byCategory {
		loaded[cat] = tmpl
	}

	for name, cat := range templateFiles {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			continue
		}
		tmpl := string(data)
		if err := validateTemplate(name, tmpl); err != nil {
			return Snapshot{}, err
		}
		loaded[cat] = tmpl
	}

	if data, err := fs.ReadFile(fsys, "default.txt"); err == nil {
		if err := validateTemplate("default.txt", string(data)); err != nil {
			return Snapshot{}, err
		}
		snap.def = string(data)
	}
	if data, err := fs.ReadFile(fsys, "fallback.txt"); err == nil {
		snap.fallback = string(data)
	}

	snap.byCategory = loaded
	return snap, nil
}

func validateTemplate(name, tmpl string) error {
	if !strings.Contains(tmpl, contextPlaceholder) || !strings.Contains(tmpl, questionPlaceholder) {
		return fmt.Errorf("template %s missing %s or %s placeholder", name, contextPlaceholder, questionPlaceholder)
	}
	return nil
}

// Render fills the category's template with the retrieved context and the
// user question.
func (s Snapshot) Render(category knowledge.Category, context, question string) string {
	tmpl, ok := s.byCategory[category]
	if !ok {
		tmpl = s.def
	}
	r := strings.NewReplacer(contextPlaceholder, context, questionPlaceholder, question)
	return r.Replace(tmpl)
}

// RenderFallback produces the no-context prompt asking the model to admit
// the gap and point at the right office.
func (s Snapshot) RenderFallback(question string) string {
	return strings.ReplaceAll(s.fallback, questionPlaceholder, question)
}

// BuildContext formats retrieved chunk contents into the numbered context
// block templates expect.
func BuildContext(documents []string) string {
	if len(documents) == 0 {
		return "No relevant documents found."
	}
	var b strings.Builder
	for i, doc := range documents {
		fmt.Fprintf(&b, "Document %d:\n%s\n\n", i+1, doc)
	}
	return b.String()
}

// DetectCategory guesses the query category from keywords in the question.
func DetectCategory(question string) knowledge.Category {
	lower := strings.ToLower(question)

	switch {
	case containsAny(lower, "tuition", "fee", "payment", "cost", "price"):
		return knowledge.CategoryTuition
	case containsAny(lower, "course", "class", "registration", "enroll"):
		return knowledge.CategoryCourses
	case containsAny(lower, "deadline", "date", "when", "due"):
		return knowledge.CategoryDeadlines
	case containsAny(lower, "policy", "rule", "regulation", "requirement"):
		return knowledge.CategoryPolicies
	case containsAny(lower, "login", "password", "access", "technical", "portal"):
		return knowledge.CategoryTechnical
	default:
		return knowledge.CategoryGeneral
	}
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// TruncateContext bounds the context block so oversized retrievals do not
// overflow the completion window.
func TruncateContext(context string, maxLength int) string {
	if len(context) <= maxLength {
		return context
	}
	return context[:maxLength] + "\n...(truncated)"
}

const defaultTemplate = `You are a helpful university FAQ assistant. Answer questions accurately based on the provided context.

Context:
{context}

Question: {question}

Please provide a clear, helpful answer based on the context above.
`

const tuitionTemplate = `You are assisting with tuition and financial information.
Provide specific amounts, deadlines, and payment information from the context.

Context:
{context}

Question: {question}

Answer with specific tuition amounts, fees, and payment deadlines from the context.
`

const courseTemplate = `You are assisting with course registration and information.
Include prerequisites, schedules, and registration procedures from the context.

Context:
{context}

Question: {question}

Answer with course details, prerequisites, and registration information from the context.
`

const deadlineTemplate = `You are providing information about important dates and deadlines.
Always mention specific dates and what they apply to.

Context:
{context}

Question: {question}

Answer with specific dates and deadlines from the context.
`

const policyTemplate = `You are explaining university policies and procedures.
Be clear about requirements and any exceptions.

Context:
{context}

Question: {question}

Explain the relevant policy clearly based on the context.
`

const technicalTemplate = `You are providing technical support for university systems.
Provide step-by-step guidance when applicable.

Context:
{context}

Question: {question}

Provide technical assistance based on the context.
`

const fallbackTemplate = `You are a university FAQ assistant, but you don't have specific information about this question.

Question: {question}

Politely explain that you don't have information on this topic and suggest contacting the appropriate university office.
`
