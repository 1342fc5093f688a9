package scrape

import (
	"strings"

	"github.com/campuskb/campuskb/internal/knowledge"
)

// categoryRule maps keywords found in the URL or title to a category.
// Rules are evaluated in order; the first hit wins.
type categoryRule struct {
	keywords []string
	category knowledge.Category
}

// categoryRules is the fixed classification table. Directory and contact
// pages are explicitly GENERAL so the trailing academic rule does not claim
// them.
var categoryRules = []categoryRule{
	{keywords: []string{"admission"}, category: knowledge.CategoryAdmissions},
	{keywords: []string{"catalog", "course"}, category: knowledge.CategoryCourses},
	{keywords: []string{"tuition", "fee"}, category: knowledge.CategoryTuition},
	{keywords: []string{"deadline", "calendar"}, category: knowledge.CategoryDeadlines},
	{keywords: []string{"policy", "policies"}, category: knowledge.CategoryPolicies},
	{keywords: []string{"directory", "contact"}, category: knowledge.CategoryGeneral},
	{keywords: []string{"academic"}, category: knowledge.CategoryCourses},
}

// Categorize classifies a page from its URL and title. Unmatched pages are
// GENERAL.
func Categorize(url, title string) knowledge.Category {
	urlLower := strings.ToLower(url)
	titleLower := strings.ToLower(title)

	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(urlLower, kw) || strings.Contains(titleLower, kw) {
				return rule.category
			}
		}
	}
	return knowledge.CategoryGeneral
}
