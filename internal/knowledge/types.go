// Package knowledge defines the knowledge-base data model and the durable
// document store backing it.
package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Category classifies a document by topic. The set is closed: adding a
// category means adding a constant here and extending the exhaustive
// switches that dispatch on it.
type Category int

const (
	CategoryGeneral Category = iota
	CategoryAdmissions
	CategoryCourses
	CategoryTuition
	CategoryDeadlines
	CategoryPolicies
	CategoryTechnical
)

// String returns the canonical upper-case name used in storage and APIs.
func (c Category) String() string {
	switch c {
	case CategoryAdmissions:
		return "ADMISSIONS"
	case CategoryCourses:
		return "COURSES"
	case CategoryTuition:
		return "TUITION"
	case CategoryDeadlines:
		return "DEADLINES"
	case CategoryPolicies:
		return "POLICIES"
	case CategoryTechnical:
		return "TECHNICAL"
	case CategoryGeneral:
		return "GENERAL"
	default:
		return "GENERAL"
	}
}

// ParseCategory maps a stored or user-supplied name to a Category.
// Matching is case-insensitive; ok is false for unrecognized names.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADMISSIONS":
		return CategoryAdmissions, true
	case "COURSES":
		return CategoryCourses, true
	case "TUITION":
		return CategoryTuition, true
	case "DEADLINES":
		return CategoryDeadlines, true
	case "POLICIES":
		return CategoryPolicies, true
	case "TECHNICAL":
		return CategoryTechnical, true
	case "GENERAL":
		return CategoryGeneral, true
	default:
		return CategoryGeneral, false
	}
}

// MarshalText implements encoding.TextMarshaler for JSON and config use.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names are an
// error rather than a silent fallthrough to GENERAL.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, ok := ParseCategory(string(text))
	if !ok {
		return fmt.Errorf("unknown category: %q", string(text))
	}
	*c = parsed
	return nil
}

// Categories lists every category in priority order. Used for exhaustive
// iteration (stats breakdowns, keyword tables).
func Categories() []Category {
	return []Category{
		CategoryAdmissions,
		CategoryCourses,
		CategoryTuition,
		CategoryDeadlines,
		CategoryPolicies,
		CategoryTechnical,
		CategoryGeneral,
	}
}

// Document is the durable record for one indexed chunk of source content.
// It is an immutable value: state transitions produce a new Document via
// the With* constructors instead of mutating in place.
type Document struct {
	ID        string
	Title     string
	Content   string
	Category  Category
	Source    string
	Metadata  map[string]string
	Checksum  string
	Indexed   bool
	VectorRef string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithVector returns a copy of d marked as indexed with the given vector
// reference. The only legal indexed transition is false→true through here.
func (d Document) WithVector(ref string, at time.Time) Document {
	d.Indexed = true
	d.VectorRef = ref
	d.UpdatedAt = at
	return d
}

// Stats summarizes the state of the durable store for operators.
type Stats struct {
	TotalDocuments      int64            `json:"totalDocuments"`
	IndexedDocuments    int64            `json:"indexedDocuments"`
	NotIndexedDocuments int64            `json:"notIndexedDocuments"`
	DocumentsByCategory map[string]int64 `json:"documentsByCategory"`
}

// Checksum computes the deduplication fingerprint for chunk content:
// SHA-256 over the normalized text, hex encoded. Two chunks with the same
// checksum are the same content regardless of incidental whitespace or
// casing differences.
func Checksum(content string) string {
	sum := sha256.Sum256([]byte(NormalizeContent(content)))
	return hex.EncodeToString(sum[:])
}

// NormalizeContent lowercases text and collapses all whitespace runs to
// single spaces. Used before fingerprinting so formatting noise does not
// defeat deduplication.
func NormalizeContent(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
