// Package scrape fetches web pages and extracts clean text content from
// them. Extraction is structural: navigation chrome is stripped, the main
// content region is located, and text is pulled from headings, paragraphs,
// list items, and table cells. Pages that defeat structural extraction fall
// back to readability extraction and finally to whole-body text.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/campuskb/campuskb/internal/knowledge"
	"github.com/campuskb/campuskb/internal/security"
)

const (
	// DefaultUserAgent identifies the crawler to origin servers.
	DefaultUserAgent = "Mozilla/5.0 (compatible; CampusKB-Bot/1.0)"

	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResponseBytes caps how much of a response body is read.
	DefaultMaxResponseBytes = 10 * 1024 * 1024

	// UntitledDocument is the title of last resort when a page carries
	// neither a <title> nor an <h1>.
	UntitledDocument = "Untitled Document"
)

// Selectors removed before extraction: navigation chrome, scripts, styling.
const removeSelectors = "nav, header, footer, script, style, .navigation, .menu, #menu, #nav, " +
	"[role=navigation], [role=banner], [role=contentinfo]"

// Candidate containers for the main content region, tried in document order.
const mainContentSelectors = "main, article, .content, #content, .main, #main"

// Elements whose text becomes the extracted content, one line each.
const textElementSelectors = "h1, h2, h3, h4, h5, h6, p, li, td, th"

// Page is the result of extracting one URL.
type Page struct {
	URL      string
	Title    string
	Content  string
	Category knowledge.Category
}

// FetchError reports a failure to retrieve the page: network error, timeout,
// or non-2xx status. The page was never parsed.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports markup the HTML parser could not handle at all.
// Malformed-but-parseable HTML never produces this; the extractor degrades
// through its fallbacks instead.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parsing %s: %v", e.URL, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractorConfig tunes fetch behavior. Zero values take the defaults above.
type ExtractorConfig struct {
	UserAgent        string
	Timeout          time.Duration
	MaxResponseBytes int64

	// AllowPrivateHosts disables SSRF validation. Only for deployments that
	// deliberately scrape intranet sources.
	AllowPrivateHosts bool
}

// Extractor fetches a URL and produces a Page. Safe for concurrent use.
type Extractor struct {
	client           *http.Client
	validator        *security.URL
	userAgent        string
	maxResponseBytes int64
	logger           *slog.Logger
}

// NewExtractor creates an Extractor whose HTTP client validates target and
// redirect URLs against private networks. A nil logger falls back to
// slog.Default().
func NewExtractor(cfg ExtractorConfig, logger *slog.Logger) *Extractor {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Extractor{
		userAgent:        cfg.UserAgent,
		maxResponseBytes: cfg.MaxResponseBytes,
		logger:           logger,
	}
	if cfg.AllowPrivateHosts {
		e.client = &http.Client{Timeout: cfg.Timeout}
	} else {
		e.validator = security.NewURL()
		e.client = &http.Client{
			Timeout:       cfg.Timeout,
			Transport:     e.validator.SafeTransport(),
			CheckRedirect: e.validator.ValidateRedirect,
		}
	}
	return e
}

// Extract fetches url and returns its title, cleaned content, and category.
func (e *Extractor) Extract(ctx context.Context, url string) (Page, error) {
	if e.validator != nil {
		if err := e.validator.Validate(url); err != nil {
			return Page{}, &FetchError{URL: url, Err: err}
		}
	}

	e.logger.Info("scraping URL", "url", url)

	body, err := e.fetch(ctx, url)
	if err != nil {
		return Page{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return Page{}, &ParseError{URL: url, Err: err}
	}

	title := extractTitle(doc)
	content := e.extractContent(doc, body, url)
	category := Categorize(url, title)

	e.logger.Info("scraped page",
		"url", url, "title", title, "length", len(content), "category", category.String())

	return Page{URL: url, Title: title, Content: content, Category: category}, nil
}

func (e *Extractor) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxResponseBytes))
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	return string(body), nil
}

// extractTitle resolves the page title: <title>, else first <h1>, else the
// fixed fallback.
func extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		return UntitledDocument
	}
	return cleanText(title)
}

// extractContent strips chrome, locates the main region, and joins the text
// of content elements one per line. Falls back to readability extraction and
// then whole-region text when the structural pass yields nothing.
func (e *Extractor) extractContent(doc *goquery.Document, rawHTML, url string) string {
	doc.Find(removeSelectors).Remove()

	region := doc.Find(mainContentSelectors).First()
	if region.Length() == 0 {
		region = doc.Find("body").First()
	}

	var b strings.Builder
	region.Find(textElementSelectors).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	})

	result := strings.TrimSpace(b.String())
	if result == "" {
		result = e.readabilityFallback(rawHTML, url)
	}
	if result == "" {
		result = region.Text()
	}
	return cleanText(result)
}

func (e *Extractor) readabilityFallback(rawHTML, url string) string {
	parsed, err := nurl.Parse(url)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		e.logger.Debug("readability fallback failed", "url", url, "error", err)
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// cleanText collapses horizontal whitespace runs and excessive blank lines
// while preserving the single-newline element boundaries and blank-line
// paragraph breaks the chunker splits on.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = newlineRuns.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
