// Package scrape turns already-scraped web sources into short summaries that
// can be folded into a generation prompt.
package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/types"
)

const (
	DefaultMaxSources      = 5
	DefaultMaxSummaryChars = 600
)

var (
	htmlMarker  = regexp.MustCompile(`(?i)<(html|body|article|p|div|h[1-6])[\s>]`)
	fullPage    = regexp.MustCompile(`(?i)<(html|body)[\s>]`)
	sentenceEnd = regexp.MustCompile(`[.!?]["')\]]*\s`)
)

// Summary is the condensed form of one scraped source
type Summary struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Headings []string `json:"headings,omitempty"`
	Text     string   `json:"text"`
}

// Config limits how much scraped material reaches the prompt
type Config struct {
	MaxSources      int
	MaxSummaryChars int
}

// Summarizer extracts readable text from scraped sources
type Summarizer struct {
	config Config
	logger *logrus.Logger
}

// NewSummarizer creates a summarizer, filling zero limits with defaults
func NewSummarizer(config Config, logger *logrus.Logger) *Summarizer {
	if config.MaxSources <= 0 {
		config.MaxSources = DefaultMaxSources
	}
	if config.MaxSummaryChars <= 0 {
		config.MaxSummaryChars = DefaultMaxSummaryChars
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Summarizer{config: config, logger: logger}
}

// Summarize condenses each source. Sources that yield no text are skipped.
func (s *Summarizer) Summarize(sources []types.ScrapedSource) []Summary {
	summaries := make([]Summary, 0, len(sources))
	for _, src := range sources {
		if len(summaries) >= s.config.MaxSources {
			break
		}
		summary, err := s.summarize(src)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"url":   src.URL,
				"error": err.Error(),
			}).Warn("Skipping scraped source")
			continue
		}
		if summary.Text == "" {
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func (s *Summarizer) summarize(src types.ScrapedSource) (Summary, error) {
	summary := Summary{URL: src.URL, Title: normalizeText(src.Title)}

	content := src.Content
	if !htmlMarker.MatchString(content) {
		summary.Text = truncate(normalizeText(content), s.config.MaxSummaryChars)
		return summary, nil
	}

	if fullPage.MatchString(content) {
		article, err := extractArticle(src.URL, content)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"url":   src.URL,
				"error": err.Error(),
			}).Debug("Readability extraction failed, using raw HTML")
		} else if strings.TrimSpace(article.Content) != "" {
			if summary.Title == "" {
				summary.Title = normalizeText(article.Title)
			}
			if summary.Title == "" {
				summary.Title = pageTitle(content)
			}
			content = article.Content
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return summary, fmt.Errorf("failed to parse HTML: %w", err)
	}

	if summary.Title == "" {
		summary.Title = normalizeText(doc.Find("title").First().Text())
	}

	var paragraphs []string
	doc.Find("h1,h2,h3,p,li").Each(func(i int, sel *goquery.Selection) {
		text := normalizeText(sel.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(sel) {
		case "h1", "h2", "h3":
			if text != summary.Title {
				summary.Headings = append(summary.Headings, text)
			}
		default:
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		paragraphs = append(paragraphs, normalizeText(doc.Text()))
	}

	summary.Text = truncate(strings.Join(paragraphs, " "), s.config.MaxSummaryChars)
	return summary, nil
}

func extractArticle(rawURL, html string) (readability.Article, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || rawURL == "" {
		parsedURL = &url.URL{Scheme: "https", Host: "localhost"}
	}
	parser := readability.NewParser()
	return parser.Parse(strings.NewReader(html), parsedURL)
}

func pageTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return normalizeText(doc.Find("title").First().Text())
}

// BuildContext renders summaries as a numbered source list for a prompt
func BuildContext(summaries []Summary) string {
	var b strings.Builder
	for i, s := range summaries {
		title := s.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "Source %d: %s", i+1, title)
		if s.URL != "" {
			fmt.Fprintf(&b, " (%s)", s.URL)
		}
		b.WriteString("\n")
		if len(s.Headings) > 0 {
			fmt.Fprintf(&b, "Sections: %s\n", strings.Join(s.Headings, "; "))
		}
		b.WriteString(s.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// normalizeText joins non-empty trimmed lines with single spaces
func normalizeText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, line := range strings.Split(input, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			b.WriteString(line)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

// truncate shortens text to limit characters, at a sentence end when one is
// available in the second half
func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	cut := string([]rune(text)[:limit])
	locs := sentenceEnd.FindAllStringIndex(cut+" ", -1)
	if len(locs) > 0 {
		end := locs[len(locs)-1][1]
		if end > len(cut)/2 {
			return strings.TrimSpace(cut[:min(end, len(cut))])
		}
	}
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
