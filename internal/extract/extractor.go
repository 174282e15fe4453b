package extract

import (
	"bytes"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Extractor turns a raw HTML document into a CourseRecord.
// Implementations are total: missing content yields sentinel values, never an
// error, and the same input always yields the same record.
type Extractor interface {
	Extract(input []byte, sourceURL string) CourseRecord
	// RuleSetName identifies the rules in logs and traces.
	RuleSetName() string
}

// SelectorExtractor applies a RuleSet's CSS selectors and nothing else.
type SelectorExtractor struct {
	Rules RuleSet
}

func (e SelectorExtractor) Extract(input []byte, sourceURL string) CourseRecord {
	return withDefaults(applyRules(parseDocument(input), e.Rules, sourceURL))
}

func (e SelectorExtractor) RuleSetName() string { return e.Rules.Name }

// ReadabilityExtractor applies Rules first and fills a missing title or
// description from a readability pass over the page.
type ReadabilityExtractor struct {
	Rules RuleSet
}

func (e ReadabilityExtractor) Extract(input []byte, sourceURL string) CourseRecord {
	rec := applyRules(parseDocument(input), e.Rules, sourceURL)
	if rec.Title != "" && rec.Description != "" {
		return withDefaults(rec)
	}
	article, err := readability.FromReader(bytes.NewReader(input), nil)
	if err != nil {
		return withDefaults(rec)
	}
	if rec.Title == "" {
		rec.Title = strings.TrimSpace(article.Title)
	}
	if rec.Description == "" {
		rec.Description = firstParagraph(article.TextContent)
	}
	return withDefaults(rec)
}

func (e ReadabilityExtractor) RuleSetName() string { return e.Rules.Name }

// firstParagraph returns the first non-blank line of readable text.
func firstParagraph(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}
