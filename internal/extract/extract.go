package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// FromHTML extracts a CourseRecord from a Coursera course page.
func FromHTML(input []byte, sourceURL string) CourseRecord {
	return SelectorExtractor{Rules: CourseraRules}.Extract(input, sourceURL)
}

// parseDocument never fails for well-formed readers; the html5 parser
// recovers from any markup. A nil document means the input was unusable.
func parseDocument(input []byte) *goquery.Document {
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return nil
	}
	return goquery.NewDocumentFromNode(node)
}

// applyRules runs rs against doc. Text is trimmed at the edges only;
// internal whitespace is kept as found.
func applyRules(doc *goquery.Document, rs RuleSet, sourceURL string) CourseRecord {
	rec := CourseRecord{SourceURL: sourceURL}
	if doc == nil {
		return rec
	}
	if rs.Title != "" {
		rec.Title = strings.TrimSpace(doc.Find(rs.Title).First().Text())
	}
	if rs.Description != "" {
		desc := doc.Find(rs.Description).First()
		if rs.DescriptionAttr != "" {
			v, _ := desc.Attr(rs.DescriptionAttr)
			rec.Description = strings.TrimSpace(v)
		} else {
			rec.Description = strings.TrimSpace(desc.Text())
		}
	}
	if rs.SyllabusItem != "" {
		doc.Find(rs.SyllabusItem).Each(func(_ int, s *goquery.Selection) {
			rec.Syllabus = append(rec.Syllabus, strings.TrimSpace(s.Text()))
		})
	}
	return rec
}
