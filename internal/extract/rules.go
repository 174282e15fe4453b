package extract

import (
	"fmt"
	"sort"
	"strings"
)

// RuleSet names the selectors that locate course fields in one upstream
// site's markup. Adding a source means adding a RuleSet, not touching the
// gateway.
type RuleSet struct {
	Name string
	// Title selects the heading; only the first match in document order is used.
	Title string
	// Description selects the description region; the first match wins.
	Description string
	// DescriptionAttr, when set, reads this attribute of the description
	// element instead of its text (e.g. meta content).
	DescriptionAttr string
	// SyllabusItem selects every syllabus entry in document order.
	SyllabusItem string
}

// Coursera markup conventions.
const (
	CourseraTitleSelector       = "h1"
	CourseraDescriptionSelector = `[data-e2e="course-description"]`
	CourseraSyllabusSelector    = `[data-e2e="course-syllabus-item"]`
)

// CourseraRules matches Coursera course landing pages.
var CourseraRules = RuleSet{
	Name:         "coursera",
	Title:        CourseraTitleSelector,
	Description:  CourseraDescriptionSelector,
	SyllabusItem: CourseraSyllabusSelector,
}

// GenericRules is used with the readability strategy for pages that follow
// no particular course markup.
var GenericRules = RuleSet{
	Name:            "readability",
	Title:           "h1",
	Description:     `meta[name="description"]`,
	DescriptionAttr: "content",
	SyllabusItem:    "main h2, article h2",
}

var registry = map[string]func() Extractor{
	CourseraRules.Name: func() Extractor { return SelectorExtractor{Rules: CourseraRules} },
	GenericRules.Name:  func() Extractor { return ReadabilityExtractor{Rules: GenericRules} },
}

// Lookup returns the extractor registered under name.
func Lookup(name string) (Extractor, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown rule set %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Names lists the registered rule sets in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
