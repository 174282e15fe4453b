package extract

import (
	"fmt"
	"strings"
	"testing"
)

// Benchmark both strategies on course pages of increasing syllabus length.
func BenchmarkExtract(b *testing.B) {
	small := []byte(`<h1>t</h1><div data-e2e="course-description">d</div>`)
	medium := makeCoursePage(20)
	large := makeCoursePage(400)

	for _, e := range []Extractor{SelectorExtractor{Rules: CourseraRules}, ReadabilityExtractor{Rules: GenericRules}} {
		for _, tc := range []struct {
			name  string
			input []byte
		}{{"small", small}, {"medium", medium}, {"large", large}} {
			b.Run(e.RuleSetName()+"/"+tc.name, func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					_ = e.Extract(tc.input, demoURL)
				}
			})
		}
	}
}

func makeCoursePage(items int) []byte {
	builder := new(strings.Builder)
	builder.WriteString(`<html><head><title>demo</title><meta name="description" content="demo"></head><body><main>`)
	builder.WriteString(`<h1>Course</h1><div data-e2e="course-description"><p>`)
	builder.WriteString(sampleText)
	builder.WriteString(`</p></div><ul>`)
	for i := 0; i < items; i++ {
		fmt.Fprintf(builder, `<li data-e2e="course-syllabus-item"><h2>Week %d</h2><p>%s</p></li>`, i+1, sampleText)
	}
	builder.WriteString("</ul></main></body></html>")
	return []byte(builder.String())
}

const sampleText = "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua."
