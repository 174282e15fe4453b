package extract

import "strings"

// Sentinel strings substituted when a field cannot be located. Clients
// compare against these literally.
const (
	TitleNotFound       = "Course Title Not Found"
	DescriptionNotFound = "Description Not Found"
	SyllabusNotFound    = "Syllabus Not Found"
)

// CourseRecord is the normalized result of extraction. Title and
// Description are never empty and Syllabus always has at least one entry.
type CourseRecord struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Syllabus    []string `json:"syllabus" yaml:"syllabus"`
	SourceURL   string   `json:"sourceUrl" yaml:"sourceUrl"`
}

// withDefaults applies the sentinel policy to a raw record.
func withDefaults(r CourseRecord) CourseRecord {
	if strings.TrimSpace(r.Title) == "" {
		r.Title = TitleNotFound
	}
	if strings.TrimSpace(r.Description) == "" {
		r.Description = DescriptionNotFound
	}
	if len(r.Syllabus) == 0 {
		r.Syllabus = []string{SyllabusNotFound}
	}
	return r
}

// Empty returns the record produced for a document with no usable content.
func Empty(sourceURL string) CourseRecord {
	return withDefaults(CourseRecord{SourceURL: sourceURL})
}
