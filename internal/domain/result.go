package domain

import "time"

// FileResult is the outcome of checking one file.
type FileResult struct {
	// File is the name the source listed.
	File string `json:"file"`

	// Webpage is the name the file is published under, empty when the
	// file could not be parsed.
	Webpage string `json:"webpage,omitempty"`

	// Findings are all findings of the file in the order they were made.
	Findings []Finding `json:"findings"`

	// Duration is how long reading and checking took.
	Duration time.Duration `json:"duration"`
}

// Fatal reports whether the file could not be checked at all.
func (r FileResult) Fatal() bool {
	for _, f := range r.Findings {
		if f.Severity() == SeverityFatal {
			return true
		}
	}
	return false
}

// Count returns how many findings have severity s.
func (r FileResult) Count(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity() == s {
			n++
		}
	}
	return n
}

// Status is "fatal", "defects" or "clean". Informational findings do not
// make a file defective.
func (r FileResult) Status() string {
	switch {
	case r.Fatal():
		return "fatal"
	case r.Count(SeverityDefect) > 0:
		return "defects"
	default:
		return "clean"
	}
}

// Run is one batch over a source.
type Run struct {
	ID         string
	Source     string
	Pattern    string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      []FileResult
}

// RunSummary is the stored digest of a Run.
type RunSummary struct {
	ID         string
	Source     string
	Pattern    string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      int
	Defects    int
	Fatal      int
}

// Summary digests r. Fatal counts files, Defects counts findings.
func (r Run) Summary() RunSummary {
	s := RunSummary{
		ID:         r.ID,
		Source:     r.Source,
		Pattern:    r.Pattern,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Files:      len(r.Files),
	}
	for _, f := range r.Files {
		s.Defects += f.Count(SeverityDefect)
		if f.Fatal() {
			s.Fatal++
		}
	}
	return s
}
