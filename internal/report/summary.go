// Package report aggregates the findings of a batch into a summary counted
// per finding kind and renders it, together with optional per-file
// breakdowns and per-file report files.
package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ahrav/pbcheck/internal/domain"
)

// Banner frames the rendered summary.
const Banner = "**********************************************"

// Entry is the number of occurrences of one finding kind.
type Entry struct {
	Kind  domain.FindingKind
	Count int
}

// Label is the kind as the summary prints it: words instead of an
// identifier, with informational kinds marked.
func (e Entry) Label() string {
	label := strings.ReplaceAll(string(e.Kind), "_", " ")
	if e.Kind.Severity() == domain.SeverityInfo {
		label += " (info)"
	}
	return label
}

// Summary counts findings per kind across a batch. The zero value is ready
// to use. A Summary is not safe for concurrent use; runners aggregate after
// all files returned.
type Summary struct {
	counts map[domain.FindingKind]int
	order  []domain.FindingKind
	files  int
}

// FromRun builds the summary of a finished run.
func FromRun(run domain.Run) *Summary {
	s := &Summary{}
	for _, f := range run.Files {
		s.AddResult(f)
	}
	return s
}

// AddResult counts a file and its findings.
func (s *Summary) AddResult(res domain.FileResult) {
	s.files++
	s.Add(res.Findings...)
}

// Add counts findings.
func (s *Summary) Add(findings ...domain.Finding) {
	if s.counts == nil {
		s.counts = make(map[domain.FindingKind]int)
	}
	for _, f := range findings {
		if _, seen := s.counts[f.Kind]; !seen {
			s.order = append(s.order, f.Kind)
		}
		s.counts[f.Kind]++
	}
}

// Count returns the occurrences of kind.
func (s *Summary) Count(kind domain.FindingKind) int { return s.counts[kind] }

// Files returns how many files were added with AddResult.
func (s *Summary) Files() int { return s.files }

// Total sums the occurrences of every kind of severity sev.
func (s *Summary) Total(sev domain.Severity) int {
	n := 0
	for k, c := range s.counts {
		if k.Severity() == sev {
			n += c
		}
	}
	return n
}

// Empty reports whether no finding was added.
func (s *Summary) Empty() bool { return len(s.order) == 0 }

// Entries returns the kinds sorted by descending count. Kinds with equal
// counts keep the order in which they were first seen.
func (s *Summary) Entries() []Entry {
	entries := make([]Entry, 0, len(s.order))
	for _, k := range s.order {
		entries = append(entries, Entry{Kind: k, Count: s.counts[k]})
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return entries
}

// WriteTo renders the summary between banners, one "count || kind" line
// per kind. It implements io.WriterTo.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString(Banner + "\nSUMMARY\n" + Banner + "\n")
	for _, e := range s.Entries() {
		fmt.Fprintf(&b, "%4d || %s\n", e.Count, e.Label())
	}
	b.WriteString(Banner + "\n")

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// String renders the summary.
func (s *Summary) String() string {
	var b strings.Builder
	_, _ = s.WriteTo(&b)
	return b.String()
}
