package schema

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ahrav/pbcheck/internal/domain"
)

// maxSuggestDistance bounds the edit distance of a "did you mean" hint.
const maxSuggestDistance = 2

// ValidateElection validates META and the PROJECTS and VOTES rows of e.
// Only the first row of each section is sampled unless exhaustive is set.
func (s *Schema) ValidateElection(e *domain.Election, exhaustive bool) []domain.Finding {
	findings := s.Validate(domain.SectionMeta, "META", e.Meta.Fields)

	for i, p := range e.Projects {
		if i > 0 && !exhaustive {
			break
		}
		label := fmt.Sprintf("PROJECTS (project_id %s)", p.ID)
		findings = append(findings, s.Validate(domain.SectionProjects, label, p.Fields)...)
	}
	for i, v := range e.Votes {
		if i > 0 && !exhaustive {
			break
		}
		label := fmt.Sprintf("VOTES (voter_id %s)", v.VoterID)
		findings = append(findings, s.Validate(domain.SectionVotes, label, v.Fields)...)
	}
	return findings
}

// Validate checks one record of section. label names the record in finding
// details. Findings come in a fixed order: missing, unknown, order, then
// per-field value findings in record order.
func (s *Schema) Validate(section domain.Section, label string, fields domain.Fields) []domain.Finding {
	var findings []domain.Finding

	if missing := s.missing(section, fields); len(missing) > 0 {
		findings = append(findings, domain.NewFinding(domain.KindMissingObligatoryField,
			"Missing obligatory fields in %s: %s", label, strings.Join(missing, ", ")))
	}
	if unknown := s.unknown(section, fields); len(unknown) > 0 {
		findings = append(findings, domain.NewFinding(domain.KindNotKnownField,
			"Not known fields in %s: %s", label, strings.Join(unknown, ", ")))
	}
	if f, ok := s.order(section, label, fields); ok {
		findings = append(findings, f)
	}

	for _, fv := range fields {
		fd, ok := s.Field(section, fv.Name)
		if !ok {
			continue
		}
		if f, bad := s.value(fd, label, fv.Value); bad {
			findings = append(findings, f)
		}
	}
	return findings
}

func (s *Schema) missing(section domain.Section, fields domain.Fields) []string {
	var out []string
	for _, f := range s.Fields(section) {
		if f.Obligatory && !fields.Has(f.Name) {
			out = append(out, f.Name)
		}
	}
	return out
}

func (s *Schema) unknown(section domain.Section, fields domain.Fields) []string {
	var out []string
	for _, f := range fields {
		if _, ok := s.position(section, f.Name); ok {
			continue
		}
		if hint := s.suggest(section, f.Name); hint != "" {
			out = append(out, fmt.Sprintf("%s (did you mean %s?)", f.Name, hint))
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

// suggest returns the closest known field name, or "" when none is close.
func (s *Schema) suggest(section domain.Section, name string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, f := range s.Fields(section) {
		if d := levenshtein.ComputeDistance(strings.ToLower(name), f.Name); d < bestDist {
			best, bestDist = f.Name, d
		}
	}
	return best
}

// order requires known fields to form a subsequence of the schema order.
// Scanning stops at the first field that cannot be matched forward.
func (s *Schema) order(section domain.Section, label string, fields domain.Fields) (domain.Finding, bool) {
	last, lastName := -1, ""
	for _, f := range fields {
		pos, ok := s.position(section, f.Name)
		if !ok {
			continue
		}
		if pos <= last {
			return domain.NewFinding(domain.KindWrongFieldOrder,
				"Wrong field order in %s: %s after %s, expected %s",
				label, f.Name, lastName, strings.Join(s.expectedOrder(section, fields), ", ")), true
		}
		last, lastName = pos, f.Name
	}
	return domain.Finding{}, false
}

func (s *Schema) expectedOrder(section domain.Section, fields domain.Fields) []string {
	var known []string
	for _, name := range fields.Names() {
		if _, ok := s.position(section, name); ok && !slices.Contains(known, name) {
			known = append(known, name)
		}
	}
	slices.SortFunc(known, func(a, b string) int {
		pa, _ := s.position(section, a)
		pb, _ := s.position(section, b)
		return cmp.Compare(pa, pb)
	})
	return known
}

// value coerces v to the field's datatype, then rejects an empty value the
// field does not allow, then runs the field's checker. The first failure
// ends the checks of that field. An empty nullable value is never checked.
func (s *Schema) value(fd Field, label, v string) (domain.Finding, bool) {
	if v == "" && fd.Nullable {
		return domain.Finding{}, false
	}

	if !coerces(fd.Datatype, v) {
		return domain.NewFinding(domain.KindIncorrectFieldDatatype,
			"Incorrect datatype of %s in %s: %q is not %s", fd.Name, label, v, fd.Datatype), true
	}

	if v == "" {
		return domain.NewFinding(domain.KindEmptyField, "Empty value of %s in %s", fd.Name, label), true
	}

	if fd.Checker == nil {
		return domain.Finding{}, false
	}
	check, ok := s.compiled[fd.Checker]
	if !ok {
		return domain.Finding{}, false
	}
	if err := check(v); err != nil {
		msg := fd.Checker.Message
		if msg == "" {
			msg = err.Error()
		}
		return domain.NewFinding(domain.KindInvalidFieldValue, "Invalid value of %s in %s: %s", fd.Name, label, msg), true
	}
	return domain.Finding{}, false
}

func coerces(t Datatype, v string) bool {
	switch t {
	case TypeInt:
		_, err := strconv.ParseInt(v, 10, 64)
		return err == nil
	case TypeFloat:
		_, err := domain.ParseDecimal(v)
		return err == nil
	default:
		return true
	}
}
