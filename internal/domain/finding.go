package domain

import "fmt"

// Severity classifies how a finding affects the verdict on a file.
type Severity int

const (
	// SeverityDefect marks an inconsistency an operator has to look at.
	SeverityDefect Severity = iota
	// SeverityInfo marks a finding that is logged and counted but is not a
	// defect of the file.
	SeverityInfo
	// SeverityFatal marks a condition that stopped the file from being
	// checked at all.
	SeverityFatal
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityFatal:
		return "fatal"
	default:
		return "defect"
	}
}

// FindingKind is the stable identifier of one class of inconsistency.
type FindingKind string

// Finding kinds. Each check emits exactly one kind per inconsistency.
const (
	KindDuplicatedVoterID       FindingKind = "duplicated_voter_id"
	KindUnreadableFile          FindingKind = "unreadable_file"
	KindCommaInFloat            FindingKind = "comma_in_float"
	KindDifferentValuesInVotes  FindingKind = "different_values_in_votes"
	KindDifferentValuesInScore  FindingKind = "different_values_in_score"
	KindProjectWithNoVotes      FindingKind = "project_with_no_votes"
	KindDifferentNumberVotes    FindingKind = "different_number_of_votes"
	KindDifferentNumberProjects FindingKind = "different_number_of_projects"
	KindVoteLengthExceeded      FindingKind = "vote_length_exceeded"
	KindVoteLengthTooShort      FindingKind = "vote_length_too_short"
	KindVoteDuplicatedProjects  FindingKind = "vote_with_duplicated_projects"
	KindBudgetExceeded          FindingKind = "budget_exceeded"
	KindSingleProjectOverBudget FindingKind = "single_project_exceeded_whole_budget"
	KindProjectWithNoCost       FindingKind = "project_with_no_cost"
	KindAllProjectsFunded       FindingKind = "all_projects_funded"
	KindUnusedBudget            FindingKind = "unused_budget"
	KindGreedyRuleNotFollowed   FindingKind = "greedy_rule_not_followed"
	KindPoznanRuleNotFollowed   FindingKind = "poznan_rule_not_followed"
	KindMissingObligatoryField  FindingKind = "missing_obligatory_field"
	KindNotKnownField           FindingKind = "not_known_field"
	KindWrongFieldOrder         FindingKind = "wrong_field_order"
	KindIncorrectFieldDatatype  FindingKind = "incorrect_field_datatype"
	KindInvalidFieldValue       FindingKind = "invalid_field_value"
	KindEmptyField              FindingKind = "empty_field"
	KindDateRangeMismatch       FindingKind = "date_range_mismatch"
	KindEmptyLine               FindingKind = "empty_line"
	KindMalformedRow            FindingKind = "malformed_row"
	KindInvalidPoints           FindingKind = "invalid_points"
	KindCheckError              FindingKind = "check_error"

	KindNoSelectedField    FindingKind = "no_selected_field"
	KindNoVotesInProjects  FindingKind = "no_votes_in_projects"
	KindRuleNotImplemented FindingKind = "rule_not_implemented"
)

var kindSeverity = map[FindingKind]Severity{
	KindDuplicatedVoterID:  SeverityFatal,
	KindUnreadableFile:     SeverityFatal,
	KindNoSelectedField:    SeverityInfo,
	KindNoVotesInProjects:  SeverityInfo,
	KindRuleNotImplemented: SeverityInfo,
}

// Severity returns the severity of the kind. Unlisted kinds are defects.
func (k FindingKind) Severity() Severity {
	if s, ok := kindSeverity[k]; ok {
		return s
	}
	return SeverityDefect
}

// Finding is one reported inconsistency in one file.
type Finding struct {
	Kind   FindingKind `json:"kind"`
	Detail string      `json:"detail"`
	File   string      `json:"file"`
}

// NewFinding formats a finding of the given kind.
func NewFinding(kind FindingKind, format string, args ...any) Finding {
	return Finding{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Severity is a shorthand for f.Kind.Severity().
func (f Finding) Severity() Severity { return f.Kind.Severity() }

// String renders the finding as one report line.
func (f Finding) String() string {
	if f.File == "" {
		return fmt.Sprintf("[%s] %s", f.Kind, f.Detail)
	}
	return fmt.Sprintf("[%s] %s File: %s", f.Kind, f.Detail, f.File)
}
