package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicatedVoterID rejects a file whose VOTES rows repeat a
	// voter_id. Nothing can be counted reliably after that.
	ErrDuplicatedVoterID = errors.New("duplicated voter id")

	ErrMissingSection = errors.New("missing section")
	ErrMissingHeader  = errors.New("missing section header")
	ErrInvalidNumber  = errors.New("invalid number")

	// ErrInvalidDate: dates are YYYY or DD.MM.YYYY.
	ErrInvalidDate = errors.New("invalid date")

	// ErrMissingState means a check ran before the value it reads was set.
	ErrMissingState = errors.New("missing state value")

	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ParseError carries the 1-based line a .pb file stopped parsing at.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError wraps err with its line.
func NewParseError(line int, err error) *ParseError {
	return &ParseError{Line: line, Err: err}
}

// Problems collects every problem found while validating one subject so
// they can be reported together.
type Problems struct {
	Subject string
	List    []string
}

// NewProblems returns an empty collection for subject.
func NewProblems(subject string) *Problems { return &Problems{Subject: subject} }

// Addf records one problem.
func (p *Problems) Addf(format string, args ...any) {
	p.List = append(p.List, fmt.Sprintf(format, args...))
}

// Err returns p as an error, or nil when nothing was recorded.
func (p *Problems) Err() error {
	if len(p.List) == 0 {
		return nil
	}
	return p
}

func (p *Problems) Error() string {
	return fmt.Sprintf("invalid %s: %s", p.Subject, strings.Join(p.List, "; "))
}
