// Package domain contains the pure, dependency-free model of a participatory
// budgeting election and the checks' findings.
package domain

import (
	"fmt"
	"maps"
	"slices"
)

// Key names a State value of type T.
type Key[T any] struct{ name string }

// NewKey returns a key for values of type T.
func NewKey[T any](name string) Key[T] { return Key[T]{name: name} }

func (k Key[T]) Name() string { return k.name }

var (
	KeyFileName = Key[string]{"file.name"}

	// KeyElection holds the parsed file. Checks read it but never modify
	// it, so it is passed by reference.
	KeyElection = Key[*Election]{"election"}

	KeyFindings = Key[[]Finding]{"findings"}

	// KeyVoteTally and KeyScoreTally hold the totals recomputed from VOTES.
	KeyVoteTally  = Key[Tally]{"tally.votes"}
	KeyScoreTally = Key[Tally]{"tally.score"}
)

// cloner is implemented by mutable values that State copies on every read
// and write.
type cloner interface{ cloneValue() any }

func copyOf(v any) any {
	switch v := v.(type) {
	case cloner:
		return v.cloneValue()
	case []Finding:
		return slices.Clone(v)
	default:
		return v
	}
}

// State is what flows through one file's check plan. It is never modified
// in place: With and AddFindings return a new State, so a layer can hand
// the same State to concurrent checks.
type State struct {
	data map[string]any
}

func NewState() State { return State{data: map[string]any{}} }

// NewFileState is the initial State for checking election read from
// fileName.
func NewFileState(fileName string, election *Election) State {
	return State{data: map[string]any{
		KeyFileName.name: fileName,
		KeyElection.name: election,
		KeyFindings.name: []Finding{},
	}}
}

// Get returns the value stored under key. Tallies and findings come back
// as copies.
func Get[T any](s State, key Key[T]) (T, bool) {
	v, ok := s.data[key.name]
	if !ok {
		var zero T
		return zero, false
	}
	out, ok := copyOf(v).(T)
	return out, ok
}

// With returns s with key set to value.
func With[T any](s State, key Key[T], value T) State {
	return s.set(key.name, copyOf(value))
}

func (s State) set(name string, v any) State {
	data := maps.Clone(s.data)
	if data == nil {
		data = map[string]any{}
	}
	data[name] = v
	return State{data: data}
}

// Keys lists the stored names, sorted.
func (s State) Keys() []string { return slices.Sorted(maps.Keys(s.data)) }

func (s State) String() string { return fmt.Sprintf("State%v", s.data) }

// Findings returns the findings reported so far.
func (s State) Findings() []Finding {
	fs, _ := Get(s, KeyFindings)
	return fs
}

// AddFindings appends findings. A finding without a file is attributed to
// the file under check.
func (s State) AddFindings(findings ...Finding) State {
	if len(findings) == 0 {
		return s
	}
	file, _ := s.data[KeyFileName.name].(string)
	current, _ := s.data[KeyFindings.name].([]Finding)

	all := slices.Grow(slices.Clone(current), len(findings))
	for _, f := range findings {
		if f.File == "" {
			f.File = file
		}
		all = append(all, f)
	}
	return s.set(KeyFindings.name, all)
}

// WithValuesOf copies every value of other except its findings into s.
// Layers use it to merge member results; findings are merged separately.
func (s State) WithValuesOf(other State) State {
	data := maps.Clone(s.data)
	if data == nil {
		data = map[string]any{}
	}
	for k, v := range other.data {
		if k != KeyFindings.name {
			data[k] = v
		}
	}
	return State{data: data}
}
