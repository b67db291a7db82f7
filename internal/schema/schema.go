// Package schema describes the fields each .pb section may carry and
// validates records against that description.
package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/pbcheck/internal/domain"
)

//go:embed fields.yaml
var defaultFields []byte

var validate = validator.New()

// Datatype is the type a field value must coerce to.
type Datatype string

const (
	TypeString Datatype = "str"
	TypeInt    Datatype = "int"
	TypeFloat  Datatype = "float"
	TypeList   Datatype = "list"
)

// CheckerKind tags the variant held by a Checker.
type CheckerKind string

const (
	// CheckEnum accepts one of Values.
	CheckEnum CheckerKind = "enum"
	// CheckRegex accepts values matching Pattern.
	CheckRegex CheckerKind = "regex"
	// CheckTag runs a go-playground validator tag such as iso4217.
	CheckTag CheckerKind = "tag"
	// CheckPredicate runs a named Go predicate.
	CheckPredicate CheckerKind = "predicate"
	// CheckList requires non-empty list items, each optionally passing Element.
	CheckList CheckerKind = "list"
)

// Checker is a serializable value check. Only the fields of its Kind are
// meaningful. Message, when set, is reported verbatim on failure.
type Checker struct {
	Kind      CheckerKind `yaml:"kind" validate:"required,oneof=enum regex tag predicate list"`
	Values    []string    `yaml:"values,omitempty" validate:"required_if=Kind enum"`
	Pattern   string      `yaml:"pattern,omitempty" validate:"required_if=Kind regex"`
	Tag       string      `yaml:"tag,omitempty" validate:"required_if=Kind tag"`
	Predicate string      `yaml:"predicate,omitempty" validate:"required_if=Kind predicate"`
	Element   *Checker    `yaml:"element,omitempty"`
	Message   string      `yaml:"message,omitempty"`
}

// Field describes one column of a section.
type Field struct {
	Name       string   `yaml:"name" validate:"required"`
	Datatype   Datatype `yaml:"datatype" validate:"required,oneof=str int float list"`
	Obligatory bool     `yaml:"obligatory,omitempty"`
	Nullable   bool     `yaml:"nullable,omitempty"`
	Checker    *Checker `yaml:"checker,omitempty"`
}

// Schema holds the ordered field lists of the three sections.
type Schema struct {
	Meta     []Field `yaml:"meta" validate:"required,min=1,dive"`
	Projects []Field `yaml:"projects" validate:"required,min=1,dive"`
	Votes    []Field `yaml:"votes" validate:"required,min=1,dive"`

	index    map[domain.Section]map[string]int
	compiled map[*Checker]valueCheck
}

// Default returns the embedded schema. It is parsed once.
var Default = sync.OnceValues(func() (*Schema, error) {
	return Load(defaultFields)
})

// DefaultYAML returns the embedded schema document.
func DefaultYAML() []byte { return bytes.Clone(defaultFields) }

// LoadFile reads a schema document from path.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return Load(data)
}

// Load parses, validates and compiles a schema document. Unknown keys,
// duplicated field names, bad patterns, unknown predicates and unknown
// validator tags are rejected.
func Load(data []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Schema
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode schema: %w", domain.ErrInvalidConfiguration, err)
	}
	if err := validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	if err := s.compile(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	return &s, nil
}

// Encode writes the schema as YAML.
func (s *Schema) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return enc.Close()
}

// Fields returns the ordered fields of section.
func (s *Schema) Fields(section domain.Section) []Field {
	switch section {
	case domain.SectionMeta:
		return s.Meta
	case domain.SectionProjects:
		return s.Projects
	case domain.SectionVotes:
		return s.Votes
	}
	return nil
}

// Field looks up name in section.
func (s *Schema) Field(section domain.Section, name string) (Field, bool) {
	i, ok := s.index[section][name]
	if !ok {
		return Field{}, false
	}
	return s.Fields(section)[i], true
}

func (s *Schema) position(section domain.Section, name string) (int, bool) {
	i, ok := s.index[section][name]
	return i, ok
}

func (s *Schema) compile() error {
	s.index = make(map[domain.Section]map[string]int, 3)
	s.compiled = make(map[*Checker]valueCheck)

	problems := domain.NewProblems("schema")
	for _, section := range []domain.Section{domain.SectionMeta, domain.SectionProjects, domain.SectionVotes} {
		idx := make(map[string]int)
		for i, f := range s.Fields(section) {
			if _, dup := idx[f.Name]; dup {
				problems.Addf("%s.%s: duplicated field", section, f.Name)
				continue
			}
			idx[f.Name] = i
			if f.Checker == nil {
				continue
			}
			if err := s.compileChecker(f.Checker); err != nil {
				problems.Addf("%s.%s: %v", section, f.Name, err)
			}
		}
		s.index[section] = idx
	}
	return problems.Err()
}

func (s *Schema) compileChecker(c *Checker) error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var check valueCheck
	switch c.Kind {
	case CheckEnum:
		check = enumCheck(c.Values)
	case CheckRegex:
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", c.Pattern, err)
		}
		check = regexCheck(re)
	case CheckTag:
		if !knownTag(c.Tag) {
			return fmt.Errorf("unknown validator tag %q", c.Tag)
		}
		check = tagCheck(c.Tag)
	case CheckPredicate:
		pred, ok := predicates[c.Predicate]
		if !ok {
			return fmt.Errorf("unknown predicate %q", c.Predicate)
		}
		check = predicateCheck(c.Predicate, pred)
	case CheckList:
		var elem valueCheck
		if c.Element != nil {
			if c.Element.Kind == CheckList {
				return errors.New("list checker cannot nest a list")
			}
			if err := s.compileChecker(c.Element); err != nil {
				return fmt.Errorf("element: %w", err)
			}
			elem = s.compiled[c.Element]
		}
		check = listCheck(elem)
	}
	s.compiled[c] = check
	return nil
}

// knownTag reports whether the validator understands tag. Var panics on
// undefined tags.
func knownTag(tag string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_ = validate.Var("", tag)
	return true
}
