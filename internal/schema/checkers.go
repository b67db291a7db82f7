package schema

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// valueCheck returns a reason when value is rejected.
type valueCheck func(value string) error

// predicates is the dispatch table for CheckPredicate.
var predicates = map[string]func(string) bool{
	"country_name": isCountryName,
}

func enumCheck(values []string) valueCheck {
	return func(v string) error {
		if slices.Contains(values, v) {
			return nil
		}
		return fmt.Errorf("%q is not one of %s", v, strings.Join(values, ", "))
	}
}

func regexCheck(re *regexp.Regexp) valueCheck {
	return func(v string) error {
		if re.MatchString(v) {
			return nil
		}
		return fmt.Errorf("%q does not match %s", v, re)
	}
}

func tagCheck(tag string) valueCheck {
	return func(v string) error {
		if err := validate.Var(v, tag); err != nil {
			return fmt.Errorf("%q fails %s", v, tag)
		}
		return nil
	}
}

func predicateCheck(name string, pred func(string) bool) valueCheck {
	return func(v string) error {
		if pred(v) {
			return nil
		}
		return fmt.Errorf("%q fails %s", v, name)
	}
}

func listCheck(elem valueCheck) valueCheck {
	return func(v string) error {
		for i, item := range strings.Split(v, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				return fmt.Errorf("item %d of %q is empty", i+1, v)
			}
			if elem != nil {
				if err := elem(item); err != nil {
					return fmt.Errorf("item %d: %w", i+1, err)
				}
			}
		}
		return nil
	}
}

// countryNames holds the English names of every ISO 3166-1 country.
var countryNames = sync.OnceValue(func() map[string]struct{} {
	namer := display.English.Regions()
	names := make(map[string]struct{}, 256)
	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			r, err := language.ParseRegion(string([]rune{a, b}))
			if err != nil || !r.IsCountry() {
				continue
			}
			if name := namer.Name(r); name != "" {
				names[name] = struct{}{}
			}
		}
	}
	return names
})

func isCountryName(v string) bool {
	_, ok := countryNames()[v]
	return ok
}
