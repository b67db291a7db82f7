package report

import (
	"slices"

	"github.com/maruel/natural"
)

// NaturalLess orders strings the way people read them: runs of digits
// compare by numeric value, so file_9 sorts before file_10.
func NaturalLess(a, b string) bool { return natural.Less(a, b) }

// SortNatural sorts names in natural order. Names that compare equal keep
// their order.
func SortNatural(names []string) {
	slices.SortStableFunc(names, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})
}
