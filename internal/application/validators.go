package application

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/pbcheck/infrastructure/checks"
)

// ValidateCheckParameters validates the parameters of a built-in check
// type before the check is created, so a plan with a typo fails to load
// instead of silently using defaults.
// Types registered at runtime are accepted as is; their factories validate
// their own configuration.
func ValidateCheckParameters(checkType string, params yaml.Node) error {
	var paramMap map[string]any
	if err := params.Decode(&paramMap); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}

	switch checkType {
	case checks.TypeParseNotes, checks.TypeTally, checks.TypeDateRange, checks.TypeNumberFormat,
		checks.TypeCounts, checks.TypeVoteLength, checks.TypeVotesConsistency:
		return allowOnly(checkType, paramMap)
	case checks.TypeSchema:
		return validateSchemaParams(paramMap)
	case checks.TypeBudget:
		return validateBudgetParams(paramMap)
	case checks.TypeSelection:
		return validateRuleParams(checks.TypeSelection, paramMap)
	default:
		return nil
	}
}

// allowOnly rejects any parameter not in allowed.
func allowOnly(checkType string, params map[string]any, allowed ...string) error {
	var unknown []string
	for _, k := range slices.Sorted(maps.Keys(params)) {
		if !slices.Contains(allowed, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	if len(allowed) == 0 {
		return fmt.Errorf("%s takes no parameters, got: %s", checkType, strings.Join(unknown, ", "))
	}
	return fmt.Errorf("%s does not accept: %s", checkType, strings.Join(unknown, ", "))
}

// validateSchemaParams validates parameters for the schema check.
func validateSchemaParams(params map[string]any) error {
	if err := allowOnly(checks.TypeSchema, params, "exhaustive"); err != nil {
		return err
	}
	if v, ok := params["exhaustive"]; ok {
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("exhaustive must be a boolean")
		}
	}
	return nil
}

// validateBudgetParams validates parameters for the budget check.
func validateBudgetParams(params map[string]any) error {
	if v, ok := params["unused_budget"]; ok {
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("unused_budget must be a boolean")
		}
	}
	rest := maps.Clone(params)
	delete(rest, "unused_budget")
	return validateRuleParams(checks.TypeBudget, rest)
}

// validateRuleParams validates the rule parameters shared by the budget
// and selection checks.
func validateRuleParams(checkType string, params map[string]any) error {
	if err := allowOnly(checkType, params, "partial_threshold_units", "threshold_fraction"); err != nil {
		return err
	}

	if units, ok := params["partial_threshold_units"]; ok {
		list, ok := units.([]any)
		if !ok {
			return fmt.Errorf("partial_threshold_units must be a list")
		}
		for i, u := range list {
			s, ok := u.(string)
			if !ok || s == "" {
				return fmt.Errorf("partial_threshold_units[%d] must be a non-empty string", i)
			}
		}
	}

	if fraction, ok := params["threshold_fraction"]; ok {
		var v float64
		switch f := fraction.(type) {
		case float64:
			v = f
		case int:
			v = float64(f)
		default:
			return fmt.Errorf("threshold_fraction must be a number")
		}
		if v <= 0 || v > 1 {
			return fmt.Errorf("threshold_fraction must be in (0, 1]")
		}
	}
	return nil
}

// registerCustomValidators registers the plan-specific validation tags.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}
