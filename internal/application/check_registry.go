package application

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/pbcheck/infrastructure/checks"
	"github.com/ahrav/pbcheck/internal/ports"
	"github.com/ahrav/pbcheck/internal/schema"
)

// Verify interface compliance at compile time.
var _ ports.CheckRegistry = (*DefaultCheckRegistry)(nil)

// CheckDefaults carries what the built-in factories need beyond plan
// parameters: the field schema and the defaults command-line flags and
// pbcheck.yaml establish.
type CheckDefaults struct {
	Schema    *schema.Schema
	SchemaCfg checks.SchemaConfig
	Budget    checks.BudgetConfig
	Selection checks.SelectionConfig
}

// DefaultCheckDefaults uses the embedded schema and the checks' defaults.
func DefaultCheckDefaults() (CheckDefaults, error) {
	s, err := schema.Default()
	if err != nil {
		return CheckDefaults{}, err
	}
	return CheckDefaults{
		Schema:    s,
		SchemaCfg: checks.DefaultSchemaConfig(),
		Budget:    checks.DefaultBudgetConfig(),
		Selection: checks.DefaultSelectionConfig(),
	}, nil
}

// DefaultCheckRegistry implements the CheckRegistry interface providing
// a factory for creating checks based on type and configuration.
// It supports dynamic registration of check factories.
type DefaultCheckRegistry struct {
	// factories maps check type strings to their factory functions.
	factories map[string]ports.CheckFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
}

// NewDefaultCheckRegistry creates a new check registry with every built-in
// check type registered.
func NewDefaultCheckRegistry(defaults CheckDefaults) *DefaultCheckRegistry {
	registry := &DefaultCheckRegistry{
		factories: make(map[string]ports.CheckFactory),
	}
	registry.registerBuiltinFactories(defaults)
	return registry
}

// registerBuiltinFactories registers the checks provided by the
// checks package.
func (r *DefaultCheckRegistry) registerBuiltinFactories(d CheckDefaults) {
	r.factories[checks.TypeParseNotes] = checks.NewParseNotesFromConfig
	r.factories[checks.TypeTally] = checks.NewTallyFromConfig
	r.factories[checks.TypeDateRange] = checks.NewDateRangeFromConfig
	r.factories[checks.TypeNumberFormat] = checks.NewNumberFormatFromConfig
	r.factories[checks.TypeCounts] = checks.NewCountsFromConfig
	r.factories[checks.TypeVoteLength] = checks.NewVoteLengthFromConfig
	r.factories[checks.TypeVotesConsistency] = checks.NewVotesConsistencyFromConfig

	r.factories[checks.TypeSchema] = checks.SchemaFactory(d.Schema, d.SchemaCfg)
	r.factories[checks.TypeBudget] = checks.BudgetFactory(d.Budget)
	r.factories[checks.TypeSelection] = checks.SelectionFactory(d.Selection)
}

// CreateCheck creates a new check instance based on the provided type,
// identifier, and configuration.
func (r *DefaultCheckRegistry) CreateCheck(
	checkType string,
	id string,
	config map[string]any,
) (ports.Check, error) {
	r.mu.RLock()
	factory, exists := r.factories[checkType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported check type: %s", checkType)
	}

	if id == "" {
		return nil, fmt.Errorf("check ID cannot be empty")
	}

	if config == nil {
		config = make(map[string]any)
	}

	check, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create check %s of type %s: %w", id, checkType, err)
	}

	return check, nil
}

// RegisterCheckFactory registers a new factory function for a specific
// check type, replacing any existing one.
func (r *DefaultCheckRegistry) RegisterCheckFactory(
	checkType string,
	factory ports.CheckFactory,
) error {
	if checkType == "" {
		return fmt.Errorf("check type cannot be empty")
	}

	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[checkType] = factory
	return nil
}

// SupportedTypes returns all registered check types in sorted order.
func (r *DefaultCheckRegistry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for checkType := range r.factories {
		types = append(types, checkType)
	}
	slices.Sort(types)
	return types
}
