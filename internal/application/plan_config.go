package application

import (
	"gopkg.in/yaml.v3"
)

// PlanConfig defines the complete specification of a check plan: which
// checks run on every file and in what topology.
type PlanConfig struct {
	// Version specifies the plan schema version using semantic versioning.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the plan.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Checks defines the individual checks of the plan, each with its own
	// parameters.
	Checks []CheckConfig `yaml:"checks" validate:"required,min=1,dive"`
	// Plan specifies the execution topology that determines how checks are
	// grouped and the order in which the groups run.
	Plan PlanTopology `yaml:"plan" validate:"required"`
}

// Metadata provides descriptive information about a check plan.
type Metadata struct {
	// Name is the human-readable identifier for this plan.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains what the plan is for.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags are categorical labels for grouping plans.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
}

// CheckConfig defines a single check within a plan.
type CheckConfig struct {
	// ID is the unique identifier for this check within the plan and must
	// be alphanumeric for safe referencing in the topology.
	ID string `yaml:"id" validate:"required,alphanum,min=1,max=100"`
	// Type names the registered check implementation to instantiate.
	Type string `yaml:"type" validate:"required,min=1,max=100"`
	// Parameters contains type-specific configuration that is validated
	// according to the check type.
	Parameters yaml.Node `yaml:"parameters"`
}

// PlanTopology specifies the structure of a plan: sequential pipelines,
// concurrent layers and the edges between them.
type PlanTopology struct {
	// Pipelines define sequential chains where each check's output feeds
	// the next.
	Pipelines []PipelineConfig `yaml:"pipelines" validate:"dive"`
	// Layers define groups of independent checks that run concurrently on
	// the same input.
	Layers []LayerConfig `yaml:"layers" validate:"dive"`
	// Edges specify which node must finish before another starts.
	Edges []EdgeConfig `yaml:"edges" validate:"dive"`
}

// PipelineConfig defines a sequential chain of checks.
type PipelineConfig struct {
	// ID is the unique identifier for this pipeline within the plan.
	ID string `yaml:"id" validate:"required,alphanum,min=1,max=100"`
	// Checks lists check IDs in execution order.
	Checks []string `yaml:"checks" validate:"required,min=1,dive,alphanum"`
}

// LayerConfig defines a group of checks that run concurrently.
type LayerConfig struct {
	// ID is the unique identifier for this layer within the plan.
	ID string `yaml:"id" validate:"required,alphanum,min=1,max=100"`
	// Checks lists the check IDs of the layer. Their findings are merged
	// in this order.
	Checks []string `yaml:"checks" validate:"required,min=2,dive,alphanum"`
}

// EdgeConfig makes To wait for From.
type EdgeConfig struct {
	// From identifies the node (check, pipeline or layer) that must
	// complete first.
	From string `yaml:"from" validate:"required,alphanum"`
	// To identifies the node that runs afterwards.
	To string `yaml:"to" validate:"required,alphanum"`
}
