package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/pbcheck/internal/ports"
)

//go:embed default_plan.yaml
var defaultPlan []byte

// DefaultPlanYAML returns the embedded default check plan.
func DefaultPlanYAML() []byte { return bytes.Clone(defaultPlan) }

// CheckWrapper decorates every check a loader creates, for example with
// metrics and tracing.
type CheckWrapper func(ports.Check) ports.Check

// PlanLoader parses, validates and compiles check plans into executable
// graphs. Compiled graphs are cached by the SHA-256 of the normalized plan.
type PlanLoader struct {
	// validator performs struct field validation of plan configurations.
	validator *validator.Validate
	// registry creates checks by type.
	registry ports.CheckRegistry
	// wrap, when set, decorates each created check.
	wrap CheckWrapper
	// cache stores compiled graphs indexed by SHA-256 of the normalized
	// plan. Cached graphs MUST NOT be mutated.
	cache map[string]*Graph
	// cacheMu provides thread-safe access to the cache map.
	cacheMu sync.RWMutex
	// sf prevents duplicate compilation when multiple goroutines request
	// the same plan simultaneously.
	sf singleflight.Group
}

// PlanLoaderOption configures a PlanLoader.
type PlanLoaderOption func(*PlanLoader)

// WithCheckWrapper decorates every check the loader creates with wrap.
func WithCheckWrapper(wrap CheckWrapper) PlanLoaderOption {
	return func(pl *PlanLoader) { pl.wrap = wrap }
}

// NewPlanLoader creates a plan loader backed by registry.
func NewPlanLoader(registry ports.CheckRegistry, opts ...PlanLoaderOption) (*PlanLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	pl := &PlanLoader{
		validator: v,
		registry:  registry,
		cache:     make(map[string]*Graph),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl, nil
}

// load parses data, then compiles it once per distinct normalized plan.
// The returned graph is shared and MUST NOT be mutated.
func (pl *PlanLoader) load(ctx context.Context, data []byte) (*Graph, error) {
	config, err := pl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	hash, err := pl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := pl.sf.Do(hash, func() (any, error) {
		if graph, ok := pl.getCachedGraph(hash); ok {
			return graph, nil
		}

		if err := pl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		graph, err := pl.buildGraph(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to build graph: %w", err)
		}

		pl.cacheGraph(hash, graph)
		return graph, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Graph), nil
}

// LoadDefault compiles the embedded default plan.
func (pl *PlanLoader) LoadDefault(ctx context.Context) (*Graph, error) {
	return pl.load(ctx, defaultPlan)
}

// LoadFromFile compiles the plan stored at path.
func (pl *PlanLoader) LoadFromFile(ctx context.Context, path string) (*Graph, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return pl.load(ctx, data)
}

// LoadFromReader compiles the plan read from r.
func (pl *PlanLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return pl.load(ctx, data)
}

// parseYAML decodes data strictly: unknown fields are errors.
func (pl *PlanLoader) parseYAML(data []byte) (*PlanConfig, error) {
	var config PlanConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

// validateConfig runs struct tag validation and then semantic validation.
func (pl *PlanLoader) validateConfig(config *PlanConfig) error {
	if err := pl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := pl.validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// validateSemantics enforces what struct tags cannot: globally unique node
// IDs, known check types, valid parameters, resolvable references and each
// check placed at most once.
func (pl *PlanLoader) validateSemantics(config *PlanConfig) error {
	allNodeIDs := make(map[string]string) // ID -> node kind for error messages.
	checkIDs := make(map[string]struct{})
	supported := pl.registry.SupportedTypes()

	for _, check := range config.Checks {
		if kind, exists := allNodeIDs[check.ID]; exists {
			return fmt.Errorf("duplicate ID %q: already used by %s", check.ID, kind)
		}
		allNodeIDs[check.ID] = "check"
		checkIDs[check.ID] = struct{}{}

		if !slices.Contains(supported, check.Type) {
			return fmt.Errorf("check %s: unsupported check type: %s", check.ID, check.Type)
		}
		if err := ValidateCheckParameters(check.Type, check.Parameters); err != nil {
			return fmt.Errorf("check %s parameter validation failed: %w", check.ID, err)
		}
	}

	placed := make(map[string]string)
	place := func(kind, groupID string, members []string) error {
		if existing, exists := allNodeIDs[groupID]; exists {
			return fmt.Errorf("duplicate ID %q: already used by %s", groupID, existing)
		}
		allNodeIDs[groupID] = kind

		for _, id := range members {
			if _, exists := checkIDs[id]; !exists {
				return fmt.Errorf("%s %s references non-existent check: %s", kind, groupID, id)
			}
			if other, exists := placed[id]; exists {
				return fmt.Errorf("check %s is placed in both %s and %s", id, other, groupID)
			}
			placed[id] = groupID
		}
		return nil
	}

	for _, p := range config.Plan.Pipelines {
		if err := place("pipeline", p.ID, p.Checks); err != nil {
			return err
		}
	}
	for _, l := range config.Plan.Layers {
		if err := place("layer", l.ID, l.Checks); err != nil {
			return err
		}
	}

	for _, edge := range config.Plan.Edges {
		if _, exists := allNodeIDs[edge.From]; !exists {
			return fmt.Errorf("edge references non-existent source node: %s", edge.From)
		}
		if _, exists := allNodeIDs[edge.To]; !exists {
			return fmt.Errorf("edge references non-existent target node: %s", edge.To)
		}
		if _, inGroup := placed[edge.From]; inGroup {
			return fmt.Errorf("edge source %s is inside %s; connect the group instead", edge.From, placed[edge.From])
		}
		if _, inGroup := placed[edge.To]; inGroup {
			return fmt.Errorf("edge target %s is inside %s; connect the group instead", edge.To, placed[edge.To])
		}
	}

	return nil
}

// buildGraph creates the checks through the registry, wraps them in
// adapters and assembles pipelines, layers, standalone checks and edges.
// Nodes are added in plan order so execution order is reproducible.
func (pl *PlanLoader) buildGraph(ctx context.Context, config *PlanConfig) (*Graph, error) {
	graph := NewGraph()

	adapters := make(map[string]*CheckAdapter, len(config.Checks))
	for _, cc := range config.Checks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		check, err := pl.createCheck(cc)
		if err != nil {
			return nil, fmt.Errorf("failed to create check %s: %w", cc.ID, err)
		}
		adapters[cc.ID] = NewCheckAdapter(check, cc.ID)
	}

	placed := make(map[string]struct{})

	for _, pc := range config.Plan.Pipelines {
		pipeline := NewPipeline(pc.ID)
		for _, id := range pc.Checks {
			if err := pipeline.Add(adapters[id]); err != nil {
				return nil, fmt.Errorf("failed to add check to pipeline: %w", err)
			}
			placed[id] = struct{}{}
		}
		if err := graph.AddNode(pipeline); err != nil {
			return nil, fmt.Errorf("failed to add pipeline to graph: %w", err)
		}
	}

	for _, lc := range config.Plan.Layers {
		layer := NewLayer(lc.ID)
		layer.SetMergeStrategy(FindingsMerge{})
		for _, id := range lc.Checks {
			if err := layer.Add(adapters[id]); err != nil {
				return nil, fmt.Errorf("failed to add check to layer: %w", err)
			}
			placed[id] = struct{}{}
		}
		if err := graph.AddNode(layer); err != nil {
			return nil, fmt.Errorf("failed to add layer to graph: %w", err)
		}
	}

	for _, cc := range config.Checks {
		if _, ok := placed[cc.ID]; ok {
			continue
		}
		if err := graph.AddNode(adapters[cc.ID]); err != nil {
			return nil, fmt.Errorf("failed to add check to graph: %w", err)
		}
	}

	for _, edge := range config.Plan.Edges {
		if err := graph.AddEdge(edge.From, edge.To); err != nil {
			return nil, fmt.Errorf("failed to add edge: %w", err)
		}
	}

	return graph, nil
}

// createCheck decodes the check's parameters and delegates to the
// registry, then applies the loader's wrapper.
func (pl *PlanLoader) createCheck(config CheckConfig) (ports.Check, error) {
	var params map[string]any
	if err := config.Parameters.Decode(&params); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}

	check, err := pl.registry.CreateCheck(config.Type, config.ID, params)
	if err != nil {
		return nil, err
	}
	if pl.wrap != nil {
		check = pl.wrap(check)
	}
	return check, nil
}

// calculateConfigHash hashes the re-encoded plan so that formatting and
// comments do not change the cache key.
func (pl *PlanLoader) calculateConfigHash(config *PlanConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (pl *PlanLoader) getCachedGraph(hash string) (*Graph, bool) {
	pl.cacheMu.RLock()
	defer pl.cacheMu.RUnlock()

	graph, ok := pl.cache[hash]
	return graph, ok
}

func (pl *PlanLoader) cacheGraph(hash string, graph *Graph) {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache[hash] = graph
}

// ClearCache drops every compiled graph.
func (pl *PlanLoader) ClearCache() {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache = make(map[string]*Graph)
}
