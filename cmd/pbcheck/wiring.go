package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/pbcheck/infrastructure/checks"
	"github.com/ahrav/pbcheck/infrastructure/middleware"
	"github.com/ahrav/pbcheck/internal/application"
	"github.com/ahrav/pbcheck/internal/config"
	"github.com/ahrav/pbcheck/internal/ports"
	"github.com/ahrav/pbcheck/internal/schema"
	"github.com/ahrav/pbcheck/internal/source"
)

// checkDefaults derives what the built-in checks need from cfg.
func checkDefaults(cfg config.Config) (application.CheckDefaults, error) {
	defaults, err := application.DefaultCheckDefaults()
	if err != nil {
		return application.CheckDefaults{}, fmt.Errorf("failed to load field schema: %w", err)
	}
	if cfg.SchemaFile != "" {
		s, err := schema.LoadFile(cfg.SchemaFile)
		if err != nil {
			return application.CheckDefaults{}, ports.NewConfigError("schema_file", err)
		}
		defaults.Schema = s
	}

	rule := checks.RuleConfig{
		PartialThresholdUnits: cfg.Checks.PartialThresholdUnits,
		ThresholdFraction:     cfg.Checks.ThresholdFraction,
	}
	defaults.SchemaCfg.Exhaustive = cfg.Checks.ExhaustiveSchema
	defaults.Budget = checks.BudgetConfig{RuleConfig: rule, UnusedBudget: cfg.Checks.UnusedBudget}
	defaults.Selection = checks.SelectionConfig{RuleConfig: rule}
	return defaults, nil
}

// loadPlan compiles the check plan with every check instrumented.
func loadPlan(ctx context.Context, cfg config.Config, metrics ports.MetricsCollector) (*application.Graph, error) {
	defaults, err := checkDefaults(cfg)
	if err != nil {
		return nil, err
	}

	loader, err := application.NewPlanLoader(
		application.NewDefaultCheckRegistry(defaults),
		application.WithCheckWrapper(middleware.Instrument(metrics, middleware.NewOTelCheckObserver(nil))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan loader: %w", err)
	}

	if cfg.PlanFile != "" {
		plan, err := loader.LoadFromFile(ctx, cfg.PlanFile)
		if err != nil {
			return nil, ports.NewConfigError("plan_file", err)
		}
		return plan, nil
	}
	return loader.LoadDefault(ctx)
}

// openSource returns the bucket source when a bucket is configured and
// the directory source otherwise. Bucket reads are retried.
func openSource(ctx context.Context, cfg config.Config) (ports.Source, error) {
	if cfg.Bucket == "" {
		local, err := source.NewLocal(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	gcs, err := source.NewGCS(ctx, source.GCSConfig{
		Bucket:            cfg.Bucket,
		Prefix:            cfg.Prefix,
		Endpoint:          cfg.Storage.Endpoint,
		Anonymous:         cfg.Storage.Anonymous,
		RequestsPerSecond: cfg.Storage.RequestsPerSecond,
		Burst:             cfg.Storage.Burst,
	})
	if err != nil {
		return nil, err
	}
	return source.Chain(gcs, source.Retry(3, 200*time.Millisecond, 5*time.Second)), nil
}
