package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/pbcheck/internal/application"
	"github.com/ahrav/pbcheck/internal/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	var plan bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the effective field schema",
		Long: `Prints the field schema files are validated against as YAML: the
embedded schema, or schema_file when configured. With --plan, prints the
check plan in use instead.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if plan {
				data := application.DefaultPlanYAML()
				if a.cfg.PlanFile != "" {
					var err error
					if data, err = os.ReadFile(a.cfg.PlanFile); err != nil {
						return fmt.Errorf("failed to read plan: %w", err)
					}
				}
				_, err := a.stdout.Write(data)
				return err
			}

			s, err := schema.Default()
			if a.cfg.SchemaFile != "" {
				s, err = schema.LoadFile(a.cfg.SchemaFile)
			}
			if err != nil {
				return err
			}
			return s.Encode(a.stdout)
		},
	}
	cmd.Flags().BoolVar(&plan, "plan", false, "print the check plan")
	return cmd
}
