package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/entityframe/internal/cli/ui"
	"github.com/conduit-lang/entityframe/internal/orm/codegen"
	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

var (
	ddlDialectFlag string
	ddlOutputFlag  string
)

// NewDDLCommand creates the ddl command
func NewDDLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print the CREATE statements for the model",
		Long: `Generate the DDL that creates every table, constraint and index of the model.

Tables are ordered so that referenced tables are created first.`,
		Example: `  # PostgreSQL DDL for model.yml
  entityframe ddl

  # SQLite DDL written to a file
  entityframe ddl --dialect sqlite -o schema.sql`,
		Args: cobra.NoArgs,
		RunE: runDDL,
	}

	cmd.Flags().StringVarP(&modelFileFlag, "file", "f", "", "Model definition file")
	cmd.Flags().StringVar(&ddlDialectFlag, "dialect", "", "SQL dialect: postgres or sqlite (default from config)")
	cmd.Flags().StringVarP(&ddlOutputFlag, "output", "o", "", "Write the DDL to a file instead of stdout")

	return cmd
}

func runDDL(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), noColor))
		return err
	}
	dialect, err := resolveDialect(cfg, ddlDialectFlag)
	if err != nil {
		return err
	}

	m, err := buildModelForCommand(cmd)
	if err != nil {
		return err
	}
	schema, err := relational.FromModel(m)
	if err != nil {
		return fmt.Errorf("failed to map model to tables: %w", err)
	}

	ddl, err := codegen.NewDDLGenerator(dialect).GenerateSchema(schema)
	if err != nil {
		return fmt.Errorf("failed to generate DDL: %w", err)
	}

	if ddlOutputFlag == "" {
		fmt.Fprint(cmd.OutOrStdout(), ddl)
		return nil
	}
	if err := os.WriteFile(ddlOutputFlag, []byte(ddl), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ddlOutputFlag, err)
	}
	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Wrote %s DDL for %d tables to %s", dialect.Name(), len(schema.Tables), ddlOutputFlag), noColor)
	return nil
}
