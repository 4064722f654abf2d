package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/entityframe/internal/cli/ui"
	"github.com/conduit-lang/entityframe/internal/orm/metadata"
	"github.com/conduit-lang/entityframe/internal/orm/relational"
)

var modelFileFlag string

// NewModelCommand creates the model command
func NewModelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect the entity model",
		Long: `Build the entity model from its YAML definition and inspect it.

The definition file defaults to model.file in entityframe.yml (model.yml).`,
		Example: `  # Check the model for errors
  entityframe model validate

  # List entity types
  entityframe model show

  # Show one entity type from another definition
  entityframe model show Order -f models/shop.yml`,
	}

	cmd.PersistentFlags().StringVarP(&modelFileFlag, "file", "f", "", "Model definition file")

	cmd.AddCommand(newModelValidateCommand())
	cmd.AddCommand(newModelShowCommand())

	return cmd
}

func newModelValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Build the model and report every problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := buildModelForCommand(cmd)
			if err != nil {
				return err
			}

			relationships := 0
			for _, et := range m.EntityTypes() {
				relationships += len(et.ForeignKeys())
			}
			ui.WriteSuccess(cmd.OutOrStdout(),
				fmt.Sprintf("Model is valid: %d entity types, %d relationships", len(m.EntityTypes()), relationships),
				noColor)
			return nil
		},
	}
}

func newModelShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [entity]",
		Short: "Show entity types, or the mapping of one entity type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := buildModelForCommand(cmd)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				showEntityTypes(cmd, m)
				return nil
			}

			et := m.FindEntityType(args[0])
			if et == nil {
				names := make([]string, 0, len(m.EntityTypes()))
				for _, candidate := range m.EntityTypes() {
					names = append(names, candidate.Name())
				}
				fmt.Fprint(cmd.ErrOrStderr(), ui.EntityNotFoundError(args[0], ui.FindSimilar(args[0], names, nil), noColor))
				return fmt.Errorf("unknown entity type %q", args[0])
			}
			showEntityType(cmd, et)
			return nil
		},
	}
}

// buildModelForCommand loads the configured model, printing each problem on failure
func buildModelForCommand(cmd *cobra.Command) (*metadata.Model, error) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), noColor))
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	path := cfg.Model.File
	if modelFileFlag != "" {
		path = modelFileFlag
	}

	m, err := loadModel(path, logger)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ModelError(fmt.Sprintf("%s could not be built", path), modelErrorDetails(err), noColor))
		return nil, fmt.Errorf("model validation failed")
	}
	return m, nil
}

func showEntityTypes(cmd *cobra.Command, m *metadata.Model) {
	table := ui.NewTable(cmd.OutOrStdout(), []string{"Entity", "Table", "Key", "Properties", "Relationships"}, &ui.TableOptions{NoColor: noColor})
	for _, et := range m.EntityTypes() {
		key := "-"
		if pk := et.FindPrimaryKey(); pk != nil {
			key = metadata.PropertyNames(pk.Properties())
		}
		table.AddRow(
			et.Name(),
			metadata.TableName(et),
			key,
			strconv.Itoa(len(et.Properties())),
			strconv.Itoa(len(et.ForeignKeys())+len(m.FindReferencingForeignKeys(et))),
		)
	}
	table.Render()
}

func showEntityType(cmd *cobra.Command, et *metadata.EntityType) {
	out := cmd.OutOrStdout()

	ui.Header(out, et.Name(), noColor)
	kv := ui.NewKeyValueTable(out, noColor)
	kv.AddRow("Table", metadata.TableName(et))
	if pk := et.FindPrimaryKey(); pk != nil {
		kv.AddRow("Primary key", metadata.PropertyNames(pk.Properties()))
	}
	for _, key := range et.Keys() {
		if !key.IsPrimaryKey() {
			kv.AddRow("Alternate key", metadata.PropertyNames(key.Properties()))
		}
	}
	if et.IsShadow() {
		kv.AddRow("Shadow", "yes")
	}
	kv.Render()
	fmt.Fprintln(out)

	props := ui.NewTable(out, []string{"Property", "Column", "Type", "Nullable", "Flags"}, &ui.TableOptions{NoColor: noColor})
	for _, p := range et.Properties() {
		storeType := "?"
		if st, err := relational.StoreTypeOf(p.GoType()); err == nil {
			storeType = string(st)
		}
		if n, ok := p.MaxLength(); ok {
			storeType = fmt.Sprintf("%s(%d)", storeType, n)
		}
		nullable := "no"
		if p.IsNullable() {
			nullable = "yes"
		}
		props.AddRow(p.Name(), metadata.ColumnName(p), storeType, nullable, strings.Join(propertyFlags(p), ","))
	}
	props.Render()

	if fks := et.ForeignKeys(); len(fks) > 0 {
		fmt.Fprintln(out)
		color.New(color.Bold).Fprintln(out, "Foreign keys")
		for _, fk := range fks {
			required := "optional"
			if fk.IsRequired() {
				required = "required"
			}
			fmt.Fprintf(out, "  (%s) -> %s(%s) %s, on delete %s\n",
				metadata.PropertyNames(fk.Properties()),
				fk.PrincipalEntityType().Name(),
				metadata.PropertyNames(fk.PrincipalKey().Properties()),
				required,
				fk.DeleteBehavior())
		}
	}

	if navs := et.Navigations(); len(navs) > 0 {
		fmt.Fprintln(out)
		color.New(color.Bold).Fprintln(out, "Navigations")
		for _, nav := range navs {
			target := nav.TargetEntityType().Name()
			if nav.IsCollection() {
				target = "[]" + target
			}
			fmt.Fprintf(out, "  %s %s\n", nav.Name(), target)
		}
	}

	if indexes := et.Indexes(); len(indexes) > 0 {
		fmt.Fprintln(out)
		color.New(color.Bold).Fprintln(out, "Indexes")
		for _, idx := range indexes {
			unique := ""
			if idx.IsUnique() {
				unique = " unique"
			}
			fmt.Fprintf(out, "  (%s)%s\n", metadata.PropertyNames(idx.Properties()), unique)
		}
	}
}

func propertyFlags(p *metadata.Property) []string {
	var flags []string
	if p.IsPrimaryKey() {
		flags = append(flags, "pk")
	}
	if p.IsForeignKey() {
		flags = append(flags, "fk")
	}
	if p.IsShadow() {
		flags = append(flags, "shadow")
	}
	if p.IsConcurrencyToken() {
		flags = append(flags, "concurrency")
	}
	if p.GenerateValueOnAdd() {
		flags = append(flags, "generated")
	}
	return flags
}
