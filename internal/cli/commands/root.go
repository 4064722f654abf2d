package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var (
	configFile string
	noColor    bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "entityframe",
		Short: "Entity model, schema and migration tooling",
		Long: color.CyanString(`EntityFrame - entity models for relational databases

EntityFrame builds a validated entity model from a YAML definition, maps it to
tables, and keeps the database in step through generated migrations.

Features:
  • Conventions for keys, foreign keys and indexes
  • PostgreSQL and SQLite DDL
  • Snapshot-based migration diffs
  • Async query reproduction harness`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default entityframe.yml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewModelCommand())
	rootCmd.AddCommand(NewDDLCommand())
	rootCmd.AddCommand(NewMigrationsCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewDBCommand())
	rootCmd.AddCommand(NewReproCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the EntityFrame version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)

			titleColor.Fprint(out, "EntityFrame version: ")
			color.New(color.FgWhite).Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			color.New(color.FgWhite).Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			color.New(color.FgWhite).Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			color.New(color.FgWhite).Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
