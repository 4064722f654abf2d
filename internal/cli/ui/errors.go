package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Details      []string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError renders a message with optional details, suggestions and help commands
//
// Example output:
//
//	✗ ENTITY NOT FOUND: Cannot find entity type 'Ordr'.
//
//	   Did you mean: Order, OrderDetail?
//
//	   → List entity types: entityframe model show
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var header, body *color.Color
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		header, body, symbol = newColor(opts.NoColor, color.FgYellow, color.Bold), newColor(opts.NoColor, color.FgYellow), "!"
	case ErrorLevelInfo:
		header, body, symbol = newColor(opts.NoColor, color.FgCyan, color.Bold), newColor(opts.NoColor, color.FgCyan), "i"
	default:
		header, body, symbol = newColor(opts.NoColor, color.FgRed, color.Bold), newColor(opts.NoColor, color.FgRed), "✗"
	}

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Details) > 0 {
		b.WriteString("\n")
		for _, detail := range opts.Details {
			for _, line := range strings.Split(detail, "\n") {
				body.Fprintf(&b, "   %s\n", line)
			}
		}
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		newColor(opts.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := newColor(opts.NoColor, color.FgCyan)
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted message to w
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	return newColor(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to w
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// EntityNotFoundError reports an unknown entity type name
func EntityNotFoundError(name string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:     "entity not found",
		Problem:     fmt.Sprintf("Cannot find entity type '%s'.", name),
		Suggestions: suggestions,
		HelpCommands: []string{
			"List entity types: entityframe model show",
		},
		NoColor: noColor,
	})
}

// ModelError reports a model that failed to load or validate. Each detail is one problem.
func ModelError(message string, details []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "invalid model",
		Problem: message,
		Details: details,
		HelpCommands: []string{
			"Validate the model: entityframe model validate",
		},
		NoColor: noColor,
	})
}

// MigrationError reports a failed migration command
func MigrationError(message string, details []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "migration failed",
		Problem: message,
		Details: details,
		HelpCommands: []string{
			"Check migration status: entityframe migrate status",
			"Roll back: entityframe migrate down",
		},
		NoColor: noColor,
	})
}

// ConfigError reports an invalid configuration
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "configuration error",
		Problem: message,
		HelpCommands: []string{
			"View config: cat entityframe.yml",
			"Get help: entityframe --help",
		},
		NoColor: noColor,
	})
}

// Warning creates a warning message
func Warning(message string, details []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelWarning,
		Problem: message,
		Details: details,
		NoColor: noColor,
	})
}

// Info creates an info message
func Info(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelInfo,
		Problem: message,
		NoColor: noColor,
	})
}
