// Package cli implements the splinectl command-line interface.
//
// splinectl runs the same extraction as the server on local files and prints
// the result as JSON, Markdown, HTML or a terminal table. Logging goes to
// stderr through charmbracelet/log, exposed to the rest of the code as a
// *slog.Logger.
package cli

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	out    io.Writer
}

// New creates a CLI that prints results to out and logs to logw.
func New(out, logw io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(logw, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
		out: out,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// slogger adapts the terminal logger for packages that take a *slog.Logger.
func (c *CLI) slogger() *slog.Logger {
	return slog.New(c.Logger)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "splinectl",
		Short:         "splinectl extracts splines from COLLADA scenes",
		Long:          `splinectl reads COLLADA (.dae) exports, detects the authoring tool and prints the line-strip splines they contain.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(c.parseCommand())
	return root
}
