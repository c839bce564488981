package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/splinegest/internal/collada"
	"github.com/dgallion1/splinegest/internal/parser"
	"github.com/dgallion1/splinegest/internal/report"
)

// parseOpts holds the command-line flags for the parse command.
type parseOpts struct {
	scale     float64
	format    string
	selectIdx int
	config    string
}

func (c *CLI) parseCommand() *cobra.Command {
	var opts parseOpts

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Extract splines from a COLLADA file",
		Long: `Extract the line-strip splines of a COLLADA file and print them.

Files exported by an unsupported authoring tool are reported and produce no
splines; this is not an error.`,
		Example: `  splinectl parse scene.dae
  splinectl parse scene.dae --scale 0.01 --format table
  splinectl parse scene.dae --select 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, unknown, err := loadSettings(opts.config)
			if err != nil {
				return err
			}
			for _, key := range unknown {
				c.Logger.Warn("ignoring unknown setting", "key", key)
			}
			if !cmd.Flags().Changed("scale") {
				opts.scale = settings.Scale
			}
			if !cmd.Flags().Changed("format") {
				opts.format = settings.Format
			}
			return c.runParse(args[0], opts)
		},
	}

	cmd.Flags().Float64Var(&opts.scale, "scale", 1, "unit scale applied to points and lengths")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format: json, markdown, html, table, glb")
	cmd.Flags().IntVar(&opts.selectIdx, "select", -1, "print only the spline at this index")
	cmd.Flags().StringVar(&opts.config, "config", "", "settings file (default ~/.config/splinegest/splinectl.toml)")

	return cmd
}

func (c *CLI) runParse(path string, opts parseOpts) error {
	logger := c.slogger().With("file", path)
	format := strings.ToLower(opts.format)
	if !validFormat(format) {
		return fmt.Errorf("unknown format %q (want json, markdown, html, table or glb)", opts.format)
	}

	p, err := parser.ForFile(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return err
	}
	logger.Debug("parsed document", "elements", doc.Root.Count())

	var tool collada.Tool
	var toolInfo string
	im := collada.Importer{
		OnPhase: func(ph collada.Phase) { logger.Debug("import phase", "phase", ph) },
		OnTool: func(t collada.Tool, info string) {
			tool, toolInfo = t, info
			logger.Debug("authoring tool", "tool", t, "info", info)
		},
	}
	geoms, err := im.Import(doc)
	if collada.IsSoft(err) {
		logger.Warn("authoring tool not supported", "info", toolInfo)
		fmt.Fprintf(c.out, "%s: unsupported authoring tool %q, no splines extracted\n", filepath.Base(path), toolInfo)
		return nil
	}
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	logger.Info("extracted splines", "tool", tool, "count", len(geoms))

	views := report.Views(geoms, opts.scale)
	if opts.selectIdx >= 0 {
		g, ok := collada.Select(geoms, opts.selectIdx)
		if !ok {
			return fmt.Errorf("no spline at index %d (found %d)", opts.selectIdx, len(geoms))
		}
		geoms = []collada.Geometry{g}
		views = views[opts.selectIdx : opts.selectIdx+1]
	}

	return c.write(format, output{
		title: filepath.Base(path),
		tool:  tool,
		scale: report.ClampScale(opts.scale),
		geoms: geoms,
		views: views,
	})
}
