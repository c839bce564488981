package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dgallion1/splinegest/internal/collada"
	"github.com/dgallion1/splinegest/internal/export"
	"github.com/dgallion1/splinegest/internal/report"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// output is everything a format needs to print one import.
type output struct {
	title string
	tool  collada.Tool
	scale float64
	geoms []collada.Geometry
	views []report.SplineView
}

func validFormat(format string) bool {
	switch format {
	case "json", "markdown", "html", "table", "glb":
		return true
	}
	return false
}

func (c *CLI) write(format string, o output) error {
	switch format {
	case "json":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"file":    o.title,
			"tool":    o.tool,
			"scale":   o.scale,
			"splines": o.views,
		})
	case "markdown":
		_, err := fmt.Fprint(c.out, report.Markdown(o.title, o.geoms, o.scale))
		return err
	case "html":
		out, err := report.HTML(o.title, o.geoms, o.scale)
		if err != nil {
			return err
		}
		_, err = c.out.Write(out)
		return err
	case "table":
		_, err := fmt.Fprintln(c.out, renderTable(o.views))
		return err
	case "glb":
		return export.WriteGLB(c.out, o.views)
	}
	return fmt.Errorf("unknown format %q", format)
}

// renderTable lays out views as a bordered terminal table.
func renderTable(views []report.SplineView) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			strconv.Itoa(v.Index),
			v.DisplayName(),
			v.ID,
			strconv.Itoa(len(v.Points)),
			strconv.FormatFloat(v.Length, 'f', 3, 64),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Name", "ID", "Points", "Length").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.Render()
}
