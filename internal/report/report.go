// Package report renders an import summary as Markdown or HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dgallion1/splinegest/internal/collada"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

// Markdown builds a GFM summary table of geoms with lengths at scale.
func Markdown(title string, geoms []collada.Geometry, scale float64) string {
	scale = ClampScale(scale)
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escape(title))
	if len(geoms) == 0 {
		b.WriteString("No splines found.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%d splines, unit scale %g.\n\n", len(geoms), scale)
	b.WriteString("| # | Name | ID | Points | Length |\n")
	b.WriteString("|---:|---|---|---:|---:|\n")
	for i, g := range geoms {
		fmt.Fprintf(&b, "| %d | %s | %s | %d | %.3f |\n",
			i, escape(g.DisplayName()), escape(g.ID), len(g.Points), g.Length()*scale)
	}
	return b.String()
}

// HTML renders the Markdown summary to an HTML fragment.
func HTML(title string, geoms []collada.Geometry, scale float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(title, geoms, scale)), &buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// escape keeps names from breaking table cells or injecting markup.
func escape(s string) string {
	r := strings.NewReplacer(
		"|", `\|`,
		"<", "&lt;",
		">", "&gt;",
		"\n", " ",
		"\r", " ",
	)
	return r.Replace(s)
}
