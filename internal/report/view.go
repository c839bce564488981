package report

import (
	"github.com/dgallion1/splinegest/internal/collada"
	"github.com/go-gl/mathgl/mgl64"
)

// SplineView is the serialized form of a spline with points already scaled.
type SplineView struct {
	Index  int          `json:"index"`
	ID     string       `json:"id"`
	Name   *string      `json:"name"`
	Points []mgl64.Vec3 `json:"points"`
	Length float64      `json:"length"`
}

// DisplayName returns the scene name, or the geometry id when the spline is
// unnamed or its name is empty.
func (v SplineView) DisplayName() string {
	return collada.Geometry{ID: v.ID, Name: v.Name}.DisplayName()
}

// ClampScale raises scale to collada.MinUnitScale when it is smaller.
func ClampScale(scale float64) float64 {
	if scale < collada.MinUnitScale {
		return collada.MinUnitScale
	}
	return scale
}

// ViewOf builds the view of g at position index.
func ViewOf(index int, g collada.Geometry, scale float64) SplineView {
	scale = ClampScale(scale)
	return SplineView{
		Index:  index,
		ID:     g.ID,
		Name:   g.Name,
		Points: g.Scaled(scale),
		Length: g.Length() * scale,
	}
}

// Views builds views for geoms in order. The result is never nil.
func Views(geoms []collada.Geometry, scale float64) []SplineView {
	out := make([]SplineView, 0, len(geoms))
	for i, g := range geoms {
		out = append(out, ViewOf(i, g, scale))
	}
	return out
}
