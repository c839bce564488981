package collada

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// MinUnitScale is the smallest scale factor Scaled accepts.
const MinUnitScale = 0.0001

// Geometry is one extracted spline: a line-strip geometry's id, the name of
// the scene node that instantiates it (nil when none does), and its vertices.
type Geometry struct {
	ID     string       `json:"id"`
	Name   *string      `json:"name"`
	Points []mgl64.Vec3 `json:"points"`
}

// DisplayName returns the resolved scene name, falling back to the id.
func (g Geometry) DisplayName() string {
	if g.Name != nil && *g.Name != "" {
		return *g.Name
	}
	return g.ID
}

// Scaled returns the points multiplied by scale. Scales below MinUnitScale
// are clamped to it.
func (g Geometry) Scaled(scale float64) []mgl64.Vec3 {
	if scale < MinUnitScale {
		scale = MinUnitScale
	}
	out := make([]mgl64.Vec3, len(g.Points))
	for i, p := range g.Points {
		out[i] = p.Mul(scale)
	}
	return out
}

// Length returns the total length of the polyline.
func (g Geometry) Length() float64 {
	var total float64
	for i := 1; i < len(g.Points); i++ {
		total += g.Points[i].Sub(g.Points[i-1]).Len()
	}
	return total
}

// Select returns the geometry at index. Negative or out-of-range indexes mean
// nothing is selected.
func Select(geoms []Geometry, index int) (Geometry, bool) {
	if index < 0 || index >= len(geoms) {
		return Geometry{}, false
	}
	return geoms[index], true
}

// DecodeFloatArray turns float_array text into points. Tokens are separated by
// single spaces and grouped in triplets; one or two trailing tokens are dropped.
// NaN and infinite values are malformed.
func DecodeFloatArray(text string) ([]mgl64.Vec3, error) {
	tokens := strings.Split(text, " ")
	if len(tokens) < 3 {
		return nil, fmt.Errorf("%w: %d values, need at least 3", ErrMalformedVertexData, len(tokens))
	}
	points := make([]mgl64.Vec3, len(tokens)/3)
	for i := range points {
		for axis := 0; axis < 3; axis++ {
			tok := tokens[i*3+axis]
			// Surrounding whitespace such as the newline before the first value is tolerated.
			v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: value %d %q is not a number", ErrMalformedVertexData, i*3+axis, tok)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: value %d %q is not finite", ErrMalformedVertexData, i*3+axis, tok)
			}
			points[i][axis] = v
		}
	}
	return points, nil
}
