package staff

import (
	"image"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"score-scan/pkg/geometry"
)

func whiteCanvas(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}

func fillRect(g *image.Gray, r geometry.RectInt) {
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			g.Pix[g.PixOffset(x, y)] = 0
		}
	}
}

func TestFindComponentsSeparateBlobs(t *testing.T) {
	g := whiteCanvas(40, 30)
	fillRect(g, geometry.NewRectInt(2, 2, 4, 4))
	fillRect(g, geometry.NewRectInt(20, 10, 6, 3))

	components := FindComponents(g)
	require.Len(t, components, 2)
	sort.Slice(components, func(i, j int) bool { return components[i].CentroidX < components[j].CentroidX })

	a := components[0]
	assert.Equal(t, 16, a.Area)
	assert.Equal(t, geometry.RectInt{X0: 2, Y0: 2, X1: 6, Y1: 6}, a.Box)
	assert.InDelta(t, 3.5, a.CentroidX, 1e-9)
	assert.InDelta(t, 3.5, a.CentroidY, 1e-9)

	b := components[1]
	assert.Equal(t, 18, b.Area)
	assert.Equal(t, 6, b.Width())
	assert.Equal(t, 3, b.Height())
	assert.InDelta(t, 2.0, b.Aspect(), 1e-9)
	assert.InDelta(t, 1.0, b.Fill(), 1e-9)
}

func TestFindComponentsEightConnected(t *testing.T) {
	// Two pixels touching only diagonally form one component.
	g := whiteCanvas(10, 10)
	g.Pix[g.PixOffset(3, 3)] = 0
	g.Pix[g.PixOffset(4, 4)] = 0

	components := FindComponents(g)
	require.Len(t, components, 1)
	assert.Equal(t, 2, components[0].Area)
}

func TestFindComponentsMergesUShape(t *testing.T) {
	// A U shape first gets two provisional labels that the union-find
	// must merge when the bottom row connects them.
	g := whiteCanvas(12, 12)
	fillRect(g, geometry.NewRectInt(2, 2, 2, 6)) // left arm
	fillRect(g, geometry.NewRectInt(6, 2, 2, 6)) // right arm
	fillRect(g, geometry.NewRectInt(2, 8, 6, 2)) // bottom

	components := FindComponents(g)
	require.Len(t, components, 1)
	assert.Equal(t, 12+12+12, components[0].Area)
	assert.Equal(t, geometry.RectInt{X0: 2, Y0: 2, X1: 8, Y1: 10}, components[0].Box)
}

func TestFindComponentsEmpty(t *testing.T) {
	assert.Empty(t, FindComponents(whiteCanvas(5, 5)))
	assert.Empty(t, FindComponents(image.NewGray(image.Rect(0, 0, 0, 0))))
}

func TestCircularity(t *testing.T) {
	// A filled disc scores near 1, a thin bar scores low.
	disc := Component{Area: 69, Box: geometry.NewRectInt(0, 0, 9, 9)}
	assert.Greater(t, disc.Circularity(), 0.8)

	bar := Component{Area: 20, Box: geometry.NewRectInt(0, 0, 1, 20)}
	assert.Less(t, bar.Circularity(), 0.4)
}
