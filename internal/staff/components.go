package staff

import (
	"image"
	"math"

	"score-scan/pkg/geometry"
)

// Component is a connected region of black pixels.
type Component struct {
	Area      int
	Box       geometry.RectInt
	CentroidX float64
	CentroidY float64
}

// Width returns the bounding box width.
func (c Component) Width() int { return c.Box.Width() }

// Height returns the bounding box height.
func (c Component) Height() int { return c.Box.Height() }

// Aspect returns width over height.
func (c Component) Aspect() float64 {
	if c.Height() == 0 {
		return 0
	}
	return float64(c.Width()) / float64(c.Height())
}

// Fill returns the share of the bounding box covered by the component.
func (c Component) Fill() float64 {
	a := c.Box.Area()
	if a == 0 {
		return 0
	}
	return float64(c.Area) / float64(a)
}

// Circularity returns 4*pi*area / P^2 where P is the Ramanujan
// perimeter estimate of the bounding ellipse. 1 for a perfect circle.
func (c Component) Circularity() float64 {
	a := float64(c.Width()) / 2
	b := float64(c.Height()) / 2
	if a <= 0 || b <= 0 {
		return 0
	}
	p := math.Pi * (3*(a+b) - math.Sqrt((3*a+b)*(a+3*b)))
	if p == 0 {
		return 0
	}
	return 4 * math.Pi * float64(c.Area) / (p * p)
}

// FindComponents labels 8-connected black regions with the classical
// two-pass algorithm: provisional labels plus union-find on the first
// pass, resolution and accumulation on the second.
func FindComponents(g *image.Gray) []Component {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	labels := make([]int32, w*h)
	parent := []int32{0} // parent[0] unused; labels start at 1

	find := func(x int32) int32 {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int32) {
		ra, rb := find(a), find(b)
		if ra < rb {
			parent[rb] = ra
		} else if rb < ra {
			parent[ra] = rb
		}
	}

	// First pass: assign each black pixel the minimum label among its
	// already-visited neighbours (W, NW, N, NE), recording equivalences.
	for y := 0; y < h; y++ {
		row := g.Pix[g.PixOffset(0, y) : g.PixOffset(0, y)+w]
		for x := 0; x < w; x++ {
			if row[x] >= 128 {
				continue
			}
			var neighbours [4]int32
			n := 0
			if x > 0 && labels[y*w+x-1] != 0 {
				neighbours[n] = labels[y*w+x-1]
				n++
			}
			if y > 0 {
				if x > 0 && labels[(y-1)*w+x-1] != 0 {
					neighbours[n] = labels[(y-1)*w+x-1]
					n++
				}
				if labels[(y-1)*w+x] != 0 {
					neighbours[n] = labels[(y-1)*w+x]
					n++
				}
				if x < w-1 && labels[(y-1)*w+x+1] != 0 {
					neighbours[n] = labels[(y-1)*w+x+1]
					n++
				}
			}
			if n == 0 {
				label := int32(len(parent))
				parent = append(parent, label)
				labels[y*w+x] = label
				continue
			}
			minLabel := neighbours[0]
			for i := 1; i < n; i++ {
				if neighbours[i] < minLabel {
					minLabel = neighbours[i]
				}
			}
			labels[y*w+x] = minLabel
			for i := 0; i < n; i++ {
				if neighbours[i] != minLabel {
					union(neighbours[i], minLabel)
				}
			}
		}
	}

	// Second pass: resolve labels and accumulate per-component stats.
	type acc struct {
		area       int
		minX, minY int
		maxX, maxY int
		sumX, sumY float64
	}
	accs := make(map[int32]*acc)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			label := labels[y*w+x]
			if label == 0 {
				continue
			}
			root := find(label)
			a, ok := accs[root]
			if !ok {
				a = &acc{minX: x, minY: y, maxX: x, maxY: y}
				accs[root] = a
			}
			a.area++
			a.sumX += float64(x)
			a.sumY += float64(y)
			if x < a.minX {
				a.minX = x
			}
			if x > a.maxX {
				a.maxX = x
			}
			if y < a.minY {
				a.minY = y
			}
			if y > a.maxY {
				a.maxY = y
			}
		}
	}

	components := make([]Component, 0, len(accs))
	for _, a := range accs {
		components = append(components, Component{
			Area:      a.area,
			Box:       geometry.RectInt{X0: a.minX, Y0: a.minY, X1: a.maxX + 1, Y1: a.maxY + 1},
			CentroidX: a.sumX / float64(a.area),
			CentroidY: a.sumY / float64(a.area),
		})
	}
	return components
}
