// Package layout groups detected line work into ordered systems: lone
// staves, lone tabs, paired staff+tab blocks, and jianpu text rows.
package layout

import (
	"image"

	"score-scan/internal/staffline"
)

// SystemType identifies what notation a system carries.
type SystemType int

const (
	Staff SystemType = iota
	Tab
	StaffTab
	Jianpu
)

// String returns the system type name.
func (t SystemType) String() string {
	switch t {
	case Tab:
		return "tab"
	case StaffTab:
		return "staff+tab"
	case Jianpu:
		return "jianpu"
	}
	return "staff"
}

// Band is a horizontal strip of the page, top inclusive, bottom exclusive.
type Band struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// Height returns the band height.
func (b Band) Height() int { return b.Bottom - b.Top }

// System is one unit of recognition work in document order.
type System struct {
	Type SystemType

	TopY    int
	BottomY int

	StaffLines   []int
	StaffSpacing float64
	TabLines     []int
	TabSpacing   float64

	// ChordBand is the strip above the system where chord symbols print.
	ChordBand Band
	// TechniqueBand sits between staff bottom and tab top; only set for
	// StaffTab systems.
	TechniqueBand *Band
}

// spacingHint returns a characteristic vertical unit for band sizing.
func (s *System) spacingHint() float64 {
	switch {
	case s.StaffSpacing > 0:
		return s.StaffSpacing
	case s.TabSpacing > 0:
		return s.TabSpacing
	default:
		h := float64(s.BottomY-s.TopY) / 4
		if h < 1 {
			h = 1
		}
		return h
	}
}

// maxStaffTabGapFactor bounds the gap between a staff and the tab below
// it for the pair to count as one system, in staff spacings.
const maxStaffTabGapFactor = 3.0

// GroupSystems pairs line groups into typed systems. A Staff5
// immediately above a Tab6 within three staff spacings (inclusive)
// becomes one StaffTab system; everything else maps one group to one
// system.
func GroupSystems(groups []staffline.LineGroup) []System {
	var systems []System
	for i := 0; i < len(groups); i++ {
		g := groups[i]
		if g.Kind == staffline.Staff5 && i+1 < len(groups) {
			next := groups[i+1]
			gap := float64(next.Top - g.Bottom)
			if next.Kind == staffline.Tab6 && gap > 0 && gap <= maxStaffTabGapFactor*g.Spacing {
				systems = append(systems, System{
					Type:         StaffTab,
					TopY:         g.Top,
					BottomY:      next.Bottom,
					StaffLines:   g.Lines,
					StaffSpacing: g.Spacing,
					TabLines:     next.Lines,
					TabSpacing:   next.Spacing,
					TechniqueBand: &Band{
						Top:    g.Bottom + 1,
						Bottom: next.Top,
					},
				})
				i++
				continue
			}
		}
		switch g.Kind {
		case staffline.Staff5:
			systems = append(systems, System{
				Type:         Staff,
				TopY:         g.Top,
				BottomY:      g.Bottom,
				StaffLines:   g.Lines,
				StaffSpacing: g.Spacing,
			})
		case staffline.Tab6:
			systems = append(systems, System{
				Type:       Tab,
				TopY:       g.Top,
				BottomY:    g.Bottom,
				TabLines:   g.Lines,
				TabSpacing: g.Spacing,
			})
		}
	}
	ComputeChordBands(systems)
	return systems
}

// ComputeChordBands assigns each system the strip above it, extending
// from max(previous system bottom, topY - 3 spacings) down to its top.
func ComputeChordBands(systems []System) {
	prevBottom := 0
	for i := range systems {
		s := &systems[i]
		top := s.TopY - int(3*s.spacingHint())
		if top < prevBottom {
			top = prevBottom
		}
		if top < 0 {
			top = 0
		}
		s.ChordBand = Band{Top: top, Bottom: s.TopY}
		prevBottom = s.BottomY
	}
}

// Jianpu row detection thresholds: rows whose black fraction exceeds
// jianpuRowInk delimit text regions; regions closer than jianpuRowMerge
// pixels merge into one.
const (
	jianpuRowInk   = 0.02
	jianpuRowMerge = 15
)

// JianpuRows segments an image with no detected line groups into
// horizontal text regions, one Jianpu system per region.
func JianpuRows(g *image.Gray) []System {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	type region struct{ top, bottom int }
	var regions []region
	start := -1
	for y := 0; y <= h; y++ {
		inked := false
		if y < h {
			black := 0
			row := g.Pix[g.PixOffset(0, y) : g.PixOffset(0, y)+w]
			for _, v := range row {
				if v < 128 {
					black++
				}
			}
			inked = float64(black)/float64(w) > jianpuRowInk
		}
		if inked {
			if start < 0 {
				start = y
			}
			continue
		}
		if start >= 0 {
			if n := len(regions); n > 0 && start-regions[n-1].bottom <= jianpuRowMerge {
				regions[n-1].bottom = y
			} else {
				regions = append(regions, region{top: start, bottom: y})
			}
			start = -1
		}
	}

	systems := make([]System, 0, len(regions))
	for _, r := range regions {
		systems = append(systems, System{
			Type:    Jianpu,
			TopY:    r.top,
			BottomY: r.bottom,
		})
	}
	ComputeChordBands(systems)
	return systems
}
