package staff

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"score-scan/internal/music"
)

var fiveLines = []int{40, 50, 60, 70, 80}

func drawStaff(g *image.Gray) {
	b := g.Bounds()
	for _, y := range fiveLines {
		for x := 0; x < b.Dx(); x++ {
			g.Pix[g.PixOffset(x, y)] = 0
		}
	}
}

// drawEllipse draws a filled ellipse; with hole it leaves a hollow core.
func drawEllipse(g *image.Gray, cx, cy int, rx, ry float64, hole bool) {
	for dy := -int(ry); dy <= int(ry); dy++ {
		for dx := -int(rx); dx <= int(rx); dx++ {
			fx, fy := float64(dx)/rx, float64(dy)/ry
			if fx*fx+fy*fy > 1 {
				continue
			}
			if hole {
				hx, hy := float64(dx)/(rx-2), float64(dy)/(ry-2)
				if hx*hx+hy*hy <= 1 {
					continue
				}
			}
			g.Pix[g.PixOffset(cx+dx, cy+dy)] = 0
		}
	}
}

func drawBar(g *image.Gray, x, y0, y1 int) {
	for y := y0; y <= y1; y++ {
		g.Pix[g.PixOffset(x, y)] = 0
	}
}

func TestRecognizeFilledAndHollowHeads(t *testing.T) {
	g := whiteCanvas(300, 150)
	drawStaff(g)
	drawEllipse(g, 100, 60, 6, 4, false) // on the middle line: B4
	drawEllipse(g, 140, 65, 6, 4, true)  // in the gap below: A4, hollow
	drawBar(g, 200, 40, 80)

	events, err := New(music.Treble).Recognize(g, fiveLines, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, music.KindNote, events[0].Kind)
	assert.Equal(t, uint8(71), events[0].MIDI, "middle line of the treble staff is B4")
	assert.Equal(t, music.Quarter, events[0].Duration, "filled head reads as quarter")
	assert.Equal(t, -1, events[0].String, "staff notes carry no tab source")

	assert.Equal(t, uint8(69), events[1].MIDI)
	assert.Equal(t, music.Half, events[1].Duration, "hollow head reads as half")

	assert.Equal(t, music.KindBarline, events[2].Kind)
	for i, ev := range events {
		assert.Equal(t, i, ev.Index)
	}
}

func TestRecognizeAccidentals(t *testing.T) {
	g := whiteCanvas(300, 150)
	drawStaff(g)
	drawEllipse(g, 100, 60, 6, 4, false)
	// Tall narrow glyph left of the head reads as a sharp.
	for y := 55; y <= 65; y++ {
		for x := 83; x <= 86; x++ {
			g.Pix[g.PixOffset(x, y)] = 0
		}
	}

	events, err := New(music.Treble).Recognize(g, fiveLines, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, music.Sharp, events[0].Accidental)
	assert.Equal(t, uint8(72), events[0].MIDI, "B4 raised a semitone")
}

func TestRecognizeFlat(t *testing.T) {
	g := whiteCanvas(300, 150)
	drawStaff(g)
	drawEllipse(g, 100, 60, 6, 4, false)
	// Taller and narrower than a sharp: a flat.
	for y := 53; y <= 66; y++ {
		for x := 84; x <= 86; x++ {
			g.Pix[g.PixOffset(x, y)] = 0
		}
	}

	events, err := New(music.Treble).Recognize(g, fiveLines, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, music.Flat, events[0].Accidental)
	assert.Equal(t, uint8(70), events[0].MIDI)
}

func TestRecognizeChordKeepsHighestHead(t *testing.T) {
	g := whiteCanvas(300, 150)
	drawStaff(g)
	drawEllipse(g, 100, 75, 6, 4, false) // F4 in the bottom gap
	drawEllipse(g, 101, 55, 6, 4, false) // C5 stacked above at the same x

	events, err := New(music.Treble).Recognize(g, fiveLines, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1, "stacked heads reduce to one note")
	assert.Equal(t, uint8(72), events[0].MIDI, "the highest pitch wins")
}

func TestRecognizeLedgerNote(t *testing.T) {
	g := whiteCanvas(300, 150)
	drawStaff(g)
	drawEllipse(g, 120, 85, 6, 4, false) // half a gap below the staff: D4

	events, err := New(music.Treble).Recognize(g, fiveLines, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint8(62), events[0].MIDI)
}

func TestRecognizeBassClef(t *testing.T) {
	g := whiteCanvas(300, 150)
	drawStaff(g)
	drawEllipse(g, 100, 80, 6, 4, false) // bottom line

	events, err := New(music.Bass).Recognize(g, fiveLines, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint8(43), events[0].MIDI, "bass staff bottom line is G2")
}

func TestRecognizeWrongLineCount(t *testing.T) {
	_, err := New(music.Treble).Recognize(whiteCanvas(100, 100), []int{10, 20}, 10, 0)
	assert.ErrorContains(t, err, "want 5")
}

func TestRecognizeIgnoresLineResidue(t *testing.T) {
	// A bare staff with no glyphs yields no events at all.
	g := whiteCanvas(300, 150)
	drawStaff(g)

	events, err := New(music.Treble).Recognize(g, fiveLines, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}
