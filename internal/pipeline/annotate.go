package pipeline

import (
	"image"
	"math"
	"strings"

	"score-scan/internal/layout"
	"score-scan/internal/music"
	"score-scan/internal/ocr"
	"score-scan/internal/raster"
	"score-scan/pkg/geometry"
)

// minBandHeight is the smallest annotation band worth an OCR call.
const minBandHeight = 8

// attachChords OCRs the chord band above a system and attaches each
// chord symbol to the nearest note event by x-centre. Events that
// already carry a chord (jianpu inline association) keep theirs.
func attachChords(client ocr.Client, canvas *image.Gray, band layout.Band, events []music.Event) {
	if band.Height() < minBandHeight {
		return
	}
	words := bandWords(client, canvas, band, ocr.Options{
		Language: ocr.LangEnglish,
		Mode:     ocr.SparseText,
	})
	for _, w := range words {
		if !music.IsChordSymbol(w.Text) {
			continue
		}
		if i := nearestNote(events, w.CenterX()); i >= 0 && events[i].Chord == "" {
			events[i].Chord = music.NormalizeChordSymbol(w.Text)
		}
	}
}

// attachTechniques OCRs the band between a staff and its tab and maps
// the marks onto the nearest note: H hammer-on, P pull-off, S or a
// slash slide, B or a tilde bend.
func attachTechniques(client ocr.Client, canvas *image.Gray, band layout.Band, events []music.Event) {
	if band.Height() < minBandHeight {
		return
	}
	words := bandWords(client, canvas, band, ocr.Options{
		Language:  ocr.LangEnglish,
		Mode:      ocr.SparseText,
		Whitelist: ocr.TechniqueChars,
	})
	for _, w := range words {
		tech := parseTechnique(w.Text)
		if tech == music.NoTechnique {
			continue
		}
		if i := nearestNote(events, w.CenterX()); i >= 0 && events[i].Technique == music.NoTechnique {
			events[i].Technique = tech
		}
	}
}

// bandWords crops a horizontal band and returns the OCR words in it.
// OCR failures on annotation bands are swallowed; annotations are
// best-effort extras.
func bandWords(client ocr.Client, canvas *image.Gray, band layout.Band, opts ocr.Options) []ocr.Word {
	b := canvas.Bounds()
	region := raster.Crop(canvas, geometry.RectInt{X0: 0, Y0: band.Top, X1: b.Dx(), Y1: band.Bottom})
	if region.Bounds().Empty() {
		return nil
	}
	res, err := client.Recognize(region, opts)
	if err != nil {
		return nil
	}
	return res.Words
}

// parseTechnique maps a technique mark to its kind by first significant
// character.
func parseTechnique(text string) music.Technique {
	t := strings.TrimSpace(text)
	if t == "" {
		return music.NoTechnique
	}
	switch t[0] {
	case 'H', 'h':
		return music.Hammer
	case 'P', 'p':
		return music.Pull
	case 'S', 's', '/', '\\':
		return music.Slide
	case 'B', 'b', '~':
		return music.Bend
	}
	return music.NoTechnique
}

// nearestNote returns the index of the note event whose x-centre is
// closest to x, or -1 when the slice has no notes.
func nearestNote(events []music.Event, x float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, ev := range events {
		if ev.Kind != music.KindNote {
			continue
		}
		if d := math.Abs(ev.X - x); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
