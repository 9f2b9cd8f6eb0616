package tab

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"score-scan/internal/music"
	"score-scan/internal/ocr"
	"score-scan/pkg/geometry"
)

// fakeClient replays one canned result per Recognize call, in call
// order (the recognizer scans strings top to bottom).
type fakeClient struct {
	results []ocr.Result
	opts    []ocr.Options
	err     error
	calls   int
}

func (f *fakeClient) Recognize(img image.Image, opts ocr.Options) (ocr.Result, error) {
	f.opts = append(f.opts, opts)
	i := f.calls
	f.calls++
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return ocr.Result{}, nil
}

func (f *fakeClient) Close() error { return nil }

func whiteCanvas(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}

// word builds a fret word centred at x in upscaled strip coordinates.
func word(text string, x int, conf float64) ocr.Word {
	return ocr.Word{
		Text:       text,
		Box:        geometry.RectInt{X0: x - 8, Y0: 10, X1: x + 8, Y1: 50},
		Confidence: conf,
	}
}

var sixLines = []int{40, 60, 80, 100, 120, 140}

func TestRecognizeSingleDigit(t *testing.T) {
	// Digit 3 on string 1 (the B string): strips are 20 px tall here, so
	// the recognizer upscales by 4 and word boxes come back scaled.
	fake := &fakeClient{results: []ocr.Result{
		1: {Words: []ocr.Word{word("3", 400, 91)}},
	}}

	events, err := New(fake).Recognize(whiteCanvas(300, 200), sixLines, 20, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, 0, ev.Index)
	assert.Equal(t, music.KindNote, ev.Kind)
	assert.Equal(t, uint8(62), ev.MIDI, "B string fret 3 is D4")
	assert.Equal(t, 1, ev.String)
	assert.Equal(t, 3, ev.Fret)
	assert.InDelta(t, 100.0, ev.X, 0.5, "x undone from the upscale factor")
	assert.Equal(t, 91.0, ev.Confidence)

	assert.Equal(t, 6, fake.calls, "one call per string")
	for _, o := range fake.opts {
		assert.Equal(t, ocr.SingleLine, o.Mode)
		assert.Equal(t, ocr.TabChars, o.Whitelist)
	}
}

func TestRecognizeOrdersByX(t *testing.T) {
	// Open-string riff 0 2 2 0 on the low E string.
	fake := &fakeClient{results: []ocr.Result{
		5: {Words: []ocr.Word{
			word("2", 480, 90),
			word("0", 320, 90),
			word("0", 800, 90),
			word("2", 640, 90),
		}},
	}}

	events, err := New(fake).Recognize(whiteCanvas(300, 200), sixLines, 20, 0)
	require.NoError(t, err)
	require.Len(t, events, 4)

	var midis []uint8
	for i, ev := range events {
		assert.Equal(t, i, ev.Index, "dense indices in x order")
		assert.Equal(t, 5, ev.String)
		midis = append(midis, ev.MIDI)
	}
	assert.Equal(t, []uint8{40, 42, 42, 40}, midis)
}

func TestRecognizeBaseIndex(t *testing.T) {
	fake := &fakeClient{results: []ocr.Result{
		0: {Words: []ocr.Word{word("5", 400, 80)}},
	}}

	events, err := New(fake).Recognize(whiteCanvas(300, 200), sixLines, 20, 7)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 7, events[0].Index)
	assert.Equal(t, uint8(69), events[0].MIDI, "high E fret 5")
}

func TestRecognizeFiltersNonFrets(t *testing.T) {
	fake := &fakeClient{results: []ocr.Result{
		0: {Words: []ocr.Word{
			word("25", 160, 80), // beyond the last fret
			word("-", 320, 80),
			word("7", 480, 80),
		}},
	}}

	events, err := New(fake).Recognize(whiteCanvas(300, 200), sixLines, 20, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 7, events[0].Fret)
}

func TestRecognizeTextFallback(t *testing.T) {
	// No word boxes: digit tokens get proportional x positions.
	fake := &fakeClient{results: []ocr.Result{
		2: {Text: "5 7", Confidence: 66},
	}}

	events, err := New(fake).Recognize(whiteCanvas(300, 200), sixLines, 20, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint8(60), events[0].MIDI, "G string fret 5")
	assert.Equal(t, uint8(62), events[1].MIDI)
	assert.Less(t, events[0].X, events[1].X)
	assert.Equal(t, 66.0, events[0].Confidence)
}

func TestRecognizeAllStringsFailed(t *testing.T) {
	fake := &fakeClient{err: errors.New("engine gone")}
	_, err := New(fake).Recognize(whiteCanvas(300, 200), sixLines, 20, 0)
	assert.ErrorContains(t, err, "all strings failed")
}

func TestRecognizeWrongLineCount(t *testing.T) {
	_, err := New(&fakeClient{}).Recognize(whiteCanvas(300, 200), []int{10, 20, 30}, 10, 0)
	assert.ErrorContains(t, err, "want 6")
}

func TestStripExtent(t *testing.T) {
	top, bottom := stripExtent(sixLines, 20, 0)
	assert.Equal(t, 30, top, "half a spacing above the top line")
	assert.Equal(t, 50, bottom)

	top, bottom = stripExtent(sixLines, 20, 3)
	assert.Equal(t, 90, top, "midway to the neighbours")
	assert.Equal(t, 110, bottom)

	top, bottom = stripExtent(sixLines, 20, 5)
	assert.Equal(t, 130, top)
	assert.Equal(t, 151, bottom, "half a spacing below the bottom line")
}
