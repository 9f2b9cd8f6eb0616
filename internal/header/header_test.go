package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTextFullHeader(t *testing.T) {
	text := "戀曲 1990\nKey: Am\n♩=96\n4/4\n作曲：羅大佑"

	md := ParseText(text)
	assert.Equal(t, "戀曲 1990", md.Title)
	assert.Equal(t, "Am", md.Key)
	assert.Equal(t, 96, md.Tempo)
	assert.Equal(t, "4/4", md.TimeSignature)
	assert.Equal(t, "羅大佑", md.Composer)
	assert.Empty(t, md.Lyricist)
	assert.Zero(t, md.Capo)
}

func TestParseTextJianpuKeyLine(t *testing.T) {
	md := ParseText("小星星\n1=F 2/4\nTempo: 100")
	assert.Equal(t, "小星星", md.Title)
	assert.Equal(t, "F", md.Key)
	assert.Equal(t, "2/4", md.TimeSignature)
	assert.Equal(t, 100, md.Tempo)
}

func TestParseTextCapoAndBoth(t *testing.T) {
	md := ParseText("Wonderwall\nCapo: 2\n詞曲：李宗盛")
	assert.Equal(t, 2, md.Capo)
	assert.Equal(t, "李宗盛", md.Composer, "詞曲 credits both roles")
	assert.Equal(t, "李宗盛", md.Lyricist)
}

func TestParseTextTempoVariants(t *testing.T) {
	assert.Equal(t, 120, ParseText("J = 120").Tempo, "OCR reads the quarter glyph as J")
	assert.Equal(t, 80, ParseText("Tempo: 80").Tempo)
	assert.Zero(t, ParseText("J = 1200").Tempo, "four digits is not a tempo")
}

func TestParseTextKeyQualitySuffix(t *testing.T) {
	md := ParseText("G Major something")
	assert.Equal(t, "G", md.Key)

	md = ParseText("Key: F# minor")
	assert.Equal(t, "F#m", md.Key)
}

func TestParseTextTitleSkipsMatchedLines(t *testing.T) {
	// The first unmatched line with letters becomes the title even when
	// metadata lines precede it.
	md := ParseText("Key: C\nMy Song\nExtra line")
	assert.Equal(t, "My Song", md.Title)

	assert.Empty(t, ParseText("42\n--").Title, "numbers and punctuation are not titles")
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"c":        "C",
		"A♭":       "Ab",
		"F# minor": "F#m",
		"Bb Major": "Bb",
		"e min":    "Em",
		"G":        "G",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeKey(in), "input %q", in)
	}
	assert.Equal(t, "", NormalizeKey("  "))
}
