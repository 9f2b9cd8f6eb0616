package music

import (
	"regexp"
	"strings"
)

// chordPattern accepts the chord symbols the recognizers attach to
// notes: root, optional accidental, optional quality, optional extension
// digit, optional slash bass. Examples: C, F#m, Bb7, Asus4, G/B, Dmaj7.
var chordPattern = regexp.MustCompile(`^[A-G][#b]?(m|dim|aug|sus|Maj|maj|M)?[0-9]?(/[A-G][#b]?)?$`)

// IsChordSymbol reports whether a recognized word looks like a chord
// symbol after OCR normalization.
func IsChordSymbol(word string) bool {
	return chordPattern.MatchString(NormalizeChordSymbol(word))
}

// NormalizeChordSymbol cleans common OCR substitutions in chord text:
// Unicode accidentals, stray whitespace, and lowercase roots.
func NormalizeChordSymbol(word string) string {
	s := strings.TrimSpace(word)
	s = strings.ReplaceAll(s, "♯", "#")
	s = strings.ReplaceAll(s, "♭", "b")
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'g' {
		s = strings.ToUpper(s[:1]) + s[1:]
	}
	return s
}

// ChordRootMIDI returns the MIDI pitch of a chord symbol's root in the
// octave below middle C, or -1 when the symbol does not parse.
func ChordRootMIDI(symbol string) int {
	s := NormalizeChordSymbol(symbol)
	if !chordPattern.MatchString(s) {
		return -1
	}
	offset, ok := rootOffsets[s[:1]]
	if !ok {
		return -1
	}
	if len(s) > 1 {
		switch s[1] {
		case '#':
			offset++
		case 'b':
			offset--
		}
	}
	return 48 + ((offset%12)+12)%12
}
